package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/doctorquest/quiz/internal/auth/jwt"
	"github.com/doctorquest/quiz/internal/question"
	httperrors "github.com/doctorquest/quiz/pkg/http/errors"
	ws "github.com/doctorquest/quiz/pkg/http/ws"
)

type httpFixture struct {
	mux       *http.ServeMux
	manager   *Manager
	questions *fakeQuestions
	tokens    *jwt.Manager
}

func newHTTPFixture(t *testing.T, qs ...question.Question) *httpFixture {
	t.Helper()
	hub := ws.NewHub(zerolog.Nop())
	f := &httpFixture{
		questions: &fakeQuestions{all: qs},
		tokens:    jwt.NewManager(jwt.TokenConfig{Secret: testSecret}),
	}
	f.manager = newTestManager(hub, Deps{Questions: f.questions, Verifier: f.tokens})
	t.Cleanup(f.manager.Shutdown)

	f.mux = http.NewServeMux()
	NewHTTPHandler(f.manager, hub, &websocket.Upgrader{}, zerolog.Nop()).Register(f.mux)
	return f
}

func (f *httpFixture) do(t *testing.T, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func (f *httpFixture) bearer(t *testing.T) (http.Header, jwt.User) {
	t.Helper()
	user := jwt.User{ID: uuid.New(), Email: "doc@example.com"}
	token, _, err := f.tokens.GenerateAccessToken(user)
	require.NoError(t, err)
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	h.Set(RefreshTokenHeader, "refresh-1")
	return h, user
}

func (f *httpFixture) create(t *testing.T, body string, header http.Header) View {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/v1/sessions", body, header)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[View](t, rec)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[httperrors.ErrorResponse](t, rec).Error
}

func TestHTTPSessionFlow(t *testing.T) {
	f := newHTTPFixture(t, mcq(1, "A", "B"), mcq(2, "A", "C"))

	view := f.create(t, `{"subject":"all"}`, nil)
	assert.Equal(t, 2, view.Total)
	assert.Equal(t, 1, view.Position)
	require.NotNil(t, view.Question)
	assert.Len(t, view.Question.Options, 3)
	base := "/v1/sessions/" + view.SessionID

	rec := f.do(t, http.MethodPost, base+"/select", `{"option":"B"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "B", decode[View](t, rec).Selected)

	rec = f.do(t, http.MethodPost, base+"/submit", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[SubmitResponse](t, rec)
	require.NotNil(t, resp.Result)
	assert.True(t, resp.Result.Correct)
	assert.Equal(t, 1, resp.Session.Score)

	// second submit is a no-op
	rec = f.do(t, http.MethodPost, base+"/submit", "", nil)
	assert.Nil(t, decode[SubmitResponse](t, rec).Result)

	rec = f.do(t, http.MethodPost, base+"/next", "", nil)
	assert.Equal(t, 2, decode[View](t, rec).Position)

	rec = f.do(t, http.MethodPost, base+"/previous", "", nil)
	assert.Equal(t, 1, decode[View](t, rec).Position)

	rec = f.do(t, http.MethodPost, base+"/reset", "", nil)
	reset := decode[View](t, rec)
	assert.Zero(t, reset.Answered)
	assert.False(t, reset.Revealed)

	rec = f.do(t, http.MethodGet, base, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodDelete, base, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, base, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, httperrors.ErrCodeSessionNotFound, errorCode(t, rec))
}

func TestHTTPCreateWithoutBody(t *testing.T) {
	f := newHTTPFixture(t, mcq(1, "A", "B"))
	view := f.create(t, "", nil)
	assert.Equal(t, question.AllSubjects, view.Subject)
	assert.Nil(t, view.User)
}

func TestHTTPCreateSignedIn(t *testing.T) {
	f := newHTTPFixture(t, mcq(1, "A", "B"))
	header, user := f.bearer(t)

	view := f.create(t, `{"subject":"A"}`, header)
	require.NotNil(t, view.User)
	assert.Equal(t, user.ID, view.User.ID)
	assert.Equal(t, "A", view.Subject)
}

func TestHTTPCreateRejectsBadToken(t *testing.T) {
	f := newHTTPFixture(t, mcq(1, "A", "B"))
	header := http.Header{}
	header.Set("Authorization", "Bearer not-a-jwt")

	rec := f.do(t, http.MethodPost, "/v1/sessions", "", header)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, httperrors.ErrCodeInvalidToken, errorCode(t, rec))
	assert.Equal(t, 0, f.manager.Len())
}

func TestHTTPSessionErrors(t *testing.T) {
	f := newHTTPFixture(t, mcq(1, "A", "B"))

	rec := f.do(t, http.MethodGet, "/v1/sessions/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httperrors.ErrCodeInvalidSessionID, errorCode(t, rec))

	rec = f.do(t, http.MethodPost, "/v1/sessions/"+uuid.NewString()+"/submit", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodDelete, "/v1/sessions/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	view := f.create(t, "", nil)
	base := "/v1/sessions/" + view.SessionID

	rec = f.do(t, http.MethodPost, base+"/select", `{"option":"E"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httperrors.ErrCodeInvalidOption, errorCode(t, rec))

	rec = f.do(t, http.MethodPost, base+"/select", `{`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httperrors.ErrCodeInvalidRequest, errorCode(t, rec))
}

func TestHTTPSubmitWithoutQuestions(t *testing.T) {
	f := newHTTPFixture(t)
	view := f.create(t, "", nil)
	assert.Zero(t, view.Total)

	rec := f.do(t, http.MethodPost, "/v1/sessions/"+view.SessionID+"/submit", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, httperrors.ErrCodeNoQuestions, errorCode(t, rec))
}

func TestHTTPSetSubject(t *testing.T) {
	f := newHTTPFixture(t, mcq(1, "A", "B"), mcq(2, "B", "B"))
	view := f.create(t, "", nil)
	path := "/v1/sessions/" + view.SessionID + "/subject"

	rec := f.do(t, http.MethodPut, path, `{"subject":"B"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[View](t, rec)
	assert.Equal(t, 1, got.Total)
	assert.Equal(t, int64(2), got.Question.ID)

	f.questions.fail(errors.New("db down"))
	rec = f.do(t, http.MethodPut, path, `{"subject":"A"}`, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, httperrors.ErrCodeQuestionFetchFailed, errorCode(t, rec))
}

func TestHTTPAuthEndpoints(t *testing.T) {
	f := newHTTPFixture(t, mcq(1, "A", "B"))
	view := f.create(t, "", nil)
	base := "/v1/sessions/" + view.SessionID + "/auth"

	rec := f.do(t, http.MethodPost, base+"/refresh", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, base, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, httperrors.ErrCodeAuthenticationRequired, errorCode(t, rec))

	header, user := f.bearer(t)
	rec = f.do(t, http.MethodPost, base, "", header)
	require.Equal(t, http.StatusOK, rec.Code)
	signed := decode[View](t, rec)
	require.NotNil(t, signed.User)
	assert.Equal(t, user.ID, signed.User.ID)

	// no refresher configured
	rec = f.do(t, http.MethodPost, base+"/refresh", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, httperrors.ErrCodeRefreshUnavailable, errorCode(t, rec))

	rec = f.do(t, http.MethodDelete, base, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[View](t, rec).User)
}

type failingRefresher struct{}

func (failingRefresher) Refresh(context.Context, string) (*oauth2.Token, error) {
	return nil, errors.New("identity provider unreachable")
}

func TestHTTPRefreshFailureIsBadGateway(t *testing.T) {
	tokens := jwt.NewManager(jwt.TokenConfig{Secret: testSecret, AccessTTL: 30 * time.Second})
	hub := ws.NewHub(zerolog.Nop())
	manager := newTestManager(hub, Deps{Verifier: tokens, Refresher: failingRefresher{}, EarlyExpiry: time.Minute}, mcq(1, "A", "B"))
	t.Cleanup(manager.Shutdown)
	f := &httpFixture{mux: http.NewServeMux(), manager: manager, tokens: tokens}
	NewHTTPHandler(manager, hub, &websocket.Upgrader{}, zerolog.Nop()).Register(f.mux)

	view := f.create(t, "", nil)
	base := "/v1/sessions/" + view.SessionID + "/auth"
	header, user := f.bearer(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, base, "", header).Code)

	rec := f.do(t, http.MethodPost, base+"/refresh", "", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, httperrors.ErrCodeRefreshFailed, errorCode(t, rec))

	// the token has not expired yet, so the session stays signed in
	rec = f.do(t, http.MethodGet, "/v1/sessions/"+view.SessionID, "", nil)
	got := decode[View](t, rec)
	require.NotNil(t, got.User)
	assert.Equal(t, user.ID, got.User.ID)
}

func TestWebSocketNavigates(t *testing.T) {
	f := newHTTPFixture(t, mcq(1, "A", "B"), mcq(2, "A", "C"))
	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)

	view := f.create(t, "", nil)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/" + view.SessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	readWS(t, conn)

	atPosition := func(pos int) func(ws.Message) bool {
		return func(m ws.Message) bool {
			var v View
			return m.Type == ws.TypeSessionState && json.Unmarshal(m.Payload, &v) == nil && v.Position == pos
		}
	}

	require.NoError(t, conn.WriteJSON(ws.Message{Type: ws.TypeNext}))
	readWSUntil(t, conn, atPosition(2))

	require.NoError(t, conn.WriteJSON(ws.Message{Type: ws.TypePrevious}))
	readWSUntil(t, conn, atPosition(1))
}

func readWS(t *testing.T, c *websocket.Conn) ws.Message {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg ws.Message
	require.NoError(t, c.ReadJSON(&msg))
	return msg
}

// readWSUntil skips messages until match accepts one.
func readWSUntil(t *testing.T, c *websocket.Conn, match func(ws.Message) bool) ws.Message {
	t.Helper()
	for i := 0; i < 20; i++ {
		if msg := readWS(t, c); match(msg) {
			return msg
		}
	}
	t.Fatal("expected message not received")
	return ws.Message{}
}

func TestWebSocketDrivesSession(t *testing.T) {
	f := newHTTPFixture(t, mcq(1, "A", "B"))
	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)

	view := f.create(t, "", nil)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/" + view.SessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	first := readWS(t, conn)
	assert.Equal(t, ws.TypeSessionState, first.Type)

	require.NoError(t, conn.WriteJSON(ws.Message{Type: ws.TypePing, RequestID: "p1"}))
	pong := readWSUntil(t, conn, func(m ws.Message) bool { return m.Type == ws.TypePong })
	assert.Equal(t, "p1", pong.RequestID)

	select1, err := ws.NewMessage(ws.TypeSelectAnswer, ws.SelectAnswerPayload{Option: "B"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(select1))
	require.NoError(t, conn.WriteJSON(ws.Message{Type: ws.TypeSubmitAnswer}))

	state := readWSUntil(t, conn, func(m ws.Message) bool {
		if m.Type != ws.TypeSessionState {
			return false
		}
		var v View
		return json.Unmarshal(m.Payload, &v) == nil && v.Revealed
	})
	var v View
	require.NoError(t, json.Unmarshal(state.Payload, &v))
	assert.Equal(t, 1, v.Score)

	bad, err := ws.NewMessage(ws.TypeSelectAnswer, ws.SelectAnswerPayload{Option: "Q"})
	require.NoError(t, err)
	bad.Type = "dance"
	bad.RequestID = "r2"
	require.NoError(t, conn.WriteJSON(bad))
	errMsg := readWSUntil(t, conn, func(m ws.Message) bool { return m.Type == ws.TypeError })
	assert.Equal(t, "r2", errMsg.RequestID)
	var payload ws.ErrorPayload
	require.NoError(t, json.Unmarshal(errMsg.Payload, &payload))
	assert.Equal(t, httperrors.ErrCodeUnknownMessageType, payload.Code)
}
