package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/doctorquest/quiz/internal/auth"
	"github.com/doctorquest/quiz/internal/auth/jwt"
	"github.com/doctorquest/quiz/internal/logging"
	httperrors "github.com/doctorquest/quiz/pkg/http/errors"
	ws "github.com/doctorquest/quiz/pkg/http/ws"
)

// RefreshTokenHeader optionally carries the provider refresh token alongside
// the Bearer access token.
const RefreshTokenHeader = "X-Refresh-Token"

// Hub is the WebSocket hub the handler attaches sockets to.
type Hub interface {
	RegisterConnection(sessionID uuid.UUID, conn *ws.Connection)
	UnregisterConnection(sessionID uuid.UUID, conn *ws.Connection)
	SendToSession(sessionID uuid.UUID, msg ws.Message) error
}

// HTTPHandler exposes quiz sessions over REST and WebSocket.
type HTTPHandler struct {
	manager  *Manager
	hub      Hub
	upgrader *websocket.Upgrader
	logger   zerolog.Logger
}

// NewHTTPHandler creates session handlers. hub and upgrader may be nil when
// WebSocket push is not served.
func NewHTTPHandler(manager *Manager, hub Hub, upgrader *websocket.Upgrader, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		manager:  manager,
		hub:      hub,
		upgrader: upgrader,
		logger:   logger.With().Str("component", "session_http").Logger(),
	}
}

// Register mounts the session routes.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/sessions", h.Create)
	mux.HandleFunc("GET /v1/sessions/{id}", h.withTracker(h.Get))
	mux.HandleFunc("DELETE /v1/sessions/{id}", h.Delete)
	mux.HandleFunc("PUT /v1/sessions/{id}/subject", h.withTracker(h.SetSubject))
	mux.HandleFunc("POST /v1/sessions/{id}/select", h.withTracker(h.Select))
	mux.HandleFunc("POST /v1/sessions/{id}/submit", h.withTracker(h.Submit))
	mux.HandleFunc("POST /v1/sessions/{id}/next", h.withTracker(h.advance(Next)))
	mux.HandleFunc("POST /v1/sessions/{id}/previous", h.withTracker(h.advance(Previous)))
	mux.HandleFunc("POST /v1/sessions/{id}/reset", h.withTracker(h.Reset))
	mux.HandleFunc("POST /v1/sessions/{id}/auth", h.withTracker(h.SignIn))
	mux.HandleFunc("DELETE /v1/sessions/{id}/auth", h.withTracker(h.SignOut))
	mux.HandleFunc("POST /v1/sessions/{id}/auth/refresh", h.withTracker(h.Refresh))
	if h.hub != nil && h.upgrader != nil {
		mux.HandleFunc("GET /ws/sessions/{id}", h.withTracker(h.HandleWebSocket))
	}
}

type trackerHandler func(w http.ResponseWriter, r *http.Request, t *Tracker)

func (h *HTTPHandler) withTracker(next trackerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := h.lookup(w, r)
		if !ok {
			return
		}
		next(w, r, t)
	}
}

func (h *HTTPHandler) lookup(w http.ResponseWriter, r *http.Request) (*Tracker, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidSessionID, "Session id must be a UUID")
		return nil, false
	}
	t, err := h.manager.Get(id)
	if err != nil {
		httperrors.RespondNotFound(w, httperrors.ErrCodeSessionNotFound, "Session not found")
		return nil, false
	}
	return t, true
}

type subjectRequest struct {
	Subject string `json:"subject"`
}

// Create handles POST /v1/sessions. An optional Bearer token signs the new
// session in before the first load.
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req subjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	token, hasToken, err := auth.BearerToken(r)
	if err != nil {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid authorization header")
		return
	}

	t := h.manager.Create(req.Subject)
	logger := logging.FromContext(r.Context()).With().Str("session_id", t.ID().String()).Logger()

	if hasToken {
		if _, err := t.Auth().SignIn(r.Context(), token, r.Header.Get(RefreshTokenHeader)); err != nil {
			h.manager.Delete(t.ID())
			respondTokenError(w, err)
			return
		}
	}

	if err := t.Mount(r.Context()); err != nil {
		logger.Warn().Err(err).Msg("session created without questions")
	}
	httperrors.RespondJSON(w, http.StatusCreated, t.View())
}

// Get handles GET /v1/sessions/{id}.
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request, t *Tracker) {
	httperrors.RespondJSON(w, http.StatusOK, t.View())
}

// Delete handles DELETE /v1/sessions/{id}.
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidSessionID, "Session id must be a UUID")
		return
	}
	if err := h.manager.Delete(id); err != nil {
		httperrors.RespondNotFound(w, httperrors.ErrCodeSessionNotFound, "Session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetSubject handles PUT /v1/sessions/{id}/subject.
func (h *HTTPHandler) SetSubject(w http.ResponseWriter, r *http.Request, t *Tracker) {
	var req subjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	if err := t.SetSubject(r.Context(), req.Subject); err != nil {
		if errors.Is(err, ErrClosed) {
			httperrors.RespondNotFound(w, httperrors.ErrCodeSessionNotFound, "Session not found")
			return
		}
		httperrors.RespondErrorWithDetails(w, http.StatusBadGateway, httperrors.ErrCodeQuestionFetchFailed,
			"Could not load questions; previous questions kept", map[string]interface{}{"session": t.View()})
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, t.View())
}

type selectRequest struct {
	Option string `json:"option"`
}

// Select handles POST /v1/sessions/{id}/select.
func (h *HTTPHandler) Select(w http.ResponseWriter, r *http.Request, t *Tracker) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	view, err := t.SelectAnswer(req.Option)
	if err != nil {
		respondTrackerError(w, err)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, view)
}

// SubmitResponse pairs the session view with the submission outcome. Result
// is omitted when the submit was a no-op.
type SubmitResponse struct {
	Session View          `json:"session"`
	Result  *ResultOutput `json:"result,omitempty"`
}

type ResultOutput struct {
	QuestionID    int64  `json:"question_id"`
	Selected      string `json:"selected"`
	Correct       bool   `json:"correct"`
	CorrectOption string `json:"correct_option"`
	CorrectText   string `json:"correct_text,omitempty"`
}

// Submit handles POST /v1/sessions/{id}/submit.
func (h *HTTPHandler) Submit(w http.ResponseWriter, r *http.Request, t *Tracker) {
	view, res, err := t.SubmitAnswer()
	if err != nil {
		respondTrackerError(w, err)
		return
	}
	resp := SubmitResponse{Session: view}
	if res != nil {
		resp.Result = &ResultOutput{
			QuestionID:    res.QuestionID,
			Selected:      res.Selected,
			Correct:       res.Correct,
			CorrectOption: res.CorrectOption,
			CorrectText:   res.CorrectText,
		}
	}
	httperrors.RespondJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) advance(dir Direction) trackerHandler {
	return func(w http.ResponseWriter, r *http.Request, t *Tracker) {
		httperrors.RespondJSON(w, http.StatusOK, t.Advance(dir))
	}
}

// Reset handles POST /v1/sessions/{id}/reset.
func (h *HTTPHandler) Reset(w http.ResponseWriter, r *http.Request, t *Tracker) {
	httperrors.RespondJSON(w, http.StatusOK, t.Reset())
}

// SignIn handles POST /v1/sessions/{id}/auth with a Bearer access token.
func (h *HTTPHandler) SignIn(w http.ResponseWriter, r *http.Request, t *Tracker) {
	token, ok, err := auth.BearerToken(r)
	if err != nil || !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Bearer access token required")
		return
	}
	if _, err := t.Auth().SignIn(r.Context(), token, r.Header.Get(RefreshTokenHeader)); err != nil {
		respondTokenError(w, err)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, t.View())
}

// SignOut handles DELETE /v1/sessions/{id}/auth.
func (h *HTTPHandler) SignOut(w http.ResponseWriter, r *http.Request, t *Tracker) {
	t.Auth().SignOut()
	httperrors.RespondJSON(w, http.StatusOK, t.View())
}

// RefreshResponse reports the session's token after a refresh.
type RefreshResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Refresh handles POST /v1/sessions/{id}/auth/refresh.
func (h *HTTPHandler) Refresh(w http.ResponseWriter, r *http.Request, t *Tracker) {
	sess, err := t.Auth().Refresh(r.Context())
	switch {
	case errors.Is(err, auth.ErrNotSignedIn):
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Session is not signed in")
		return
	case errors.Is(err, auth.ErrRefreshUnavailable):
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeRefreshUnavailable, "Token refresh is not configured")
		return
	case err != nil:
		logger := logging.FromContext(r.Context())
		logger.Warn().Err(err).Str("session_id", t.ID().String()).Msg("token refresh failed")
		httperrors.RespondBadGateway(w, httperrors.ErrCodeRefreshFailed, "Token refresh failed")
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, RefreshResponse{AccessToken: sess.AccessToken, ExpiresAt: sess.ExpiresAt})
}

// HandleWebSocket upgrades GET /ws/sessions/{id}. The socket receives the
// current view immediately, then every change; it may also drive the session.
func (h *HTTPHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request, t *Tracker) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	sessionID := t.ID()
	logger := h.logger.With().Str("session_id", sessionID.String()).Logger()
	wsConn := ws.NewConnection(conn, logger)
	h.hub.RegisterConnection(sessionID, wsConn)

	go wsConn.WritePump()

	if msg, err := ws.NewMessage(ws.TypeSessionState, t.View()); err == nil {
		wsConn.Send(msg)
	}

	ctx := logging.IntoContext(r.Context(), logger)
	wsConn.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(ctx, t, wsConn, msg)
	})

	h.hub.UnregisterConnection(sessionID, wsConn)
}

// handleMessage routes incoming WebSocket commands. State changes reach the
// socket through the tracker's hub observer.
func (h *HTTPHandler) handleMessage(ctx context.Context, t *Tracker, conn *ws.Connection, msg ws.Message) error {
	switch msg.Type {
	case ws.TypePing:
		return conn.Send(ws.Message{Type: ws.TypePong, RequestID: msg.RequestID})
	case ws.TypeSelectAnswer:
		var req ws.SelectAnswerPayload
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return sendError(conn, msg, httperrors.ErrCodeInvalidPayload, "Invalid select_answer payload")
		}
		if _, err := t.SelectAnswer(req.Option); err != nil {
			return sendError(conn, msg, trackerErrorCode(err), err.Error())
		}
	case ws.TypeSubmitAnswer:
		if _, _, err := t.SubmitAnswer(); err != nil {
			return sendError(conn, msg, trackerErrorCode(err), err.Error())
		}
	case ws.TypeNext, ws.TypePrevious:
		dir, _ := ParseDirection(msg.Type)
		t.Advance(dir)
	case ws.TypeReset:
		t.Reset()
	case ws.TypeSetSubject:
		var req ws.SetSubjectPayload
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return sendError(conn, msg, httperrors.ErrCodeInvalidPayload, "Invalid set_subject payload")
		}
		if err := t.SetSubject(ctx, req.Subject); err != nil {
			return sendError(conn, msg, httperrors.ErrCodeQuestionFetchFailed, "Could not load questions")
		}
	default:
		return sendError(conn, msg, httperrors.ErrCodeUnknownMessageType, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
	return nil
}

func sendError(conn *ws.Connection, req ws.Message, code, message string) error {
	msg, err := ws.NewMessage(ws.TypeError, ws.ErrorPayload{Code: code, Message: message})
	if err != nil {
		return err
	}
	msg.RequestID = req.RequestID
	return conn.Send(msg)
}

func trackerErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidOption):
		return httperrors.ErrCodeInvalidOption
	case errors.Is(err, ErrNoQuestions):
		return httperrors.ErrCodeNoQuestions
	default:
		return httperrors.ErrCodeInternalError
	}
}

func respondTrackerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidOption):
		httperrors.RespondValidationError(w, httperrors.ErrCodeInvalidOption, "Option is not available for the current question", "option")
	case errors.Is(err, ErrNoQuestions):
		httperrors.RespondConflict(w, httperrors.ErrCodeNoQuestions, "No questions loaded")
	default:
		httperrors.RespondInternalError(w, "Session operation failed")
	}
}

func respondTokenError(w http.ResponseWriter, err error) {
	if errors.Is(err, jwt.ErrExpiredToken) {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeTokenExpired, "Access token expired")
		return
	}
	httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid access token")
}
