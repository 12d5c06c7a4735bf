package question

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doctorquest/quiz/internal/db/repository"
)

func TestHandleListAll(t *testing.T) {
	loader := NewLoader(repository.NewQuestionRepository(seededStore()), nil, 0, zerolog.Nop())
	h := NewHTTPHandler(loader, time.Second, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.HandleList(rec, httptest.NewRequest(http.MethodGet, "/v1/questions", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp FeedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, AllSubjects, resp.Subject)
	assert.Equal(t, []string{"Cardiology", "Neurology"}, resp.Subjects)
	assert.Len(t, resp.Questions, 3)
}

func TestHandleListBySubject(t *testing.T) {
	loader := NewLoader(repository.NewQuestionRepository(seededStore()), nil, 0, zerolog.Nop())
	h := NewHTTPHandler(loader, 0, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.HandleList(rec, httptest.NewRequest(http.MethodGet, "/v1/questions?subject=Neurology", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp FeedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Neurology", resp.Subject)
	require.Len(t, resp.Questions, 1)
	assert.Equal(t, int64(2), resp.Questions[0].ID)
}

func TestHandleListStoreFailure(t *testing.T) {
	store := &stubQuestionStore{err: errors.New("db down")}
	h := NewHTTPHandler(NewLoader(repository.NewQuestionRepository(store), nil, 0, zerolog.Nop()), 0, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.HandleList(rec, httptest.NewRequest(http.MethodGet, "/v1/questions", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "question_fetch_failed")
}
