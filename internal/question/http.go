package question

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	httperrors "github.com/doctorquest/quiz/pkg/http/errors"
)

// HTTPHandler serves the question feed.
type HTTPHandler struct {
	loader  *Loader
	timeout time.Duration
	logger  zerolog.Logger
}

func NewHTTPHandler(loader *Loader, timeout time.Duration, logger zerolog.Logger) *HTTPHandler {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	return &HTTPHandler{
		loader:  loader,
		timeout: timeout,
		logger:  logger.With().Str("component", "question_http").Logger(),
	}
}

// FeedResponse is the payload of GET /v1/questions.
type FeedResponse struct {
	Subject   string     `json:"subject"`
	Subjects  []string   `json:"subjects"`
	Questions []Question `json:"questions"`
}

// HandleList responds with the ordered feed.
// Route: GET /v1/questions?subject=Cardiology
func (h *HTTPHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	subject := NormalizeSubject(r.URL.Query().Get("subject"))

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	qs, err := h.loader.Fetch(ctx, subject)
	if err != nil {
		h.logger.Error().Err(err).Str("subject", subject).Msg("question feed fetch failed")
		httperrors.RespondBadGateway(w, httperrors.ErrCodeQuestionFetchFailed, "Could not load questions")
		return
	}

	label := subject
	if label == "" {
		label = AllSubjects
	}
	httperrors.RespondJSON(w, http.StatusOK, FeedResponse{
		Subject:   label,
		Subjects:  Subjects(qs),
		Questions: qs,
	})
}
