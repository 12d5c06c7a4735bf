package stats

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/doctorquest/quiz/internal/auth"
	httperrors "github.com/doctorquest/quiz/pkg/http/errors"
)

// HTTPHandler exposes the caller's statistics.
type HTTPHandler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHTTPHandler(svc *Service, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:    svc,
		logger: logger.With().Str("component", "stats_http").Logger(),
	}
}

// MeResponse is the payload of GET /v1/stats/me.
type MeResponse struct {
	Snapshot
	Accuracy int `json:"accuracy"`
}

// HandleMe responds with the authenticated user's statistics. Requires
// auth.Middleware and auth.RequireAuth in front.
func (h *HTTPHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid token subject")
		return
	}

	snap, err := h.svc.Fetch(r.Context(), userID)
	switch {
	case errors.Is(err, ErrNoHistory):
		httperrors.RespondNotFound(w, httperrors.ErrCodeNoHistory, "No answers recorded yet")
		return
	case err != nil:
		h.logger.Error().Err(err).Str("user_id", userID.String()).Msg("stats fetch failed")
		httperrors.RespondBadGateway(w, httperrors.ErrCodeStatsFetchFailed, "Could not load statistics")
		return
	}

	httperrors.RespondJSON(w, http.StatusOK, MeResponse{Snapshot: snap, Accuracy: snap.Accuracy()})
}
