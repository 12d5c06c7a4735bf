package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doctorquest/quiz/internal/auth/jwt"
)

func TestMiddlewareInjectsClaims(t *testing.T) {
	m := jwt.NewManager(jwt.TokenConfig{Secret: testSecret})
	userID := uuid.New()
	token, _, err := m.GenerateAccessToken(jwt.User{ID: userID})
	require.NoError(t, err)

	var seen uuid.UUID
	h := Middleware(m, zerolog.Nop())(RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		seen, _ = claims.UserID()
		w.WriteHeader(http.StatusNoContent)
	})))

	req := httptest.NewRequest(http.MethodGet, "/v1/stats/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, userID, seen)
}

func TestMiddlewareRejections(t *testing.T) {
	m := jwt.NewManager(jwt.TokenConfig{Secret: testSecret})
	expired, _, err := jwt.NewManager(jwt.TokenConfig{Secret: testSecret, AccessTTL: -time.Minute}).
		GenerateAccessToken(jwt.User{ID: uuid.New()})
	require.NoError(t, err)

	h := Middleware(m, zerolog.Nop())(RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})))

	cases := []struct {
		name   string
		header string
		code   string
	}{
		{"missing", "", "authentication_required"},
		{"malformed", "Token abc", "invalid_token"},
		{"garbage", "Bearer abc", "invalid_token"},
		{"expired", "Bearer " + expired, "token_expired"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/stats/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.code)
		})
	}
}
