package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/doctorquest/quiz/internal/config"
)

func testConfig() *config.App {
	return &config.App{
		HTTPAddr: ":0",
		CORS: config.CORS{
			AllowedOrigins: []string{"https://doctorquest.app"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-Refresh-Token"},
			MaxAge:         60,
		},
	}
}

func TestHealthz(t *testing.T) {
	h := NewHandler(testConfig(), zerolog.Nop(), nil, Routes{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestPingReportsUpstreamFailure(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("redis down") }

	h := NewHandler(testConfig(), zerolog.Nop(), []Pinger{ok}, Routes{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	h = NewHandler(testConfig(), zerolog.Nop(), []Pinger{ok, down}, Routes{})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "upstream_error")
}

func TestCORSPreflight(t *testing.T) {
	h := NewHandler(testConfig(), zerolog.Nop(), nil, Routes{
		Questions: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) },
	})

	req := httptest.NewRequest(http.MethodOptions, "/v1/questions", nil)
	req.Header.Set("Origin", "https://doctorquest.app")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://doctorquest.app", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/v1/questions", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUpgraderOriginCheck(t *testing.T) {
	u := NewUpgrader(testConfig().CORS)

	req := httptest.NewRequest(http.MethodGet, "/ws/sessions/x", nil)
	assert.True(t, u.CheckOrigin(req))

	req.Header.Set("Origin", "https://doctorquest.app")
	assert.True(t, u.CheckOrigin(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, u.CheckOrigin(req))
}
