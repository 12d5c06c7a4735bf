package server

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/doctorquest/quiz/internal/config"
	"github.com/doctorquest/quiz/internal/logging"
	httperrors "github.com/doctorquest/quiz/pkg/http/errors"
)

// NewUpgrader builds the WebSocket upgrader, accepting the configured CORS origins.
func NewUpgrader(cfg config.CORS) *websocket.Upgrader {
	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		allowed[origin] = struct{}{}
	}
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, ok := allowed["*"]; ok {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// Pinger is a dependency checked by /v1/ping.
type Pinger func(ctx context.Context) error

// PostgresPinger checks the pool.
func PostgresPinger(pool *pgxpool.Pool) Pinger {
	return func(ctx context.Context) error { return pool.Ping(ctx) }
}

// RedisPinger checks the Redis client.
func RedisPinger(client *redis.Client) Pinger {
	return func(ctx context.Context) error { return client.Ping(ctx).Err() }
}

// Routes are the feature handlers mounted next to the base routes. Nil
// handlers are skipped.
type Routes struct {
	Questions http.HandlerFunc
	StatsMe   http.Handler
	Sessions  interface{ Register(mux *http.ServeMux) }
}

// NewHTTPServer wires base routes (health, ping, metrics) and the feature routes.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, pingers []Pinger, routes Routes) *http.Server {
	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: NewHandler(cfg, logger, pingers, routes),
	}
}

// NewHandler builds the root handler with request logging and CORS applied.
func NewHandler(cfg *config.App, logger zerolog.Logger, pingers []Pinger, routes Routes) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/ping", func(w http.ResponseWriter, r *http.Request) {
		for _, ping := range pingers {
			if err := ping(r.Context()); err != nil {
				logger := logging.FromContext(r.Context())
				logger.Error().Err(err).Msg("dependency ping failed")
				httperrors.RespondBadGateway(w, httperrors.ErrCodeUpstreamError, "upstream error")
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	if routes.Questions != nil {
		mux.HandleFunc("GET /v1/questions", routes.Questions)
	}
	if routes.StatsMe != nil {
		mux.Handle("GET /v1/stats/me", routes.StatsMe)
	}
	if routes.Sessions != nil {
		routes.Sessions.Register(mux)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	})

	return logging.Middleware(logger)(c.Handler(mux))
}
