package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/doctorquest/quiz/internal/auth"
	"github.com/doctorquest/quiz/internal/auth/jwt"
	"github.com/doctorquest/quiz/internal/config"
	"github.com/doctorquest/quiz/internal/db/queries"
	"github.com/doctorquest/quiz/internal/db/repository"
	"github.com/doctorquest/quiz/internal/logging"
	"github.com/doctorquest/quiz/internal/question"
	"github.com/doctorquest/quiz/internal/server"
	"github.com/doctorquest/quiz/internal/session"
	"github.com/doctorquest/quiz/internal/stats"
	ws "github.com/doctorquest/quiz/pkg/http/ws"
)

// worker is a long-running background loop stopped by cancelling its context.
type worker interface {
	Run(ctx context.Context) error
}

// Application aggregates shared infrastructure (DB, cache, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool     *pgxpool.Pool
	redis    *redis.Client
	http     *http.Server
	sessions *session.Manager

	workers   map[string]worker
	bgCancels []context.CancelFunc
}

// New bootstraps the logger, Postgres, Redis, the quiz services and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env, cfg.LogLevel)
	logger.Info().Msg("starting application bootstrap")

	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	q := queries.New(pool)
	questionRepo := repository.NewQuestionRepository(q)
	scoreRepo := repository.NewScoreRepository(q)

	questionCache := question.NewFeedCache(redisClient, cfg.Questions.CacheTTL)
	if questionCache == nil {
		logger.Warn().Msg("question feed cache disabled (QUESTION_CACHE_TTL <= 0)")
	}
	loader := question.NewLoader(questionRepo, questionCache, cfg.Questions.FetchTimeout, logger)

	statsSvc := stats.NewService(scoreRepo, stats.NewPublisher(redisClient, cfg.Redis.StatsChannel), logger)

	tokens := jwt.NewManager(jwt.TokenConfig{
		Secret:   []byte(cfg.Identity.JWTSecret),
		Issuer:   cfg.Identity.JWTIssuer,
		Audience: cfg.Identity.JWTAudience,
	})

	var refresher auth.Refresher
	if cfg.Identity.AuthURL != "" {
		refresher = auth.NewGoTrueRefresher(cfg.Identity.AuthURL, cfg.Identity.APIKey, &http.Client{Timeout: cfg.Identity.HTTPTimeout})
		logger.Info().Str("auth_url", cfg.Identity.AuthURL).Msg("token refresh enabled")
	} else {
		logger.Warn().Msg("AUTH_URL not configured; sessions cannot refresh tokens")
	}

	hub := ws.NewHub(logger)
	manager := session.NewManager(session.Deps{
		Questions:   loader,
		Stats:       statsSvc,
		Verifier:    tokens,
		Refresher:   refresher,
		EarlyExpiry: cfg.Identity.EarlyExpiry,
		Options: session.Options{
			QueueSize:      cfg.Sessions.QueueSize,
			PersistTimeout: cfg.Sessions.PersistTimeout,
		},
	}, hub, logger)

	statsHandler := stats.NewHTTPHandler(statsSvc, logger)
	routes := server.Routes{
		Questions: question.NewHTTPHandler(loader, cfg.Questions.FetchTimeout, logger).HandleList,
		StatsMe:   auth.Middleware(tokens, logger)(auth.RequireAuth(http.HandlerFunc(statsHandler.HandleMe))),
		Sessions:  session.NewHTTPHandler(manager, hub, server.NewUpgrader(cfg.CORS), logger),
	}
	pingers := []server.Pinger{server.PostgresPinger(pool), server.RedisPinger(redisClient)}

	return &Application{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		redis:    redisClient,
		http:     server.NewHTTPServer(cfg, logger, pingers, routes),
		sessions: manager,
		workers: map[string]worker{
			"stats broadcaster":   stats.NewBroadcaster(redisClient, hub, manager, cfg.Redis.StatsChannel, logger),
			"session reaper":      session.NewReaper(manager, cfg.Sessions.IdleTimeout, cfg.Sessions.ReapInterval, logger),
			"question prefetcher": question.NewPrefetcher(loader, questionCache, cfg.Questions.PrefetchInterval, cfg.Questions.FetchTimeout, logger),
		},
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.startBackgroundWorkers(ctx)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		runErr = fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	for _, cancel := range a.bgCancels {
		cancel()
	}

	// drain queued answer writes before the pool goes away
	a.sessions.Shutdown()

	a.pool.Close()
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return runErr
}

func (a *Application) startBackgroundWorkers(ctx context.Context) {
	for name, w := range a.workers {
		bgCtx, cancel := context.WithCancel(ctx)
		a.bgCancels = append(a.bgCancels, cancel)
		go func(name string, w worker) {
			if err := w.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn().Err(err).Str("worker", name).Msg("background worker stopped")
			}
		}(name, w)
	}
}
