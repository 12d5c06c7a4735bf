package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"doctorquest"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	LogLevel                string        `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Postgres  Postgres
	Redis     Redis
	Identity  Identity
	Questions Questions
	Sessions  Sessions
	CORS      CORS
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST,notEmpty"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER,notEmpty"`
	Password string `env:"PG_PASSWORD,notEmpty"`
	Database string `env:"PG_DATABASE,notEmpty"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
	MaxConns int    `env:"PG_MAX_CONNS" envDefault:"10"`
}

// ConnString renders the plain libpq-style connection string.
func (p Postgres) ConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// DSN renders the pgxpool connection string.
func (p Postgres) DSN() string {
	return fmt.Sprintf("%s pool_max_conns=%d", p.ConnString(), p.MaxConns)
}

// Redis holds cache + pub/sub configuration.
type Redis struct {
	Addr         string `env:"REDIS_ADDR,notEmpty"`
	DB           int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize     int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
	StatsChannel string `env:"REDIS_STATS_CHANNEL" envDefault:"stats:updates"`
}

// Identity configures verification and refresh of provider-issued tokens.
type Identity struct {
	JWTSecret   string        `env:"JWT_SECRET,notEmpty"`
	JWTIssuer   string        `env:"JWT_ISSUER" envDefault:""`
	JWTAudience string        `env:"JWT_AUDIENCE" envDefault:"authenticated"`
	AuthURL     string        `env:"AUTH_URL" envDefault:""` // e.g. https://<project>.supabase.co/auth/v1; refresh disabled when empty
	APIKey      string        `env:"AUTH_API_KEY" envDefault:""`
	HTTPTimeout time.Duration `env:"AUTH_HTTP_TIMEOUT" envDefault:"6s"`
	EarlyExpiry time.Duration `env:"AUTH_REFRESH_EARLY" envDefault:"1m"`
}

// Questions tunes the feed loader.
type Questions struct {
	FetchTimeout     time.Duration `env:"QUESTION_FETCH_TIMEOUT_SECONDS" envDefault:"4s"`
	CacheTTL         time.Duration `env:"QUESTION_CACHE_TTL" envDefault:"1m"`
	PrefetchInterval time.Duration `env:"QUESTION_PREFETCH_INTERVAL" envDefault:"0s"`
}

// Sessions governs in-memory quiz sessions.
type Sessions struct {
	IdleTimeout    time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`
	ReapInterval   time.Duration `env:"SESSION_REAP_INTERVAL" envDefault:"1m"`
	QueueSize      int           `env:"SESSION_PERSIST_QUEUE" envDefault:"16"`
	PersistTimeout time.Duration `env:"SESSION_PERSIST_TIMEOUT" envDefault:"5s"`
}

// CORS holds Cross-Origin Resource Sharing configuration.
type CORS struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS" envSeparator:"," envDefault:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" envSeparator:"," envDefault:"Content-Type,Authorization,X-Refresh-Token"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE" envDefault:"3600"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
