package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/doctorquest/quiz/internal/config"
	"github.com/doctorquest/quiz/internal/db/queries"
	"github.com/doctorquest/quiz/internal/question"
)

func main() {
	var (
		file       = flag.String("file", "", "YAML question document to import")
		invalidate = flag.Bool("invalidate", true, "Drop cached question feeds after importing")
		timeout    = flag.Duration("timeout", 2*time.Minute, "Overall import timeout")
	)
	flag.Parse()

	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	if *file == "" {
		log.Fatal().Msg("-file is required")
	}

	var pg config.Postgres
	if err := env.ParseWithOptions(&pg, env.Options{RequiredIfNoDef: true}); err != nil {
		log.Fatal().Err(err).Msg("invalid database configuration")
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("failed to open import file")
	}
	defer f.Close()

	qs, err := question.ParseImport(f)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("failed to parse import file")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, pg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer pool.Close()

	n, err := question.Import(ctx, pool, queries.New(pool), qs)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("import failed; transaction rolled back")
	}
	log.Info().Int("imported", n).Str("file", *file).Msg("questions imported")

	if !*invalidate {
		return
	}

	var rc config.Redis
	if err := env.ParseWithOptions(&rc, env.Options{RequiredIfNoDef: true}); err != nil {
		log.Warn().Err(err).Msg("redis not configured; cached feeds expire on their own")
		return
	}
	client := redis.NewClient(&redis.Options{Addr: rc.Addr, DB: rc.DB})
	defer client.Close()

	if err := question.NewCache(client, 0).Invalidate(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to invalidate question cache")
		return
	}
	log.Info().Msg("question cache invalidated")
}
