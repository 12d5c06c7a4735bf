package question

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Prefetcher keeps the feed cache warm so the first load of a session does not
// pay for a Postgres round trip.
type Prefetcher struct {
	loader   *Loader
	cache    FeedCache
	interval time.Duration
	timeout  time.Duration
	logger   zerolog.Logger
}

func NewPrefetcher(loader *Loader, cache FeedCache, interval, timeout time.Duration, logger zerolog.Logger) *Prefetcher {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	return &Prefetcher{
		loader:   loader,
		cache:    cache,
		interval: interval,
		timeout:  timeout,
		logger:   logger.With().Str("component", "question_prefetcher").Logger(),
	}
}

// Run blocks until ctx is cancelled.
func (p *Prefetcher) Run(ctx context.Context) error {
	if p.interval <= 0 || p.cache == nil {
		return nil
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick reloads the unfiltered feed from Postgres, then derives every per-subject
// feed from it without further queries.
func (p *Prefetcher) tick(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	rows, err := p.loader.repo.List(fetchCtx, "")
	if err != nil {
		p.logger.Warn().Err(err).Msg("prefetch failed")
		return
	}
	all := make([]Question, 0, len(rows))
	for _, row := range rows {
		all = append(all, toDomain(row))
	}
	if err := p.cache.Set(fetchCtx, "", all); err != nil {
		p.logger.Warn().Err(err).Msg("prefetch cache write failed")
		return
	}

	bySubject := make(map[string][]Question)
	for _, q := range all {
		bySubject[q.Subject] = append(bySubject[q.Subject], q)
	}
	for subject, qs := range bySubject {
		if err := p.cache.Set(fetchCtx, subject, qs); err != nil {
			p.logger.Warn().Err(err).Str("subject", subject).Msg("prefetch cache write failed")
		}
	}
	p.logger.Debug().Int("questions", len(all)).Int("subjects", len(bySubject)).Msg("question feeds prefetched")
}
