package question

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/doctorquest/quiz/internal/db/queries"
	"github.com/doctorquest/quiz/internal/db/repository"
	"github.com/doctorquest/quiz/internal/metrics"
)

// FeedCache defines cache behavior (implemented by Redis-backed Cache).
type FeedCache interface {
	Get(ctx context.Context, subject string) ([]Question, error)
	Set(ctx context.Context, subject string, qs []Question) error
}

const defaultFetchTimeout = 4 * time.Second

// Loader fetches ordered question feeds, consulting the cache before Postgres.
type Loader struct {
	repo    *repository.QuestionRepository
	cache   FeedCache
	timeout time.Duration
	sf      singleflight.Group
	logger  zerolog.Logger
}

// NewLoader builds a loader. cache may be nil to always read through.
// timeout bounds the shared database read; it is independent of any caller.
func NewLoader(repo *repository.QuestionRepository, cache FeedCache, timeout time.Duration, logger zerolog.Logger) *Loader {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Loader{
		repo:    repo,
		cache:   cache,
		timeout: timeout,
		logger:  logger.With().Str("component", "question_loader").Logger(),
	}
}

// Fetch returns every question ordered by ascending id, filtered to subject
// unless subject is "all" or empty.
func (l *Loader) Fetch(ctx context.Context, subject string) ([]Question, error) {
	subject = NormalizeSubject(subject)
	start := time.Now()

	if l.cache != nil {
		cached, err := l.cache.Get(ctx, subject)
		if err != nil {
			l.logger.Warn().Err(err).Str("subject", subject).Msg("question cache read failed")
		} else if cached != nil {
			metrics.QuestionFetchDuration.WithLabelValues("cache").Observe(time.Since(start).Seconds())
			return cached, nil
		}
	}

	// shared by every caller of this subject; a caller's cancel only stops its own wait
	ch := l.sf.DoChan(subject, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()

		rows, err := l.repo.List(fetchCtx, subject)
		if err != nil {
			return nil, fmt.Errorf("list questions: %w", err)
		}
		qs := make([]Question, 0, len(rows))
		for _, row := range rows {
			qs = append(qs, toDomain(row))
		}
		if l.cache != nil {
			if err := l.cache.Set(fetchCtx, subject, qs); err != nil {
				l.logger.Warn().Err(err).Str("subject", subject).Msg("question cache write failed")
			}
		}
		return qs, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		metrics.QuestionFetchDuration.WithLabelValues("db").Observe(time.Since(start).Seconds())
		return res.Val.([]Question), nil
	}
}

func toDomain(row queries.Question) Question {
	q := Question{
		ID:            row.ID,
		Subject:       row.Subject,
		Text:          row.QuestionText,
		OptionA:       textPtr(row.OptionA.String, row.OptionA.Valid),
		OptionB:       textPtr(row.OptionB.String, row.OptionB.Valid),
		OptionC:       textPtr(row.OptionC.String, row.OptionC.Valid),
		OptionD:       textPtr(row.OptionD.String, row.OptionD.Valid),
		OptionE:       textPtr(row.OptionE.String, row.OptionE.Valid),
		CorrectOption: row.CorrectOption,
		CorrectText:   row.CorrectText.String,
		SourceFile:    row.SourceFile.String,
	}
	if row.QuestionNumber.Valid {
		q.QuestionNumber = int(row.QuestionNumber.Int32)
	}
	return q
}

func textPtr(s string, valid bool) *string {
	if !valid {
		return nil
	}
	return &s
}
