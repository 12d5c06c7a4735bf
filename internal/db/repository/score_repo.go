package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/doctorquest/quiz/internal/db/queries"
)

// ErrNotFound is returned when a single-row lookup matches nothing.
var ErrNotFound = errors.New("record not found")

type scoreStore interface {
	UpsertUserScore(ctx context.Context, arg queries.UpsertUserScoreParams) error
	GetUserStats(ctx context.Context, userID pgtype.UUID) (queries.UserStat, error)
}

// ScoreRepository persists per-question answers and reads the aggregate
// statistics the database maintains from them.
type ScoreRepository struct {
	store scoreStore
}

func NewScoreRepository(store scoreStore) *ScoreRepository {
	return &ScoreRepository{store: store}
}

// UpsertAnswer writes one answer, replacing any earlier answer for the same
// (user, question) pair.
func (r *ScoreRepository) UpsertAnswer(ctx context.Context, params queries.UpsertUserScoreParams) error {
	if err := r.store.UpsertUserScore(ctx, params); err != nil {
		return fmt.Errorf("upsert user score: %w", err)
	}
	return nil
}

// GetStats returns ErrNotFound when the user has no statistics row yet.
func (r *ScoreRepository) GetStats(ctx context.Context, userID uuid.UUID) (queries.UserStat, error) {
	stat, err := r.store.GetUserStats(ctx, pgUUID(userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return queries.UserStat{}, ErrNotFound
		}
		return queries.UserStat{}, fmt.Errorf("get user stats: %w", err)
	}
	return stat, nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}
