package stats

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/doctorquest/quiz/internal/db/queries"
	"github.com/doctorquest/quiz/internal/db/repository"
)

// SnapshotPublisher fans refreshed snapshots out to other listeners.
type SnapshotPublisher interface {
	Publish(ctx context.Context, snap Snapshot) error
}

// Service records answers and reads aggregate statistics.
type Service struct {
	repo      *repository.ScoreRepository
	publisher SnapshotPublisher
	logger    zerolog.Logger
}

// NewService wires the score repository. publisher may be nil.
func NewService(repo *repository.ScoreRepository, publisher SnapshotPublisher, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger.With().Str("component", "stats").Logger(),
	}
}

// RecordAnswer upserts one answer; a repeat answer to the same question
// replaces the earlier one.
func (s *Service) RecordAnswer(ctx context.Context, rec AnswerRecord) error {
	return s.repo.UpsertAnswer(ctx, queries.UpsertUserScoreParams{
		UserID:     pgUUID(rec.UserID),
		QuestionID: strconv.FormatInt(rec.QuestionID, 10),
		Subject:    rec.Subject,
		IsCorrect:  rec.Correct,
	})
}

// Fetch reads the user's statistics. ErrNoHistory is returned when the user
// has no statistics row.
func (s *Service) Fetch(ctx context.Context, userID uuid.UUID) (Snapshot, error) {
	row, err := s.repo.GetStats(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Snapshot{}, ErrNoHistory
		}
		return Snapshot{}, err
	}
	return fromRow(userID, row), nil
}

// Refresh fetches the snapshot and publishes it. Publish failures are logged
// and do not fail the refresh.
func (s *Service) Refresh(ctx context.Context, userID uuid.UUID) (Snapshot, error) {
	snap, err := s.Fetch(ctx, userID)
	if err != nil {
		return snap, err
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, snap); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("stats publish failed")
		}
	}
	return snap, nil
}

func fromRow(userID uuid.UUID, row queries.UserStat) Snapshot {
	snap := Snapshot{
		UserID:        userID,
		TotalAnswered: int(row.TotalQuestionsAnswered),
		TotalCorrect:  int(row.TotalCorrectAnswers),
		CurrentStreak: int(row.CurrentStreak),
		LongestStreak: int(row.LongestStreak),
	}
	if row.LastAnsweredAt.Valid {
		t := row.LastAnsweredAt.Time
		snap.LastAnsweredAt = &t
	}
	return snap
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}
