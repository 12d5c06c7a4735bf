package queries

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const upsertUserScore = `INSERT INTO user_scores (user_id, question_id, subject, is_correct)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, question_id) DO UPDATE SET
	subject = EXCLUDED.subject,
	is_correct = EXCLUDED.is_correct,
	answered_at = NOW()`

type UpsertUserScoreParams struct {
	UserID     pgtype.UUID
	QuestionID string
	Subject    string
	IsCorrect  bool
}

func (q *Queries) UpsertUserScore(ctx context.Context, arg UpsertUserScoreParams) error {
	_, err := q.db.Exec(ctx, upsertUserScore,
		arg.UserID,
		arg.QuestionID,
		arg.Subject,
		arg.IsCorrect,
	)
	return err
}

const getUserStats = `SELECT user_id, total_questions_answered, total_correct_answers,
	current_streak, longest_streak, last_answered_at
FROM user_stats
WHERE user_id = $1`

func (q *Queries) GetUserStats(ctx context.Context, userID pgtype.UUID) (UserStat, error) {
	row := q.db.QueryRow(ctx, getUserStats, userID)
	var i UserStat
	err := row.Scan(
		&i.UserID,
		&i.TotalQuestionsAnswered,
		&i.TotalCorrectAnswers,
		&i.CurrentStreak,
		&i.LongestStreak,
		&i.LastAnsweredAt,
	)
	return i, err
}
