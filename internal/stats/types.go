package stats

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNoHistory means the user has never answered a question.
var ErrNoHistory = errors.New("no answer history")

// Snapshot is a user's aggregate statistics as maintained by the database.
type Snapshot struct {
	UserID         uuid.UUID  `json:"user_id"`
	TotalAnswered  int        `json:"total_questions_answered"`
	TotalCorrect   int        `json:"total_correct_answers"`
	CurrentStreak  int        `json:"current_streak"`
	LongestStreak  int        `json:"longest_streak"`
	LastAnsweredAt *time.Time `json:"last_answered_at,omitempty"`
}

// Accuracy is the rounded percentage of correct answers, 0 with no answers.
func (s Snapshot) Accuracy() int {
	return Percent(s.TotalCorrect, s.TotalAnswered)
}

// AnswerRecord is one answer to persist for a signed-in user.
type AnswerRecord struct {
	UserID     uuid.UUID
	QuestionID int64
	Subject    string
	Correct    bool
}

// Percent returns part/whole as a percentage rounded half up. A zero whole
// yields 0.
func Percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return (part*200 + whole) / (2 * whole)
}
