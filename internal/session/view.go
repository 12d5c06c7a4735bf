package session

import (
	"github.com/google/uuid"

	"github.com/doctorquest/quiz/internal/question"
	"github.com/doctorquest/quiz/internal/stats"
)

// View is the presentational snapshot of a session.
type View struct {
	SessionID string   `json:"session_id"`
	Subject   string   `json:"subject"`
	Subjects  []string `json:"subjects"`
	Loading   bool     `json:"loading"`

	Total    int `json:"total"`
	Position int `json:"position"`
	Progress int `json:"progress_percent"`

	Question      *QuestionView `json:"question,omitempty"`
	Selected      string        `json:"selected,omitempty"`
	Revealed      bool          `json:"revealed"`
	Correct       *bool         `json:"correct,omitempty"`
	CorrectOption string        `json:"correct_option,omitempty"`
	CorrectText   string        `json:"correct_text,omitempty"`

	Score    int `json:"score"`
	Answered int `json:"answered"`
	Accuracy int `json:"accuracy"`

	CanPrevious bool `json:"can_previous"`
	CanNext     bool `json:"can_next"`

	User  *UserView  `json:"user,omitempty"`
	Stats *StatsView `json:"stats,omitempty"`
}

// QuestionView is the current question without its answer.
type QuestionView struct {
	ID      int64             `json:"id"`
	Subject string            `json:"subject"`
	Text    string            `json:"question_text"`
	Options []question.Option `json:"options"`
}

type UserView struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email,omitempty"`
}

// StatsView is the banner shown to signed-in users with history.
type StatsView struct {
	TotalAnswered int `json:"total_questions_answered"`
	TotalCorrect  int `json:"total_correct_answers"`
	Accuracy      int `json:"accuracy"`
	CurrentStreak int `json:"current_streak"`
	LongestStreak int `json:"longest_streak"`
}

// caller holds t.mu
func (t *Tracker) viewLocked() View {
	s := t.state
	subject := t.subject
	if subject == "" {
		subject = question.AllSubjects
	}

	v := View{
		SessionID:   t.id.String(),
		Subject:     subject,
		Subjects:    append([]string{}, s.Subjects...),
		Loading:     t.loading,
		Total:       len(s.Questions),
		Selected:    s.Selected,
		Revealed:    s.Revealed,
		Score:       s.Score,
		Answered:    s.Answered,
		Accuracy:    stats.Percent(s.Score, s.Answered),
		CanPrevious: s.CanPrevious(),
		CanNext:     s.CanNext(),
	}

	if q, ok := s.Current(); ok {
		v.Position = s.Index + 1
		v.Progress = stats.Percent(v.Position, v.Total)
		v.Question = &QuestionView{
			ID:      q.ID,
			Subject: q.Subject,
			Text:    q.Text,
			Options: q.VisibleOptions(),
		}
		if s.Revealed {
			correct := q.IsCorrect(s.Selected)
			v.Correct = &correct
			v.CorrectOption = q.CorrectOption
			v.CorrectText = q.CorrectText
		}
	}

	if t.user != nil {
		v.User = &UserView{ID: t.user.ID, Email: t.user.Email}
		if t.snapshot != nil {
			v.Stats = &StatsView{
				TotalAnswered: t.snapshot.TotalAnswered,
				TotalCorrect:  t.snapshot.TotalCorrect,
				Accuracy:      t.snapshot.Accuracy(),
				CurrentStreak: t.snapshot.CurrentStreak,
				LongestStreak: t.snapshot.LongestStreak,
			}
		}
	}
	return v
}
