package session

import "github.com/doctorquest/quiz/internal/question"

// Direction selects the neighbour question for Advance.
type Direction int

const (
	Next Direction = iota
	Previous
)

// ParseDirection maps "next" and "previous" to a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "next":
		return Next, true
	case "previous":
		return Previous, true
	}
	return 0, false
}

// State is the progress through one loaded question sequence. Transitions are
// pure: each returns the new State and leaves the receiver untouched.
//
// Revealed implies a non-empty Selected, and Score <= Answered <= len(Questions).
type State struct {
	Questions []question.Question
	Subjects  []string
	Index     int
	Selected  string
	Revealed  bool
	Score     int
	Answered  int
}

// Result is the outcome of a submission.
type Result struct {
	QuestionID    int64
	Subject       string
	Selected      string
	Correct       bool
	CorrectOption string
	CorrectText   string
}

// Current returns the question at Index.
func (s State) Current() (question.Question, bool) {
	if s.Index < 0 || s.Index >= len(s.Questions) {
		return question.Question{}, false
	}
	return s.Questions[s.Index], true
}

// Select records key as the chosen answer. Locked once the result is revealed.
func (s State) Select(key string) State {
	if s.Revealed || key == "" {
		return s
	}
	if _, ok := s.Current(); !ok {
		return s
	}
	s.Selected = key
	return s
}

// Submit reveals the result for the selected answer and updates the counters.
// It returns a nil Result when nothing is selected or the result is already
// revealed.
func (s State) Submit() (State, *Result) {
	if s.Selected == "" || s.Revealed {
		return s, nil
	}
	q, ok := s.Current()
	if !ok {
		return s, nil
	}

	correct := q.IsCorrect(s.Selected)
	s.Revealed = true
	s.Answered++
	if correct {
		s.Score++
	}
	return s, &Result{
		QuestionID:    q.ID,
		Subject:       q.Subject,
		Selected:      s.Selected,
		Correct:       correct,
		CorrectOption: q.CorrectOption,
		CorrectText:   q.CorrectText,
	}
}

// Advance moves one question in dir. At either bound it is a no-op; a
// successful move clears the selection and hides the result.
func (s State) Advance(dir Direction) State {
	target := s.Index
	switch dir {
	case Next:
		target++
	case Previous:
		target--
	}
	if target < 0 || target >= len(s.Questions) || target == s.Index {
		return s
	}
	s.Index = target
	s.Selected = ""
	s.Revealed = false
	return s
}

// Reset returns to the first question with zeroed counters. The loaded
// questions are kept.
func (s State) Reset() State {
	s.Index = 0
	s.Selected = ""
	s.Revealed = false
	s.Score = 0
	s.Answered = 0
	return s
}

// Loaded replaces the question sequence, recomputes the subjects from it and
// resets progress.
func (s State) Loaded(questions []question.Question) State {
	s.Questions = questions
	s.Subjects = question.Subjects(questions)
	return s.Reset()
}

// CanPrevious reports whether Advance(Previous) would move.
func (s State) CanPrevious() bool {
	return s.Index > 0
}

// CanNext reports whether Advance(Next) would move.
func (s State) CanNext() bool {
	return s.Index < len(s.Questions)-1
}
