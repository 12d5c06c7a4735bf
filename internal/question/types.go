package question

import "strings"

// AllSubjects is the filter value that disables subject filtering.
const AllSubjects = "all"

// OptionKeys lists the answer labels in display order.
var OptionKeys = []string{"A", "B", "C", "D", "E"}

// Question is one multiple-choice question as stored in the questions table.
type Question struct {
	ID             int64   `json:"id"`
	Subject        string  `json:"subject"`
	SourceFile     string  `json:"source_file,omitempty"`
	QuestionNumber int     `json:"question_number,omitempty"`
	Text           string  `json:"question_text"`
	OptionA        *string `json:"option_a,omitempty"`
	OptionB        *string `json:"option_b,omitempty"`
	OptionC        *string `json:"option_c,omitempty"`
	OptionD        *string `json:"option_d,omitempty"`
	OptionE        *string `json:"option_e,omitempty"`
	CorrectOption  string  `json:"correct_option"`
	CorrectText    string  `json:"correct_text,omitempty"`
}

// Option is a displayable answer choice.
type Option struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// VisibleOptions returns the options in A..E order, skipping missing or blank ones.
func (q Question) VisibleOptions() []Option {
	raw := [...]*string{q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.OptionE}
	out := make([]Option, 0, len(raw))
	for i, text := range raw {
		if text == nil || strings.TrimSpace(*text) == "" {
			continue
		}
		out = append(out, Option{Key: OptionKeys[i], Text: *text})
	}
	return out
}

// HasOption reports whether key is one of the visible options.
func (q Question) HasOption(key string) bool {
	for _, opt := range q.VisibleOptions() {
		if opt.Key == key {
			return true
		}
	}
	return false
}

// IsCorrect compares the selected key against the recorded correct option.
func (q Question) IsCorrect(key string) bool {
	return key == q.CorrectOption
}

// Subjects returns the distinct subjects in order of first occurrence.
func Subjects(questions []Question) []string {
	seen := make(map[string]struct{}, len(questions))
	subjects := make([]string, 0)
	for _, q := range questions {
		if _, ok := seen[q.Subject]; ok {
			continue
		}
		seen[q.Subject] = struct{}{}
		subjects = append(subjects, q.Subject)
	}
	return subjects
}

// NormalizeSubject maps the "all" sentinel and blank input to the empty filter.
func NormalizeSubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == AllSubjects {
		return ""
	}
	return subject
}
