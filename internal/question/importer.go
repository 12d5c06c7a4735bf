package question

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"gopkg.in/yaml.v3"

	"github.com/doctorquest/quiz/internal/db/queries"
	"github.com/doctorquest/quiz/internal/db/repository"
)

// ImportFile is the YAML layout accepted by the importer:
//
//	source_file: cardiology-2023.pdf
//	subject: Cardiology
//	questions:
//	  - number: 1
//	    text: Most common cause of mitral stenosis?
//	    options: {A: Rheumatic fever, B: Endocarditis}
//	    correct: A
//	    correct_text: Rheumatic fever
type ImportFile struct {
	SourceFile string           `yaml:"source_file"`
	Subject    string           `yaml:"subject"`
	Questions  []ImportQuestion `yaml:"questions"`
}

type ImportQuestion struct {
	Number      int               `yaml:"number"`
	Subject     string            `yaml:"subject"`
	Text        string            `yaml:"text"`
	Options     map[string]string `yaml:"options"`
	Correct     string            `yaml:"correct"`
	CorrectText string            `yaml:"correct_text"`
}

// ParseImport decodes and validates an import document.
func ParseImport(r io.Reader) ([]Question, error) {
	var file ImportFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode import: %w", err)
	}

	out := make([]Question, 0, len(file.Questions))
	for i, iq := range file.Questions {
		q := Question{
			Subject:        strings.TrimSpace(iq.Subject),
			SourceFile:     file.SourceFile,
			QuestionNumber: iq.Number,
			Text:           strings.TrimSpace(iq.Text),
			CorrectOption:  strings.ToUpper(strings.TrimSpace(iq.Correct)),
			CorrectText:    iq.CorrectText,
		}
		if q.Subject == "" {
			q.Subject = strings.TrimSpace(file.Subject)
		}
		for key, text := range iq.Options {
			switch strings.ToUpper(key) {
			case "A":
				q.OptionA = &text
			case "B":
				q.OptionB = &text
			case "C":
				q.OptionC = &text
			case "D":
				q.OptionD = &text
			case "E":
				q.OptionE = &text
			default:
				return nil, fmt.Errorf("question %d: unknown option key %q", i+1, key)
			}
		}
		if err := validateImported(q); err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		if q.CorrectText == "" {
			for _, opt := range q.VisibleOptions() {
				if opt.Key == q.CorrectOption {
					q.CorrectText = opt.Text
				}
			}
		}
		out = append(out, q)
	}
	return out, nil
}

func validateImported(q Question) error {
	switch {
	case q.Subject == "":
		return fmt.Errorf("subject required")
	case q.Text == "":
		return fmt.Errorf("text required")
	case len(q.VisibleOptions()) < 2:
		return fmt.Errorf("at least two options required")
	case !q.HasOption(q.CorrectOption):
		return fmt.Errorf("correct option %q is not among the options", q.CorrectOption)
	}
	return nil
}

// TxBeginner is satisfied by *pgxpool.Pool and *pgx.Conn.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Import inserts parsed questions in a single transaction and returns how many
// were stored. On any failure nothing is committed and the count is zero.
func Import(ctx context.Context, db TxBeginner, q *queries.Queries, qs []Question) (int, error) {
	err := pgx.BeginFunc(ctx, db, func(tx pgx.Tx) error {
		repo := repository.NewQuestionRepository(q.WithTx(tx))
		for i, item := range qs {
			if _, err := repo.Insert(ctx, toInsertParams(item)); err != nil {
				return fmt.Errorf("insert question %d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(qs), nil
}

func toInsertParams(q Question) queries.InsertQuestionParams {
	return queries.InsertQuestionParams{
		Subject:        q.Subject,
		SourceFile:     pgText(q.SourceFile),
		QuestionNumber: pgtype.Int4{Int32: int32(q.QuestionNumber), Valid: q.QuestionNumber > 0},
		QuestionText:   q.Text,
		OptionA:        pgTextPtr(q.OptionA),
		OptionB:        pgTextPtr(q.OptionB),
		OptionC:        pgTextPtr(q.OptionC),
		OptionD:        pgTextPtr(q.OptionD),
		OptionE:        pgTextPtr(q.OptionE),
		CorrectOption:  q.CorrectOption,
		CorrectText:    pgText(q.CorrectText),
	}
}

func pgText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func pgTextPtr(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}
