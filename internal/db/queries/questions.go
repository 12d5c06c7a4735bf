package queries

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const questionColumns = `id, subject, source_file, question_number, question_text,
	option_a, option_b, option_c, option_d, option_e, correct_option, correct_text`

const listQuestions = `SELECT ` + questionColumns + `
FROM questions
ORDER BY id ASC`

func (q *Queries) ListQuestions(ctx context.Context) ([]Question, error) {
	rows, err := q.db.Query(ctx, listQuestions)
	if err != nil {
		return nil, err
	}
	return collectQuestions(rows)
}

const listQuestionsBySubject = `SELECT ` + questionColumns + `
FROM questions
WHERE subject = $1
ORDER BY id ASC`

func (q *Queries) ListQuestionsBySubject(ctx context.Context, subject string) ([]Question, error) {
	rows, err := q.db.Query(ctx, listQuestionsBySubject, subject)
	if err != nil {
		return nil, err
	}
	return collectQuestions(rows)
}

const insertQuestion = `INSERT INTO questions (
	subject, source_file, question_number, question_text,
	option_a, option_b, option_c, option_d, option_e, correct_option, correct_text
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ` + questionColumns

type InsertQuestionParams struct {
	Subject        string
	SourceFile     pgtype.Text
	QuestionNumber pgtype.Int4
	QuestionText   string
	OptionA        pgtype.Text
	OptionB        pgtype.Text
	OptionC        pgtype.Text
	OptionD        pgtype.Text
	OptionE        pgtype.Text
	CorrectOption  string
	CorrectText    pgtype.Text
}

func (q *Queries) InsertQuestion(ctx context.Context, arg InsertQuestionParams) (Question, error) {
	row := q.db.QueryRow(ctx, insertQuestion,
		arg.Subject,
		arg.SourceFile,
		arg.QuestionNumber,
		arg.QuestionText,
		arg.OptionA,
		arg.OptionB,
		arg.OptionC,
		arg.OptionD,
		arg.OptionE,
		arg.CorrectOption,
		arg.CorrectText,
	)
	var i Question
	err := scanQuestion(row, &i)
	return i, err
}

func collectQuestions(rows pgx.Rows) ([]Question, error) {
	defer rows.Close()
	var items []Question
	for rows.Next() {
		var i Question
		if err := scanQuestion(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanQuestion(row pgx.Row, i *Question) error {
	return row.Scan(
		&i.ID,
		&i.Subject,
		&i.SourceFile,
		&i.QuestionNumber,
		&i.QuestionText,
		&i.OptionA,
		&i.OptionB,
		&i.OptionC,
		&i.OptionD,
		&i.OptionE,
		&i.CorrectOption,
		&i.CorrectText,
	)
}
