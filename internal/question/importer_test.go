package question

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doctorquest/quiz/internal/db/queries"
)

const sampleImport = `
source_file: cardiology-2023.pdf
subject: Cardiology
questions:
  - number: 1
    text: Most common cause of mitral stenosis?
    options:
      A: Rheumatic fever
      B: Endocarditis
      C: ""
    correct: a
  - number: 2
    subject: Neurology
    text: Which nerve innervates the deltoid?
    options: {A: Radial, B: Axillary, C: Median}
    correct: B
    correct_text: Axillary nerve
`

func TestParseImport(t *testing.T) {
	qs, err := ParseImport(strings.NewReader(sampleImport))
	require.NoError(t, err)
	require.Len(t, qs, 2)

	first := qs[0]
	assert.Equal(t, "Cardiology", first.Subject)
	assert.Equal(t, "cardiology-2023.pdf", first.SourceFile)
	assert.Equal(t, "A", first.CorrectOption)
	assert.Equal(t, "Rheumatic fever", first.CorrectText)
	assert.Len(t, first.VisibleOptions(), 2)

	second := qs[1]
	assert.Equal(t, "Neurology", second.Subject)
	assert.Equal(t, "Axillary nerve", second.CorrectText)
}

func TestParseImportRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"correct not an option": "subject: X\nquestions:\n  - text: q\n    options: {A: a, B: b}\n    correct: D\n",
		"unknown key":           "subject: X\nquestions:\n  - text: q\n    options: {A: a, F: b}\n    correct: A\n",
		"missing subject":       "questions:\n  - text: q\n    options: {A: a, B: b}\n    correct: A\n",
		"one option":            "subject: X\nquestions:\n  - text: q\n    options: {A: a}\n    correct: A\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseImport(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

type scanRow func(dest ...any) error

func (f scanRow) Scan(dest ...any) error { return f(dest...) }

// fakeTx records inserts and fails the failAt-th one (1-based) when set.
type fakeTx struct {
	pgx.Tx
	failAt     int
	inserts    [][]any
	committed  bool
	rolledBack bool
}

func (tx *fakeTx) Begin(ctx context.Context) (pgx.Tx, error) { return tx, nil }

func (tx *fakeTx) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	tx.inserts = append(tx.inserts, args)
	if len(tx.inserts) == tx.failAt {
		return scanRow(func(...any) error { return errors.New("constraint violation") })
	}
	return scanRow(func(...any) error { return nil })
}

func (tx *fakeTx) Commit(context.Context) error {
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	if tx.committed || tx.rolledBack {
		return pgx.ErrTxClosed
	}
	tx.rolledBack = true
	return nil
}

func TestImportInsertsEveryQuestion(t *testing.T) {
	qs, err := ParseImport(strings.NewReader(sampleImport))
	require.NoError(t, err)

	tx := &fakeTx{}
	n, err := Import(context.Background(), tx, queries.New(nil), qs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)

	require.Len(t, tx.inserts, 2)
	first := tx.inserts[0]
	assert.Equal(t, pgtype.Int4{Int32: 1, Valid: true}, first[2])
	assert.True(t, first[6].(pgtype.Text).Valid, "blank option is stored as empty text, not null")
	assert.False(t, first[7].(pgtype.Text).Valid)
}

func TestImportRollsBackOnFailure(t *testing.T) {
	qs, err := ParseImport(strings.NewReader(sampleImport))
	require.NoError(t, err)
	qs = append(qs, qs[0])

	tx := &fakeTx{failAt: 2}
	n, err := Import(context.Background(), tx, queries.New(nil), qs)
	assert.ErrorContains(t, err, "insert question 2: constraint violation")
	assert.Zero(t, n)
	assert.True(t, tx.rolledBack)
	assert.False(t, tx.committed)
	assert.Len(t, tx.inserts, 2, "import stops at the first failure")
}

func TestImportBeginFailure(t *testing.T) {
	_, err := Import(context.Background(), failingBeginner{}, queries.New(nil), nil)
	assert.ErrorContains(t, err, "pool closed")
}

type failingBeginner struct{}

func (failingBeginner) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("pool closed")
}
