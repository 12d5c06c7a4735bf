package repository

import (
	"context"

	"github.com/doctorquest/quiz/internal/db/queries"
)

type questionStore interface {
	ListQuestions(ctx context.Context) ([]queries.Question, error)
	ListQuestionsBySubject(ctx context.Context, subject string) ([]queries.Question, error)
	InsertQuestion(ctx context.Context, arg queries.InsertQuestionParams) (queries.Question, error)
}

// QuestionRepository wraps question queries.
type QuestionRepository struct {
	store questionStore
}

func NewQuestionRepository(store questionStore) *QuestionRepository {
	return &QuestionRepository{store: store}
}

// List returns questions ordered by ascending id. An empty subject means no filter.
func (r *QuestionRepository) List(ctx context.Context, subject string) ([]queries.Question, error) {
	if subject == "" {
		return r.store.ListQuestions(ctx)
	}
	return r.store.ListQuestionsBySubject(ctx, subject)
}

// Insert stores an imported question.
func (r *QuestionRepository) Insert(ctx context.Context, params queries.InsertQuestionParams) (queries.Question, error) {
	return r.store.InsertQuestion(ctx, params)
}
