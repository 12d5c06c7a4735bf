package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/doctorquest/quiz/internal/db/queries"
)

type mockQuestionStore struct {
	mock.Mock
}

func (m *mockQuestionStore) ListQuestions(ctx context.Context) ([]queries.Question, error) {
	args := m.Called(ctx)
	return args.Get(0).([]queries.Question), args.Error(1)
}

func (m *mockQuestionStore) ListQuestionsBySubject(ctx context.Context, subject string) ([]queries.Question, error) {
	args := m.Called(ctx, subject)
	return args.Get(0).([]queries.Question), args.Error(1)
}

func (m *mockQuestionStore) InsertQuestion(ctx context.Context, arg queries.InsertQuestionParams) (queries.Question, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(queries.Question), args.Error(1)
}

func TestQuestionRepository_ListAll(t *testing.T) {
	store := new(mockQuestionStore)
	repo := NewQuestionRepository(store)

	expect := []queries.Question{{ID: 1, Subject: "Cardiology"}, {ID: 2, Subject: "Neurology"}}
	store.On("ListQuestions", mock.Anything).Return(expect, nil)

	got, err := repo.List(context.Background(), "")
	assert.NoError(t, err)
	assert.Equal(t, expect, got)
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "ListQuestionsBySubject", mock.Anything, mock.Anything)
}

func TestQuestionRepository_ListBySubject(t *testing.T) {
	store := new(mockQuestionStore)
	repo := NewQuestionRepository(store)

	expect := []queries.Question{{ID: 2, Subject: "Neurology"}}
	store.On("ListQuestionsBySubject", mock.Anything, "Neurology").Return(expect, nil)

	got, err := repo.List(context.Background(), "Neurology")
	assert.NoError(t, err)
	assert.Equal(t, expect, got)
	store.AssertExpectations(t)
}

func TestQuestionRepository_Insert(t *testing.T) {
	store := new(mockQuestionStore)
	repo := NewQuestionRepository(store)

	params := queries.InsertQuestionParams{
		Subject:       "Cardiology",
		QuestionText:  "Most common cause of mitral stenosis?",
		OptionA:       pgtype.Text{String: "Rheumatic fever", Valid: true},
		OptionB:       pgtype.Text{String: "Endocarditis", Valid: true},
		CorrectOption: "A",
	}
	expect := queries.Question{ID: 7, Subject: "Cardiology", CorrectOption: "A"}
	store.On("InsertQuestion", mock.Anything, params).Return(expect, nil)

	got, err := repo.Insert(context.Background(), params)
	assert.NoError(t, err)
	assert.Equal(t, expect, got)
	store.AssertExpectations(t)
}
