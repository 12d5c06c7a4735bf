package queries

import "github.com/jackc/pgx/v5/pgtype"

type Question struct {
	ID             int64
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

type UserScore struct {
	UserID     pgtype.UUID
	QuestionID string
	Subject    string
	IsCorrect  bool
	AnsweredAt pgtype.Timestamptz
}

type UserStat struct {
	UserID                 pgtype.UUID
	TotalQuestionsAnswered int32
	TotalCorrectAnswers    int32
	CurrentStreak          int32
	LongestStreak          int32
	LastAnsweredAt         pgtype.Timestamptz
}
