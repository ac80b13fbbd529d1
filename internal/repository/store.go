package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// Querier is the data access surface of the assessment flow.
type Querier interface {
	CreateQuiz(ctx context.Context, q *model.Quiz) error
	GetQuiz(ctx context.Context, id int64) (*model.Quiz, error)

	CreateQuestions(ctx context.Context, quizID int64, questions []model.Question) ([]model.Question, error)
	ListActiveQuestions(ctx context.Context, quizID int64) ([]model.Question, error)

	CreateSession(ctx context.Context, s *model.QuizSession) error
	GetSession(ctx context.Context, id int64) (*model.QuizSession, error)
	HasUnscheduledSession(ctx context.Context, quizID int64) (bool, error)

	CreateAssignment(ctx context.Context, a *model.Assignment) error
	GetAssignment(ctx context.Context, id int64) (*model.Assignment, error)
	LockAssignment(ctx context.Context, id int64) (*model.Assignment, error)
	MarkAssignmentStarted(ctx context.Context, id int64, at time.Time) error
	FinishAssignment(ctx context.Context, id int64, sum model.AttemptSummary) error
	Reassign(ctx context.Context, id int64) (int, error)

	EnsureAttempt(ctx context.Context, assignmentID int64, cycle int) (*model.Attempt, error)
	FindAttempt(ctx context.Context, assignmentID int64, cycle int) (*model.Attempt, error)
	LockAttempt(ctx context.Context, assignmentID int64, cycle int) (*model.Attempt, error)
	ListAttempts(ctx context.Context, assignmentID int64) ([]model.Attempt, error)
	MarkAttemptStarted(ctx context.Context, attemptID int64, at time.Time) error
	FinishAttempt(ctx context.Context, attemptID int64, sum model.AttemptSummary) error

	ListAssignedQuestions(ctx context.Context, attemptID int64) ([]model.AssignedQuestion, error)
	InsertAssignedQuestions(ctx context.Context, attemptID int64, questionIDs []int64) error
	RecordAnswerResult(ctx context.Context, assignedQuestionID, answerID int64, correct bool) error
	CountProgress(ctx context.Context, attemptID int64) (model.AttemptProgress, error)

	UpsertAnswer(ctx context.Context, attemptID, questionID int64, value string) (int64, error)
}

// Transactor runs a function against a Querier bound to one transaction.
type Transactor interface {
	Querier
	InTx(ctx context.Context, fn func(q Querier) error) error
}

// Queries implements Querier on any DBTX.
type Queries struct {
	db DBTX
}

// Store is the pool-backed Querier with transaction support.
type Store struct {
	*Queries
	pool *pgxpool.Pool
}

// NewStore creates a new Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		Queries: &Queries{db: pool},
		pool:    pool,
	}
}

// InTx runs fn inside a READ COMMITTED transaction. Any error from fn rolls back everything.
//
// Writers that touch both rows lock the assignment before the attempt. Taking them
// in the other order deadlocks against Start and lets a Reschedule slip in between.
func (s *Store) InTx(ctx context.Context, fn func(q Querier) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(&Queries{db: tx})
	})
}
