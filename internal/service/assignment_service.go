package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/repository"
)

// AssignmentService manages assignments from the administrator side.
type AssignmentService struct {
	store repository.Transactor
	log   zerolog.Logger
}

// NewAssignmentService creates a new AssignmentService.
func NewAssignmentService(store repository.Transactor, log zerolog.Logger) *AssignmentService {
	return &AssignmentService{
		store: store,
		log:   log.With().Str("component", "assignment_service").Logger(),
	}
}

// AssignmentResult is the administrator view of an assignment and every attempt it had.
type AssignmentResult struct {
	Assignment *model.Assignment        `json:"assignment"`
	Attempts   []model.Attempt          `json:"attempts"`
	Questions  []model.AssignedQuestion `json:"questions"`
}

// Create assigns a quiz session to a user.
func (s *AssignmentService) Create(ctx context.Context, req model.CreateAssignmentRequest) (*model.Assignment, error) {
	sess, err := s.store.GetSession(ctx, req.QuizSessionID)
	if err != nil {
		return nil, repoErr("get session", err)
	}

	a := &model.Assignment{
		QuizSessionID: sess.ID,
		QuizID:        sess.QuizID,
		UserID:        req.UserID,
	}
	if err := s.store.CreateAssignment(ctx, a); err != nil {
		return nil, repoErr("create assignment", err)
	}

	s.log.Info().Int64("assignment_id", a.ID).Int64("user_id", a.UserID).Int64("session_id", a.QuizSessionID).Msg("Assignment created")
	return a, nil
}

// Reschedule opens a new attempt cycle. Earlier attempts keep their questions and answers.
func (s *AssignmentService) Reschedule(ctx context.Context, assignmentID int64) (*model.Assignment, error) {
	var out *model.Assignment
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		a, err := q.LockAssignment(ctx, assignmentID)
		if err != nil {
			return repoErr("lock assignment", err)
		}
		quiz, err := q.GetQuiz(ctx, a.QuizID)
		if err != nil {
			return repoErr("get quiz", err)
		}
		if quiz.MaxAttempts > 0 && a.Reassigned+1 >= quiz.MaxAttempts {
			return fmt.Errorf("assignment %d used all %d attempts: %w", a.ID, quiz.MaxAttempts, ErrConflict)
		}

		cycle, err := q.Reassign(ctx, a.ID)
		if err != nil {
			return repoErr("reassign", err)
		}
		if _, err := q.EnsureAttempt(ctx, a.ID, cycle); err != nil {
			return repoErr("ensure attempt", err)
		}

		out, err = q.GetAssignment(ctx, a.ID)
		if err != nil {
			return repoErr("get assignment", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("assignment_id", out.ID).Int("cycle", out.Reassigned).Msg("Assignment rescheduled")
	return out, nil
}

// Result returns the assignment, all its attempts and the graded questions of the current one.
func (s *AssignmentService) Result(ctx context.Context, assignmentID int64) (*AssignmentResult, error) {
	a, err := s.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, repoErr("get assignment", err)
	}
	attempts, err := s.store.ListAttempts(ctx, a.ID)
	if err != nil {
		return nil, repoErr("list attempts", err)
	}

	res := &AssignmentResult{
		Assignment: a,
		Attempts:   attempts,
		Questions:  []model.AssignedQuestion{},
	}
	for _, at := range attempts {
		if at.Cycle != a.Reassigned {
			continue
		}
		qs, err := s.store.ListAssignedQuestions(ctx, at.ID)
		if err != nil {
			return nil, repoErr("list assigned questions", err)
		}
		if qs != nil {
			res.Questions = qs
		}
	}
	return res, nil
}
