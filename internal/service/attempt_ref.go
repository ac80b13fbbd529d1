package service

import (
	"context"
	"fmt"

	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/repository"
)

// AttemptRef names the current attempt of an assignment as the client knows it.
type AttemptRef struct {
	QuizID       int64
	SessionID    int64
	UserID       int64
	AssignmentID int64
}

func (r AttemptRef) validate() error {
	if r.QuizID <= 0 || r.SessionID <= 0 || r.UserID <= 0 || r.AssignmentID <= 0 {
		return fmt.Errorf("%w: quizId, quizSessionId, userId and assignmentId are required", ErrValidation)
	}
	return nil
}

// resolve loads the assignment and checks it belongs to the referenced quiz, session and user.
func (r AttemptRef) resolve(ctx context.Context, q repository.Querier, lock bool) (*model.Assignment, error) {
	var (
		a   *model.Assignment
		err error
	)
	if lock {
		a, err = q.LockAssignment(ctx, r.AssignmentID)
	} else {
		a, err = q.GetAssignment(ctx, r.AssignmentID)
	}
	if err != nil {
		return nil, repoErr("get assignment", err)
	}
	if !a.Matches(r.QuizID, r.SessionID, r.UserID) {
		return nil, fmt.Errorf("assignment %d does not belong to quiz %d, session %d, user %d: %w",
			r.AssignmentID, r.QuizID, r.SessionID, r.UserID, ErrNotFound)
	}
	return a, nil
}
