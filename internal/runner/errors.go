package runner

import (
	"errors"
	"fmt"
)

var (
	ErrNoQuestions      = errors.New("runner: exam has no questions")
	ErrWrongPhase       = errors.New("runner: operation not allowed in the current phase")
	ErrSubmitInProgress = errors.New("runner: submission already in progress")
	ErrUnknownQuestion  = errors.New("runner: question is not part of this exam")
	ErrOutOfRange       = errors.New("runner: question index out of range")
)

// IncompleteError rejects a manual submission while questions are unanswered.
// FirstUnanswered is the zero-based index the runner moved to.
type IncompleteError struct {
	Unanswered      int
	FirstUnanswered int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("%d question(s) unanswered, first unanswered is #%d", e.Unanswered, e.FirstUnanswered+1)
}
