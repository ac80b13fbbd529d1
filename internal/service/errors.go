package service

import (
	"errors"
	"fmt"

	"github.com/stemsi/exstem-assessment/internal/repository"
)

// Error taxonomy surfaced to handlers.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrNotAvailable = errors.New("quiz session is not open")
)

// repoErr wraps a repository error, translating repository sentinels into service ones.
func repoErr(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%s: %w (%v)", op, ErrConflict, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
