package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/repository"
)

// QuestionAssignmentService selects and fixes the question set of each attempt.
type QuestionAssignmentService struct {
	store               repository.Transactor
	cache               AttemptCache
	defaultMaxQuestions int
	shuffle             func(n int, swap func(i, j int))
	log                 zerolog.Logger
}

// NewQuestionAssignmentService creates a new QuestionAssignmentService.
func NewQuestionAssignmentService(store repository.Transactor, cache AttemptCache, cfg *config.Config, log zerolog.Logger) *QuestionAssignmentService {
	return &QuestionAssignmentService{
		store:               store,
		cache:               cache,
		defaultMaxQuestions: cfg.DefaultMaxQuestions,
		shuffle:             rand.Shuffle,
		log:                 log.With().Str("component", "question_assignment_service").Logger(),
	}
}

// Assign returns the question set of the current attempt, selecting it on first call.
// Repeated calls for the same attempt return the same questions in the same order.
func (s *QuestionAssignmentService) Assign(ctx context.Context, ref AttemptRef) ([]model.AssignedQuestionForStudent, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}

	attemptID, rows, err := s.assign(ctx, ref)
	if errors.Is(err, ErrConflict) {
		// A concurrent first load won the insert; its set is now committed.
		s.log.Warn().Int64("assignment_id", ref.AssignmentID).Msg("Assignment insert conflict, re-fetching")
		attemptID, rows, err = s.assign(ctx, ref)
	}
	if err != nil {
		return nil, err
	}

	out := studentView(rows)
	if err := s.cache.SetQuestions(ctx, attemptID, out); err != nil {
		s.log.Warn().Err(err).Int64("attempt_id", attemptID).Msg("Failed to cache assigned questions")
	}
	return out, nil
}

func (s *QuestionAssignmentService) assign(ctx context.Context, ref AttemptRef) (int64, []model.AssignedQuestion, error) {
	var (
		attemptID int64
		rows      []model.AssignedQuestion
	)
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		a, err := ref.resolve(ctx, q, true)
		if err != nil {
			return err
		}

		attempt, err := q.EnsureAttempt(ctx, a.ID, a.Reassigned)
		if err != nil {
			return repoErr("ensure attempt", err)
		}
		attemptID = attempt.ID

		rows, err = q.ListAssignedQuestions(ctx, attempt.ID)
		if err != nil {
			return repoErr("list assigned questions", err)
		}
		if len(rows) > 0 {
			return nil
		}

		sess, err := q.GetSession(ctx, a.QuizSessionID)
		if err != nil {
			return repoErr("get session", err)
		}
		pool, err := q.ListActiveQuestions(ctx, a.QuizID)
		if err != nil {
			return repoErr("list active questions", err)
		}
		if len(pool) == 0 {
			return fmt.Errorf("quiz %d has no active questions: %w", a.QuizID, ErrNotFound)
		}

		ids := s.selectQuestions(pool, sess.EffectiveMaxQuestions(s.defaultMaxQuestions))
		if err := q.InsertAssignedQuestions(ctx, attempt.ID, ids); err != nil {
			return repoErr("insert assigned questions", err)
		}

		rows, err = q.ListAssignedQuestions(ctx, attempt.ID)
		if err != nil {
			return repoErr("list assigned questions", err)
		}

		s.log.Info().
			Int64("assignment_id", a.ID).
			Int("cycle", a.Reassigned).
			Int("assigned", len(ids)).
			Int("pool", len(pool)).
			Msg("Questions assigned")
		return nil
	})
	return attemptID, rows, err
}

// selectQuestions shuffles the pool and keeps the first limit question IDs.
func (s *QuestionAssignmentService) selectQuestions(pool []model.Question, limit int) []int64 {
	ids := make([]int64, len(pool))
	for i := range pool {
		ids[i] = pool[i].ID
	}
	s.shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	return ids
}

// Fetch returns the already assigned questions of the current attempt without assigning.
// An attempt with nothing assigned yields an empty slice.
func (s *QuestionAssignmentService) Fetch(ctx context.Context, ref AttemptRef) ([]model.AssignedQuestionForStudent, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}

	a, err := ref.resolve(ctx, s.store, false)
	if err != nil {
		return nil, err
	}

	attempt, err := s.store.FindAttempt(ctx, a.ID, a.Reassigned)
	if errors.Is(err, repository.ErrNotFound) {
		return []model.AssignedQuestionForStudent{}, nil
	}
	if err != nil {
		return nil, repoErr("find attempt", err)
	}

	cached, ok, err := s.cache.GetQuestions(ctx, attempt.ID)
	if err != nil {
		s.log.Warn().Err(err).Int64("attempt_id", attempt.ID).Msg("Question cache read failed, using database")
	} else if ok {
		return cached, nil
	}

	rows, err := s.store.ListAssignedQuestions(ctx, attempt.ID)
	if err != nil {
		return nil, repoErr("list assigned questions", err)
	}
	out := studentView(rows)
	if len(out) > 0 {
		if err := s.cache.SetQuestions(ctx, attempt.ID, out); err != nil {
			s.log.Warn().Err(err).Int64("attempt_id", attempt.ID).Msg("Failed to self-heal question cache")
		}
	}
	return out, nil
}

func studentView(rows []model.AssignedQuestion) []model.AssignedQuestionForStudent {
	out := make([]model.AssignedQuestionForStudent, len(rows))
	for i := range rows {
		out[i] = rows[i].ForStudent()
	}
	return out
}
