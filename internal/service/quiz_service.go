package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/repository"
)

// QuizService handles quiz authoring: quizzes, their questions and their sessions.
type QuizService struct {
	store repository.Querier
	log   zerolog.Logger
}

// NewQuizService creates a new QuizService.
func NewQuizService(store repository.Querier, log zerolog.Logger) *QuizService {
	return &QuizService{
		store: store,
		log:   log.With().Str("component", "quiz_service").Logger(),
	}
}

// CreateQuiz creates a new quiz.
func (s *QuizService) CreateQuiz(ctx context.Context, req model.CreateQuizRequest) (*model.Quiz, error) {
	quiz := &model.Quiz{
		Title:            strings.TrimSpace(req.Title),
		TimeLimitMinutes: req.TimeLimitMinutes,
		PassingScore:     req.PassingScore,
		MaxAttempts:      req.MaxAttempts,
	}
	if err := s.store.CreateQuiz(ctx, quiz); err != nil {
		return nil, repoErr("create quiz", err)
	}
	return quiz, nil
}

// AddQuestions appends questions to a quiz's pool. The correct answer must be one of the options.
func (s *QuizService) AddQuestions(ctx context.Context, quizID int64, req model.AddQuestionsRequest) ([]model.Question, error) {
	if _, err := s.store.GetQuiz(ctx, quizID); err != nil {
		return nil, repoErr("get quiz", err)
	}

	questions := make([]model.Question, 0, len(req.Questions))
	for i, q := range req.Questions {
		if !containsOption(q.Options, q.CorrectAnswer) {
			return nil, fmt.Errorf("%w: questions[%d]: correct_answer must match one of the options", ErrValidation, i)
		}
		difficulty := model.Difficulty(q.Difficulty)
		if difficulty == "" {
			difficulty = model.DifficultyMedium
		}
		questions = append(questions, model.Question{
			QuestionText:  q.QuestionText,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
			Difficulty:    difficulty,
			Explanation:   q.Explanation,
		})
	}

	created, err := s.store.CreateQuestions(ctx, quizID, questions)
	if err != nil {
		return nil, repoErr("create questions", err)
	}
	s.log.Info().Int64("quiz_id", quizID).Int("count", len(created)).Msg("Questions added")
	return created, nil
}

func containsOption(options []string, answer string) bool {
	for _, o := range options {
		if Grade(o, answer) {
			return true
		}
	}
	return false
}

// CreateSession schedules a session of a quiz. At most one unscheduled session may exist per quiz.
func (s *QuizService) CreateSession(ctx context.Context, quizID int64, req model.CreateQuizSessionRequest) (*model.QuizSession, error) {
	if req.ScheduledStart != nil && req.ScheduledEnd != nil && !req.ScheduledEnd.After(*req.ScheduledStart) {
		return nil, fmt.Errorf("%w: scheduled_end must be after scheduled_start", ErrValidation)
	}
	if _, err := s.store.GetQuiz(ctx, quizID); err != nil {
		return nil, repoErr("get quiz", err)
	}

	if req.ScheduledStart == nil {
		exists, err := s.store.HasUnscheduledSession(ctx, quizID)
		if err != nil {
			return nil, repoErr("check unscheduled session", err)
		}
		if exists {
			return nil, fmt.Errorf("quiz %d already has an unscheduled session: %w", quizID, ErrConflict)
		}
	}

	sess := &model.QuizSession{
		QuizID:           quizID,
		Title:            strings.TrimSpace(req.Title),
		TimeLimitMinutes: req.TimeLimitMinutes,
		PassingScore:     req.PassingScore,
		MaxQuestions:     req.MaxQuestions,
		ScheduledStart:   req.ScheduledStart,
		ScheduledEnd:     req.ScheduledEnd,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, repoErr("create session", err)
	}
	return sess, nil
}
