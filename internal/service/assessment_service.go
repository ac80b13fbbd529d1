package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/repository"
)

// AssessmentService starts, inspects and ends attempts.
type AssessmentService struct {
	store            repository.Transactor
	cache            AttemptCache
	events           EventPublisher
	defaultTimeLimit time.Duration
	now              func() time.Time
	log              zerolog.Logger
}

// NewAssessmentService creates a new AssessmentService.
func NewAssessmentService(
	store repository.Transactor,
	cache AttemptCache,
	events EventPublisher,
	cfg *config.Config,
	log zerolog.Logger,
) *AssessmentService {
	return &AssessmentService{
		store:            store,
		cache:            cache,
		events:           events,
		defaultTimeLimit: cfg.DefaultTimeLimit,
		now:              time.Now,
		log:              log.With().Str("component", "assessment_service").Logger(),
	}
}

// EndParams is the input of End.
type EndParams struct {
	AttemptRef
	PassingScore *float64
	Answers      []model.SubmittedAnswer
	Forced       bool
	Reason       model.CompletionReason
}

// Start marks the current attempt as in progress and returns its start time.
// Starting an attempt that is already running returns the original start time.
func (s *AssessmentService) Start(ctx context.Context, ref AttemptRef) (time.Time, error) {
	if err := ref.validate(); err != nil {
		return time.Time{}, err
	}

	var (
		a         *model.Assignment
		attemptID int64
		startedAt time.Time
		fresh     bool
	)
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		var err error
		a, err = ref.resolve(ctx, q, true)
		if err != nil {
			return err
		}
		if a.Status.Finished() {
			return fmt.Errorf("attempt %d of assignment %d already finished: %w", a.Reassigned, a.ID, ErrConflict)
		}

		attempt, err := q.EnsureAttempt(ctx, a.ID, a.Reassigned)
		if err != nil {
			return repoErr("ensure attempt", err)
		}
		attemptID = attempt.ID
		if attempt.StartedAt != nil {
			startedAt = *attempt.StartedAt
			return nil
		}

		sess, err := q.GetSession(ctx, a.QuizSessionID)
		if err != nil {
			return repoErr("get session", err)
		}
		now := s.now().UTC().Truncate(time.Second)
		if !sess.OpenAt(now) {
			return fmt.Errorf("session %d: %w", sess.ID, ErrNotAvailable)
		}

		if err := q.MarkAttemptStarted(ctx, attempt.ID, now); err != nil {
			return repoErr("mark attempt started", err)
		}
		if err := q.MarkAssignmentStarted(ctx, a.ID, now); err != nil {
			return repoErr("mark assignment started", err)
		}
		startedAt, fresh = now, true
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}

	if err := s.cache.SetStartedAt(ctx, attemptID, startedAt); err != nil {
		s.log.Warn().Err(err).Int64("attempt_id", attemptID).Msg("Failed to cache start time")
	}
	if fresh {
		s.log.Info().Int64("assignment_id", a.ID).Int64("user_id", a.UserID).Int("cycle", a.Reassigned).Msg("Attempt started")
		s.publish(ctx, a.QuizSessionID, model.MonitorEvent{
			Type:         model.MonitorEventStarted,
			AssignmentID: a.ID,
			UserID:       a.UserID,
			Cycle:        a.Reassigned,
			Status:       model.AssignmentStatusInProgress,
			At:           startedAt,
		})
	}
	return startedAt, nil
}

// State reports the server view of the current attempt, including the remaining time.
func (s *AssessmentService) State(ctx context.Context, assignmentID, userID int64) (*model.AssessmentState, error) {
	if assignmentID <= 0 || userID <= 0 {
		return nil, fmt.Errorf("%w: assignmentId and userId are required", ErrValidation)
	}

	a, err := s.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, repoErr("get assignment", err)
	}
	if a.UserID != userID {
		return nil, fmt.Errorf("assignment %d does not belong to user %d: %w", assignmentID, userID, ErrNotFound)
	}

	sess, err := s.store.GetSession(ctx, a.QuizSessionID)
	if err != nil {
		return nil, repoErr("get session", err)
	}
	quiz, err := s.store.GetQuiz(ctx, a.QuizID)
	if err != nil {
		return nil, repoErr("get quiz", err)
	}
	limit := sess.EffectiveTimeLimit(quiz, s.defaultTimeLimit)

	state := &model.AssessmentState{
		AssignmentID:     a.ID,
		Cycle:            a.Reassigned,
		Status:           a.Status,
		TimeLimitSeconds: int(limit.Seconds()),
		RemainingSeconds: int(limit.Seconds()),
	}

	attempt, err := s.store.FindAttempt(ctx, a.ID, a.Reassigned)
	if errors.Is(err, repository.ErrNotFound) {
		return state, nil
	}
	if err != nil {
		return nil, repoErr("find attempt", err)
	}
	state.AttemptID = attempt.ID

	startedAt, ok, err := s.cache.GetStartedAt(ctx, attempt.ID)
	if err != nil {
		s.log.Warn().Err(err).Int64("attempt_id", attempt.ID).Msg("Start time cache read failed, using database")
	}
	if !ok && attempt.StartedAt != nil {
		startedAt, ok = *attempt.StartedAt, true
		if err := s.cache.SetStartedAt(ctx, attempt.ID, startedAt); err != nil {
			s.log.Warn().Err(err).Int64("attempt_id", attempt.ID).Msg("Failed to self-heal start time cache")
		}
	}
	if !ok {
		return state, nil
	}
	state.StartedAt = &startedAt

	remaining := limit - s.now().Sub(startedAt)
	if remaining < 0 || a.Status.Finished() {
		remaining = 0
	}
	state.RemainingSeconds = int(remaining.Seconds())
	return state, nil
}

// End grades the submitted answers of the current attempt and closes it.
// Everything is written in one transaction holding the assignment and attempt
// row locks, so a concurrent Reschedule cannot move the cycle underneath it.
func (s *AssessmentService) End(ctx context.Context, p EndParams) (*model.AssessmentResult, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	var (
		a      *model.Assignment
		result *model.AssessmentResult
	)
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		var err error
		a, err = p.resolve(ctx, q, true)
		if err != nil {
			return err
		}

		attempt, err := q.LockAttempt(ctx, a.ID, a.Reassigned)
		if err != nil {
			return repoErr("lock attempt", err)
		}

		rows, err := q.ListAssignedQuestions(ctx, attempt.ID)
		if err != nil {
			return repoErr("list assigned questions", err)
		}

		skipped, err := s.recordAnswers(ctx, q, attempt.ID, rows, p.Answers)
		if err != nil {
			return err
		}
		if skipped > 0 {
			s.log.Debug().Int64("attempt_id", attempt.ID).Int("skipped", skipped).Msg("Ignored answers outside the attempt")
		}

		progress, err := q.CountProgress(ctx, attempt.ID)
		if err != nil {
			return repoErr("count progress", err)
		}

		sess, err := q.GetSession(ctx, a.QuizSessionID)
		if err != nil {
			return repoErr("get session", err)
		}
		quiz, err := q.GetQuiz(ctx, a.QuizID)
		if err != nil {
			return repoErr("get quiz", err)
		}

		status, pct := Evaluate(progress, resolvePassingScore(p.PassingScore, sess, quiz))
		sum := model.AttemptSummary{
			Status:     status,
			Score:      progress.Correct,
			Percentage: pct,
			Reason:     completionReason(p.Forced, p.Reason),
			EndedAt:    s.now().UTC(),
		}
		if err := q.FinishAttempt(ctx, attempt.ID, sum); err != nil {
			return repoErr("finish attempt", err)
		}
		if err := q.FinishAssignment(ctx, a.ID, sum); err != nil {
			return repoErr("finish assignment", err)
		}

		result = &model.AssessmentResult{
			AssignmentID:     a.ID,
			AttemptID:        attempt.ID,
			Cycle:            attempt.Cycle,
			Score:            sum.Score,
			TotalQuestions:   progress.Total,
			Answered:         progress.Answered,
			Percentage:       sum.Percentage,
			Status:           sum.Status,
			CompletionReason: sum.Reason,
			WrongAnswers:     wrongAnswers(rows),
			EndedAt:          sum.EndedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Clear(ctx, result.AttemptID); err != nil {
		s.log.Warn().Err(err).Int64("attempt_id", result.AttemptID).Msg("Failed to clear attempt cache")
	}

	s.log.Info().
		Int64("assignment_id", a.ID).
		Int64("user_id", a.UserID).
		Int("cycle", result.Cycle).
		Int("score", result.Score).
		Int("total", result.TotalQuestions).
		Float64("percentage", result.Percentage).
		Str("status", string(result.Status)).
		Str("reason", string(result.CompletionReason)).
		Msg("Attempt ended")

	score, pct := result.Score, result.Percentage
	s.publish(ctx, a.QuizSessionID, model.MonitorEvent{
		Type:         model.MonitorEventEnded,
		AssignmentID: a.ID,
		UserID:       a.UserID,
		Cycle:        result.Cycle,
		Status:       result.Status,
		Score:        &score,
		Percentage:   &pct,
		Reason:       result.CompletionReason,
		At:           result.EndedAt,
	})
	return result, nil
}

// recordAnswers grades and stores each submitted answer that belongs to the attempt.
// rows is updated in place so the caller sees the new results. It returns the number
// of entries that matched no assigned question.
func (s *AssessmentService) recordAnswers(
	ctx context.Context,
	q repository.Querier,
	attemptID int64,
	rows []model.AssignedQuestion,
	answers []model.SubmittedAnswer,
) (int, error) {
	byID := make(map[int64]*model.AssignedQuestion, len(rows))
	byQuestion := make(map[int64]*model.AssignedQuestion, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
		byQuestion[rows[i].QuestionID] = &rows[i]
	}

	skipped := 0
	for _, ans := range answers {
		aq := byID[ans.AssignedQuestionID]
		if aq == nil {
			aq = byQuestion[ans.QuestionID]
		}
		if aq == nil {
			skipped++
			continue
		}
		if strings.TrimSpace(ans.Answer) == "" {
			continue
		}

		correct := Grade(ans.Answer, aq.Question.CorrectAnswer)
		answerID, err := q.UpsertAnswer(ctx, attemptID, aq.QuestionID, ans.Answer)
		if err != nil {
			return 0, repoErr("upsert answer", err)
		}
		if err := q.RecordAnswerResult(ctx, aq.ID, answerID, correct); err != nil {
			return 0, repoErr("record answer result", err)
		}

		value := ans.Answer
		score := 0
		if correct {
			score = 1
		}
		aq.AnswerID, aq.UserAnswer, aq.IsCorrect, aq.Score = &answerID, &value, &correct, &score
	}
	return skipped, nil
}

func wrongAnswers(rows []model.AssignedQuestion) []model.WrongAnswer {
	out := make([]model.WrongAnswer, 0)
	for _, aq := range rows {
		if aq.Answered() && aq.IsCorrect != nil && *aq.IsCorrect {
			continue
		}
		out = append(out, model.WrongAnswer{
			AssignedQuestionID: aq.ID,
			QuestionID:         aq.QuestionID,
			QuestionText:       aq.Question.QuestionText,
			Options:            aq.Question.Options,
			CorrectAnswer:      aq.Question.CorrectAnswer,
			UserAnswer:         aq.UserAnswer,
			Explanation:        aq.Question.Explanation,
		})
	}
	return out
}

func (s *AssessmentService) publish(ctx context.Context, sessionID int64, ev model.MonitorEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, sessionID, ev); err != nil {
		s.log.Warn().Err(err).Int64("session_id", sessionID).Str("type", string(ev.Type)).Msg("Failed to publish monitor event")
	}
}
