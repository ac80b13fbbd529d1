package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/model"
)

const testUserID int64 = 42

type examFixture struct {
	store      *memStore
	cache      *memCache
	events     *eventRecorder
	cfg        *config.Config
	quiz       model.Quiz
	session    model.QuizSession
	assignment model.Assignment
	questions  []model.Question
}

// newFixture seeds one quiz with n questions, one unscheduled session and one assignment.
// Question i has options ["answer-i", "other-i"] and correct answer "answer-i".
func newFixture(t *testing.T, n int, maxQuestions *int) *examFixture {
	t.Helper()
	ctx := context.Background()

	f := &examFixture{
		store:  newMemStore(),
		cache:  newMemCache(),
		events: &eventRecorder{},
		cfg: &config.Config{
			DefaultMaxQuestions: 10,
			DefaultTimeLimit:    30 * time.Minute,
			ViolationLimit:      2,
		},
	}

	f.quiz = model.Quiz{Title: "Safety basics", TimeLimitMinutes: 20, PassingScore: 60}
	if err := f.store.CreateQuiz(ctx, &f.quiz); err != nil {
		t.Fatalf("CreateQuiz: %v", err)
	}

	pool := make([]model.Question, n)
	for i := range pool {
		pool[i] = model.Question{
			QuestionText:  fmt.Sprintf("Question %d", i),
			Options:       []string{fmt.Sprintf("answer-%d", i), fmt.Sprintf("other-%d", i)},
			CorrectAnswer: fmt.Sprintf("answer-%d", i),
			Difficulty:    model.DifficultyMedium,
		}
	}
	created, err := f.store.CreateQuestions(ctx, f.quiz.ID, pool)
	if err != nil {
		t.Fatalf("CreateQuestions: %v", err)
	}
	f.questions = created

	f.session = model.QuizSession{QuizID: f.quiz.ID, Title: "Morning", MaxQuestions: maxQuestions}
	if err := f.store.CreateSession(ctx, &f.session); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	f.assignment = model.Assignment{QuizSessionID: f.session.ID, QuizID: f.quiz.ID, UserID: testUserID}
	if err := f.store.CreateAssignment(ctx, &f.assignment); err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}
	return f
}

func (f *examFixture) ref() AttemptRef {
	return AttemptRef{
		QuizID:       f.quiz.ID,
		SessionID:    f.session.ID,
		UserID:       testUserID,
		AssignmentID: f.assignment.ID,
	}
}

func (f *examFixture) assigner() *QuestionAssignmentService {
	s := NewQuestionAssignmentService(f.store, f.cache, f.cfg, zerolog.Nop())
	s.shuffle = reverseShuffle
	return s
}

func (f *examFixture) assessments(now time.Time) *AssessmentService {
	s := NewAssessmentService(f.store, f.cache, f.events, f.cfg, zerolog.Nop())
	s.now = func() time.Time { return now }
	return s
}

// key returns the correct answer of a question.
func (f *examFixture) key(questionID int64) string {
	for _, q := range f.questions {
		if q.ID == questionID {
			return q.CorrectAnswer
		}
	}
	return ""
}

// answersFor builds a submission with the first correct answers right and the rest wrong.
func (f *examFixture) answersFor(qs []model.AssignedQuestionForStudent, correct int) []model.SubmittedAnswer {
	out := make([]model.SubmittedAnswer, len(qs))
	for i, q := range qs {
		value := "definitely wrong"
		if i < correct {
			value = f.key(q.QuestionID)
		}
		out[i] = model.SubmittedAnswer{AssignedQuestionID: q.ID, Answer: value}
	}
	return out
}

func reverseShuffle(n int, swap func(i, j int)) {
	for i := 0; i < n/2; i++ {
		swap(i, n-1-i)
	}
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
