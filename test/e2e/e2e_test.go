//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/service"
)

const (
	defaultBaseURL = "http://localhost:8080/api/v1"
	e2eUserID      = int64(9001)
	questionCount  = 4
)

var (
	baseURL    string
	dbURL      string
	adminToken string
	userToken  string
)

// envelope mirrors the API response wrapper.
type envelope[T any] struct {
	Data  T `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestMain(m *testing.M) {
	_ = godotenv.Load("../../.env")

	cfg := config.Load()
	baseURL = os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	dbURL = cfg.DatabaseURL

	if err := resetDatabase(); err != nil {
		fmt.Printf("Setup failed: %v\n", err)
		os.Exit(1)
	}

	auth := service.NewAuthService(cfg)
	var err error
	if adminToken, err = auth.GenerateToken(1, service.TokenTypeAdmin); err != nil {
		fmt.Printf("admin token: %v\n", err)
		os.Exit(1)
	}
	if userToken, err = auth.GenerateToken(e2eUserID, service.TokenTypeUser); err != nil {
		fmt.Printf("user token: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func resetDatabase() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, `TRUNCATE answers, assigned_questions, attempts, assignments,
		quiz_sessions, questions, quizzes RESTART IDENTITY CASCADE`)
	return err
}

func TestE2EAssessmentFlow(t *testing.T) {
	var (
		quiz       model.Quiz
		sess       model.QuizSession
		assignment model.Assignment
		assigned   []model.AssignedQuestionForStudent
		answerKey  = map[string]string{}
	)

	t.Run("AdminCreatesQuiz", func(t *testing.T) {
		resp, err := post("/admin/quizzes", model.CreateQuizRequest{
			Title:            "E2E Quiz",
			TimeLimitMinutes: 10,
			PassingScore:     50,
			MaxAttempts:      3,
		}, adminToken)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create quiz: %d %s", resp.StatusCode, readBody(resp))
		}
		var env envelope[model.Quiz]
		decodeJSON(t, resp, &env)
		quiz = env.Data
	})

	t.Run("AdminAddsQuestions", func(t *testing.T) {
		req := model.AddQuestionsRequest{}
		for i := 1; i <= questionCount; i++ {
			text := "What is " + strconv.Itoa(i) + " + " + strconv.Itoa(i) + "?"
			correct := strconv.Itoa(2 * i)
			answerKey[text] = correct
			req.Questions = append(req.Questions, model.AddQuestionRequest{
				QuestionText:  text,
				Options:       []string{correct, strconv.Itoa(2*i + 1), strconv.Itoa(2*i - 1)},
				CorrectAnswer: correct,
				Difficulty:    "easy",
			})
		}
		resp, err := post("/admin/quizzes/"+itoa(quiz.ID)+"/questions", req, adminToken)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("add questions: %d %s", resp.StatusCode, readBody(resp))
		}
	})

	t.Run("AdminCreatesUnscheduledSession", func(t *testing.T) {
		resp, err := post("/admin/quizzes/"+itoa(quiz.ID)+"/sessions", model.CreateQuizSessionRequest{
			Title: "Open practice",
		}, adminToken)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create session: %d %s", resp.StatusCode, readBody(resp))
		}
		var env envelope[model.QuizSession]
		decodeJSON(t, resp, &env)
		sess = env.Data
	})

	t.Run("SecondUnscheduledSessionConflicts", func(t *testing.T) {
		resp, err := post("/admin/quizzes/"+itoa(quiz.ID)+"/sessions", model.CreateQuizSessionRequest{
			Title: "Duplicate practice",
		}, adminToken)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusConflict {
			t.Fatalf("expected 409, got %d %s", resp.StatusCode, readBody(resp))
		}
	})

	t.Run("AdminCreatesAssignment", func(t *testing.T) {
		resp, err := post("/admin/assignments", model.CreateAssignmentRequest{
			QuizSessionID: sess.ID,
			UserID:        e2eUserID,
		}, adminToken)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create assignment: %d %s", resp.StatusCode, readBody(resp))
		}
		var env envelope[model.Assignment]
		decodeJSON(t, resp, &env)
		assignment = env.Data
	})

	query := func() string {
		return "?userId=" + itoa(e2eUserID) + "&quizSessionId=" + itoa(sess.ID) + "&assignmentId=" + itoa(assignment.ID)
	}

	t.Run("UserTokenCannotUseAdminAPI", func(t *testing.T) {
		resp, err := post("/admin/quizzes", model.CreateQuizRequest{Title: "Nope", TimeLimitMinutes: 1}, userToken)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", resp.StatusCode)
		}
	})

	t.Run("AssignQuestions", func(t *testing.T) {
		resp, err := post("/assignments/"+itoa(quiz.ID)+"/assign-questions"+query(), nil, userToken)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("assign: %d %s", resp.StatusCode, readBody(resp))
		}
		var env envelope[struct {
			Questions []model.AssignedQuestionForStudent `json:"questions"`
		}]
		decodeJSON(t, resp, &env)
		assigned = env.Data.Questions
		if len(assigned) != questionCount {
			t.Fatalf("assigned %d questions, want %d", len(assigned), questionCount)
		}
	})

	t.Run("AssignQuestionsIsIdempotent", func(t *testing.T) {
		resp, err := post("/assignments/"+itoa(quiz.ID)+"/assign-questions"+query(), nil, userToken)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var env envelope[struct {
			Questions []model.AssignedQuestionForStudent `json:"questions"`
		}]
		decodeJSON(t, resp, &env)
		if len(env.Data.Questions) != len(assigned) {
			t.Fatalf("second assign returned %d questions", len(env.Data.Questions))
		}
		for i, q := range env.Data.Questions {
			if q.ID != assigned[i].ID {
				t.Fatalf("question %d changed: %d != %d", i, q.ID, assigned[i].ID)
			}
		}
	})

	t.Run("StartAssessment", func(t *testing.T) {
		resp, err := post("/assignments/start", model.StartAssessmentRequest{
			QuizID:        quiz.ID,
			UserID:        e2eUserID,
			AssignmentID:  assignment.ID,
			QuizSessionID: sess.ID,
		}, userToken)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("start: %d %s", resp.StatusCode, readBody(resp))
		}
	})

	t.Run("StateReportsRemainingTime", func(t *testing.T) {
		resp, err := get("/assignments/"+itoa(assignment.ID)+"/state", userToken)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var env envelope[model.AssessmentState]
		decodeJSON(t, resp, &env)
		if env.Data.Status != model.AssignmentStatusInProgress {
			t.Fatalf("status = %s", env.Data.Status)
		}
		if env.Data.RemainingSeconds <= 0 || env.Data.RemainingSeconds > 600 {
			t.Fatalf("remaining = %d", env.Data.RemainingSeconds)
		}
	})

	t.Run("EndWithAllCorrectAnswers", func(t *testing.T) {
		answers := make([]model.SubmittedAnswer, 0, len(assigned))
		for _, q := range assigned {
			answers = append(answers, model.SubmittedAnswer{AssignedQuestionID: q.ID, Answer: answerKey[q.QuestionText]})
		}
		resp, err := post("/assignments/end", model.EndAssessmentRequest{
			QuizID:        quiz.ID,
			UserID:        e2eUserID,
			AssignmentID:  assignment.ID,
			QuizSessionID: sess.ID,
			Answers:       answers,
			Reason:        model.CompletionManual,
		}, userToken)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("end: %d %s", resp.StatusCode, readBody(resp))
		}
		var env envelope[struct {
			Result model.AssessmentResult `json:"result"`
		}]
		decodeJSON(t, resp, &env)
		res := env.Data.Result
		if res.Score != questionCount || res.Status != model.AssignmentStatusPassed {
			t.Fatalf("result = %+v", res)
		}
		if len(res.WrongAnswers) != 0 {
			t.Fatalf("unexpected wrong answers: %+v", res.WrongAnswers)
		}
	})

	t.Run("RepeatedEndRecomputesSameScore", func(t *testing.T) {
		resp, err := post("/assignments/end", model.EndAssessmentRequest{
			QuizID:        quiz.ID,
			UserID:        e2eUserID,
			AssignmentID:  assignment.ID,
			QuizSessionID: sess.ID,
		}, userToken)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("end: %d %s", resp.StatusCode, readBody(resp))
		}
		var env envelope[struct {
			Result model.AssessmentResult `json:"result"`
		}]
		decodeJSON(t, resp, &env)
		if env.Data.Result.Score != questionCount {
			t.Fatalf("score = %d, want %d", env.Data.Result.Score, questionCount)
		}
	})

	t.Run("RescheduleOpensNewCycle", func(t *testing.T) {
		resp, err := post("/admin/assignments/"+itoa(assignment.ID)+"/reschedule", nil, adminToken)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("reschedule: %d %s", resp.StatusCode, readBody(resp))
		}

		res, err := get("/admin/assignments/"+itoa(assignment.ID)+"/result", adminToken)
		if err != nil {
			t.Fatal(err)
		}
		defer res.Body.Close()
		var env envelope[service.AssignmentResult]
		decodeJSON(t, res, &env)
		if env.Data.Assignment == nil || env.Data.Assignment.Reassigned != 1 {
			t.Fatalf("assignment = %+v", env.Data.Assignment)
		}
		if len(env.Data.Attempts) != 2 {
			t.Fatalf("attempts = %d, want 2", len(env.Data.Attempts))
		}
	})
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

func post(path string, body interface{}, token string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest("POST", baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

func get(path string, token string) (*http.Response, error) {
	req, err := http.NewRequest("GET", baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

func readBody(resp *http.Response) string {
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("json decode: %v", err)
	}
}
