// Package client talks to the assessment REST API on behalf of an exam taker.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/runner"
)

const defaultTimeout = 15 * time.Second

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status  int
	Code    response.ErrCode
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api: HTTP %d", e.Status)
	}
	return fmt.Sprintf("api: %s (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// Ref names the current attempt of an assignment.
type Ref struct {
	QuizID       int64
	SessionID    int64
	UserID       int64
	AssignmentID int64
}

// Client is an authenticated API client. The zero value is not usable; call New.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for baseURL, e.g. http://localhost:8080/api/v1.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

// Start marks the attempt as started and returns the server's start time.
func (c *Client) Start(ctx context.Context, ref Ref) (time.Time, error) {
	body := model.StartAssessmentRequest{
		QuizID:        ref.QuizID,
		UserID:        ref.UserID,
		AssignmentID:  ref.AssignmentID,
		QuizSessionID: ref.SessionID,
	}
	var out struct {
		StartedAt time.Time `json:"user_started_at"`
	}
	if err := c.do(ctx, http.MethodPost, "/assignments/start", nil, body, &out); err != nil {
		return time.Time{}, err
	}
	return out.StartedAt, nil
}

// AssignQuestions draws (or returns the already drawn) questions of the attempt.
func (c *Client) AssignQuestions(ctx context.Context, ref Ref) ([]model.AssignedQuestionForStudent, error) {
	var out struct {
		Questions []model.AssignedQuestionForStudent `json:"questions"`
	}
	path := "/assignments/" + strconv.FormatInt(ref.QuizID, 10) + "/assign-questions"
	if err := c.do(ctx, http.MethodPost, path, ref.query(), nil, &out); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

// AssignedQuestions returns the questions of the attempt without assigning.
func (c *Client) AssignedQuestions(ctx context.Context, ref Ref) ([]model.AssignedQuestionForStudent, error) {
	var out struct {
		Questions []model.AssignedQuestionForStudent `json:"questions"`
	}
	path := "/assignments/" + strconv.FormatInt(ref.QuizID, 10) + "/assigned-questions"
	if err := c.do(ctx, http.MethodGet, path, ref.query(), nil, &out); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

// State returns the server view of the attempt, including the remaining time.
func (c *Client) State(ctx context.Context, assignmentID int64) (*model.AssessmentState, error) {
	var out model.AssessmentState
	path := "/assignments/" + strconv.FormatInt(assignmentID, 10) + "/state"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// End submits the answers and closes the attempt.
func (c *Client) End(ctx context.Context, req model.EndAssessmentRequest) (*model.AssessmentResult, error) {
	var out struct {
		Result *model.AssessmentResult `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, "/assignments/end", nil, req, &out); err != nil {
		return nil, err
	}
	if out.Result == nil {
		return nil, fmt.Errorf("api: end response has no result")
	}
	return out.Result, nil
}

// Backend adapts the client to a runner backend for one attempt.
func (c *Client) Backend(ref Ref) runner.Backend {
	return &backend{c: c, ref: ref}
}

type backend struct {
	c   *Client
	ref Ref
}

func (b *backend) Start(ctx context.Context) (time.Time, error) {
	return b.c.Start(ctx, b.ref)
}

func (b *backend) Submit(ctx context.Context, sub runner.Submission) (*model.AssessmentResult, error) {
	return b.c.End(ctx, model.EndAssessmentRequest{
		QuizID:        b.ref.QuizID,
		UserID:        b.ref.UserID,
		AssignmentID:  b.ref.AssignmentID,
		QuizSessionID: b.ref.SessionID,
		Answers:       sub.Answers,
		Forced:        sub.Forced,
		Reason:        sub.Reason,
	})
}

func (r Ref) query() url.Values {
	return url.Values{
		"userId":        {strconv.FormatInt(r.UserID, 10)},
		"quizSessionId": {strconv.FormatInt(r.SessionID, 10)},
		"assignmentId":  {strconv.FormatInt(r.AssignmentID, 10)},
	}
}

// envelope mirrors response.Response with the payload left raw.
type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && resp.StatusCode < 300 {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Fields = env.Error.Fields
		}
		return apiErr
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s %s data: %w", method, path, err)
	}
	return nil
}
