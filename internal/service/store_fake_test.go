package service

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/repository"
)

// memState is the committed content of memStore. Transactions work on a clone
// and replace the committed state only when the callback succeeds.
type memState struct {
	nextID      int64
	quizzes     map[int64]model.Quiz
	sessions    map[int64]model.QuizSession
	questions   map[int64]model.Question
	assignments map[int64]model.Assignment
	attempts    map[int64]model.Attempt
	assigned    map[int64]model.AssignedQuestion
	answers     map[int64]model.Answer
}

func newMemState() *memState {
	return &memState{
		quizzes:     map[int64]model.Quiz{},
		sessions:    map[int64]model.QuizSession{},
		questions:   map[int64]model.Question{},
		assignments: map[int64]model.Assignment{},
		attempts:    map[int64]model.Attempt{},
		assigned:    map[int64]model.AssignedQuestion{},
		answers:     map[int64]model.Answer{},
	}
}

func (st *memState) clone() *memState {
	return &memState{
		nextID:      st.nextID,
		quizzes:     maps.Clone(st.quizzes),
		sessions:    maps.Clone(st.sessions),
		questions:   maps.Clone(st.questions),
		assignments: maps.Clone(st.assignments),
		attempts:    maps.Clone(st.attempts),
		assigned:    maps.Clone(st.assigned),
		answers:     maps.Clone(st.answers),
	}
}

func (st *memState) id() int64 {
	st.nextID++
	return st.nextID
}

// memStore implements repository.Transactor in memory. Transactions are serialized
// by one mutex; non-transactional calls are not synchronized.
type memStore struct {
	mu   *sync.Mutex
	root *memStore
	st   *memState

	fail     map[string]error
	onInsert func(root *memStore, attemptID int64) error
	inserts  int

	// locks lists the rows locked by the last transaction, in order.
	locks []string
}

var _ repository.Transactor = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{mu: &sync.Mutex{}, st: newMemState(), fail: map[string]error{}}
}

func (s *memStore) top() *memStore {
	if s.root != nil {
		return s.root
	}
	return s
}

func (s *memStore) noteLock(row string) {
	t := s.top()
	t.locks = append(t.locks, row)
}

func (s *memStore) injected(op string) error {
	return s.top().fail[op]
}

func (s *memStore) InTx(ctx context.Context, fn func(q repository.Querier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.locks = nil
	tx := &memStore{mu: s.mu, root: s, st: s.st.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

func (s *memStore) CreateQuiz(ctx context.Context, q *model.Quiz) error {
	q.ID = s.st.id()
	q.CreatedAt = time.Now()
	q.UpdatedAt = q.CreatedAt
	s.st.quizzes[q.ID] = *q
	return nil
}

func (s *memStore) GetQuiz(ctx context.Context, id int64) (*model.Quiz, error) {
	q, ok := s.st.quizzes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &q, nil
}

func (s *memStore) CreateQuestions(ctx context.Context, quizID int64, questions []model.Question) ([]model.Question, error) {
	out := make([]model.Question, 0, len(questions))
	for _, q := range questions {
		q.ID = s.st.id()
		q.QuizID = quizID
		q.IsActive = true
		s.st.questions[q.ID] = q
		out = append(out, q)
	}
	return out, nil
}

func (s *memStore) ListActiveQuestions(ctx context.Context, quizID int64) ([]model.Question, error) {
	var out []model.Question
	for _, q := range s.st.questions {
		if q.QuizID == quizID && q.IsActive {
			out = append(out, q)
		}
	}
	slices.SortFunc(out, func(a, b model.Question) int { return int(a.ID - b.ID) })
	return out, nil
}

func (s *memStore) CreateSession(ctx context.Context, sess *model.QuizSession) error {
	if sess.ScheduledStart == nil {
		if ok, _ := s.HasUnscheduledSession(ctx, sess.QuizID); ok {
			return fmt.Errorf("%w: uq_quiz_sessions_unscheduled", repository.ErrDuplicate)
		}
	}
	sess.ID = s.st.id()
	s.st.sessions[sess.ID] = *sess
	return nil
}

func (s *memStore) GetSession(ctx context.Context, id int64) (*model.QuizSession, error) {
	sess, ok := s.st.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &sess, nil
}

func (s *memStore) HasUnscheduledSession(ctx context.Context, quizID int64) (bool, error) {
	for _, sess := range s.st.sessions {
		if sess.QuizID == quizID && sess.ScheduledStart == nil {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) CreateAssignment(ctx context.Context, a *model.Assignment) error {
	for _, other := range s.st.assignments {
		if other.QuizSessionID == a.QuizSessionID && other.UserID == a.UserID {
			return fmt.Errorf("%w: assignments_quiz_session_id_user_id_key", repository.ErrDuplicate)
		}
	}
	a.ID = s.st.id()
	a.Status = model.AssignmentStatusScheduled
	s.st.assignments[a.ID] = *a
	return nil
}

func (s *memStore) GetAssignment(ctx context.Context, id int64) (*model.Assignment, error) {
	a, ok := s.st.assignments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	a.QuizID = s.st.sessions[a.QuizSessionID].QuizID
	return &a, nil
}

func (s *memStore) LockAssignment(ctx context.Context, id int64) (*model.Assignment, error) {
	s.noteLock("assignment")
	return s.GetAssignment(ctx, id)
}

func (s *memStore) MarkAssignmentStarted(ctx context.Context, id int64, at time.Time) error {
	a, ok := s.st.assignments[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Status = model.AssignmentStatusInProgress
	a.UserStartedAt = &at
	a.UserEndedAt = nil
	s.st.assignments[id] = a
	return nil
}

func (s *memStore) FinishAssignment(ctx context.Context, id int64, sum model.AttemptSummary) error {
	if err := s.injected("FinishAssignment"); err != nil {
		return err
	}
	a, ok := s.st.assignments[id]
	if !ok {
		return repository.ErrNotFound
	}
	score, pct, reason, ended := sum.Score, sum.Percentage, sum.Reason, sum.EndedAt
	a.Status, a.Score, a.Percentage, a.CompletionReason, a.UserEndedAt = sum.Status, &score, &pct, &reason, &ended
	s.st.assignments[id] = a
	return nil
}

func (s *memStore) Reassign(ctx context.Context, id int64) (int, error) {
	a, ok := s.st.assignments[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	a.Reassigned++
	a.Status = model.AssignmentStatusScheduled
	a.UserStartedAt, a.UserEndedAt, a.Score, a.Percentage, a.CompletionReason = nil, nil, nil, nil, nil
	s.st.assignments[id] = a
	return a.Reassigned, nil
}

func (s *memStore) EnsureAttempt(ctx context.Context, assignmentID int64, cycle int) (*model.Attempt, error) {
	s.noteLock("attempt")
	if at, err := s.FindAttempt(ctx, assignmentID, cycle); err == nil {
		return at, nil
	}
	at := model.Attempt{ID: s.st.id(), AssignmentID: assignmentID, Cycle: cycle, Status: model.AssignmentStatusScheduled}
	s.st.attempts[at.ID] = at
	return &at, nil
}

func (s *memStore) FindAttempt(ctx context.Context, assignmentID int64, cycle int) (*model.Attempt, error) {
	for _, at := range s.st.attempts {
		if at.AssignmentID == assignmentID && at.Cycle == cycle {
			return &at, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memStore) LockAttempt(ctx context.Context, assignmentID int64, cycle int) (*model.Attempt, error) {
	s.noteLock("attempt")
	return s.FindAttempt(ctx, assignmentID, cycle)
}

func (s *memStore) ListAttempts(ctx context.Context, assignmentID int64) ([]model.Attempt, error) {
	var out []model.Attempt
	for _, at := range s.st.attempts {
		if at.AssignmentID == assignmentID {
			out = append(out, at)
		}
	}
	slices.SortFunc(out, func(a, b model.Attempt) int { return a.Cycle - b.Cycle })
	return out, nil
}

func (s *memStore) MarkAttemptStarted(ctx context.Context, attemptID int64, at time.Time) error {
	a := s.st.attempts[attemptID]
	a.Status = model.AssignmentStatusInProgress
	a.StartedAt = &at
	s.st.attempts[attemptID] = a
	return nil
}

func (s *memStore) FinishAttempt(ctx context.Context, attemptID int64, sum model.AttemptSummary) error {
	a := s.st.attempts[attemptID]
	score, pct, reason, ended := sum.Score, sum.Percentage, sum.Reason, sum.EndedAt
	a.Status, a.Score, a.Percentage, a.CompletionReason, a.EndedAt = sum.Status, &score, &pct, &reason, &ended
	s.st.attempts[attemptID] = a
	return nil
}

func (s *memStore) ListAssignedQuestions(ctx context.Context, attemptID int64) ([]model.AssignedQuestion, error) {
	var out []model.AssignedQuestion
	for _, aq := range s.st.assigned {
		if aq.AttemptID != attemptID {
			continue
		}
		aq.Question = s.st.questions[aq.QuestionID]
		if aq.AnswerID != nil {
			v := s.st.answers[*aq.AnswerID].Value
			aq.UserAnswer = &v
		}
		out = append(out, aq)
	}
	slices.SortFunc(out, func(a, b model.AssignedQuestion) int { return a.Position - b.Position })
	return out, nil
}

func (s *memStore) InsertAssignedQuestions(ctx context.Context, attemptID int64, questionIDs []int64) error {
	root := s.top()
	root.inserts++
	if root.onInsert != nil {
		if err := root.onInsert(root, attemptID); err != nil {
			return err
		}
	}
	for _, aq := range s.st.assigned {
		if aq.AttemptID == attemptID {
			return fmt.Errorf("%w: assigned_questions_attempt_id_question_id_key", repository.ErrDuplicate)
		}
	}
	for pos, qid := range questionIDs {
		id := s.st.id()
		s.st.assigned[id] = model.AssignedQuestion{ID: id, AttemptID: attemptID, QuestionID: qid, Position: pos}
	}
	return nil
}

func (s *memStore) RecordAnswerResult(ctx context.Context, assignedQuestionID, answerID int64, correct bool) error {
	aq, ok := s.st.assigned[assignedQuestionID]
	if !ok {
		return repository.ErrNotFound
	}
	score := 0
	if correct {
		score = 1
	}
	aq.AnswerID, aq.IsCorrect, aq.Score = &answerID, &correct, &score
	s.st.assigned[assignedQuestionID] = aq
	return nil
}

func (s *memStore) CountProgress(ctx context.Context, attemptID int64) (model.AttemptProgress, error) {
	var p model.AttemptProgress
	for _, aq := range s.st.assigned {
		if aq.AttemptID != attemptID {
			continue
		}
		p.Total++
		if aq.AnswerID != nil && s.st.answers[*aq.AnswerID].Value != "" {
			p.Answered++
		}
		if aq.IsCorrect != nil && *aq.IsCorrect {
			p.Correct++
		}
	}
	return p, nil
}

func (s *memStore) UpsertAnswer(ctx context.Context, attemptID, questionID int64, value string) (int64, error) {
	for id, ans := range s.st.answers {
		if ans.AttemptID == attemptID && ans.QuestionID == questionID {
			ans.Value = value
			ans.UpdatedAt = time.Now()
			s.st.answers[id] = ans
			return id, nil
		}
	}
	id := s.st.id()
	s.st.answers[id] = model.Answer{ID: id, AttemptID: attemptID, QuestionID: questionID, Value: value, CreatedAt: time.Now()}
	return id, nil
}

// answersOf returns the committed answer rows of one attempt.
func (s *memStore) answersOf(attemptID int64) []model.Answer {
	var out []model.Answer
	for _, ans := range s.st.answers {
		if ans.AttemptID == attemptID {
			out = append(out, ans)
		}
	}
	return out
}

// memCache implements AttemptCache.
type memCache struct {
	mu        sync.Mutex
	questions map[int64][]model.AssignedQuestionForStudent
	started   map[int64]time.Time
	readErr   error
}

func newMemCache() *memCache {
	return &memCache{
		questions: map[int64][]model.AssignedQuestionForStudent{},
		started:   map[int64]time.Time{},
	}
}

func (c *memCache) GetQuestions(ctx context.Context, attemptID int64) ([]model.AssignedQuestionForStudent, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return nil, false, c.readErr
	}
	qs, ok := c.questions[attemptID]
	return qs, ok, nil
}

func (c *memCache) SetQuestions(ctx context.Context, attemptID int64, qs []model.AssignedQuestionForStudent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.questions[attemptID] = qs
	return nil
}

func (c *memCache) GetStartedAt(ctx context.Context, attemptID int64) (time.Time, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.started[attemptID]
	return t, ok, nil
}

func (c *memCache) SetStartedAt(ctx context.Context, attemptID int64, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started[attemptID] = at
	return nil
}

func (c *memCache) Clear(ctx context.Context, attemptID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.questions, attemptID)
	delete(c.started, attemptID)
	return nil
}

// eventRecorder implements EventPublisher.
type eventRecorder struct {
	mu     sync.Mutex
	events []model.MonitorEvent
}

func (r *eventRecorder) Publish(ctx context.Context, sessionID int64, ev model.MonitorEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *eventRecorder) ofType(t model.MonitorEventType) []model.MonitorEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.MonitorEvent
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
