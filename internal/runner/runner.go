// Package runner implements the exam session state machine:
// Instructions → Active → Submitting → Terminal.
//
// A Runner owns the countdown, the answers map, the question index and the
// environment monitor of one exam run. It is transport agnostic: the WebSocket
// handler and the terminal client both drive it through the same methods.
package runner

import (
	"context"
	"sync"
	"time"

	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/proctor"
)

// Phase is the lifecycle state of a Runner.
type Phase string

const (
	PhaseInstructions Phase = "instructions"
	PhaseActive       Phase = "active"
	PhaseSubmitting   Phase = "submitting"
	PhaseTerminal     Phase = "terminal"
)

// DefaultWarningAt is the remaining time, in seconds, at which the one-time warning fires.
const DefaultWarningAt = 121

// Submission is what the runner sends to the backend when the exam ends.
type Submission struct {
	Answers []model.SubmittedAnswer
	Forced  bool
	Reason  model.CompletionReason
}

// Backend performs the server calls of an exam run.
type Backend interface {
	// Start marks the attempt as started and returns the authoritative start time.
	Start(ctx context.Context) (time.Time, error)
	// Submit ends the attempt.
	Submit(ctx context.Context, sub Submission) (*model.AssessmentResult, error)
}

// Config configures a Runner.
type Config struct {
	Questions []model.AssignedQuestionForStudent
	// Answers restores in-flight answers keyed by assigned question ID.
	Answers   map[int64]string
	TimeLimit time.Duration
	Policy    proctor.Policy
	Mobile    bool
	Backend   Backend
	Listener  Listener

	WarningAt    int
	TickInterval time.Duration
	Now          func() time.Time
}

// State is a snapshot of the runtime state.
type State struct {
	Phase      Phase            `json:"phase"`
	Remaining  int              `json:"remaining_seconds"`
	Current    int              `json:"current_index"`
	Total      int              `json:"total"`
	Answered   int              `json:"answered"`
	Progress   float64          `json:"progress"`
	Violations int              `json:"violations"`
	Answers    map[int64]string `json:"answers"`
}

// Runner is the state machine of one exam run. All methods are safe for concurrent use.
type Runner struct {
	mu sync.Mutex

	phase     Phase
	questions []model.AssignedQuestionForStudent
	index     map[int64]int
	answers   map[int64]string
	current   int
	remaining int
	warned    bool
	timedOut  bool
	starting  bool
	// forced holds the reason of a forced submission that failed, so a retry stays forced.
	forced model.CompletionReason
	result *model.AssessmentResult

	timeLimit    time.Duration
	warnAt       int
	tickInterval time.Duration
	policy       proctor.Policy
	monitor      *proctor.Monitor
	backend      Backend
	listener     Listener
	now          func() time.Time
}

// New creates a Runner in the Instructions phase.
func New(cfg Config) (*Runner, error) {
	if len(cfg.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	if cfg.Policy.ViolationLimit <= 0 {
		cfg.Policy = proctor.DefaultPolicy()
	}
	if cfg.WarningAt <= 0 {
		cfg.WarningAt = DefaultWarningAt
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	r := &Runner{
		phase:        PhaseInstructions,
		questions:    cfg.Questions,
		index:        make(map[int64]int, len(cfg.Questions)),
		answers:      make(map[int64]string, len(cfg.Questions)),
		timeLimit:    cfg.TimeLimit,
		remaining:    int(cfg.TimeLimit / time.Second),
		warnAt:       cfg.WarningAt,
		tickInterval: cfg.TickInterval,
		policy:       cfg.Policy,
		monitor:      proctor.NewMonitor(cfg.Policy, cfg.Mobile),
		backend:      cfg.Backend,
		listener:     cfg.Listener,
		now:          cfg.Now,
	}
	for i, q := range cfg.Questions {
		r.index[q.ID] = i
		r.answers[q.ID] = ""
	}
	for id, v := range cfg.Answers {
		if _, ok := r.index[id]; ok {
			r.answers[id] = v
		}
	}
	return r, nil
}

// Phase returns the current phase.
func (r *Runner) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Result returns the backend result once the runner is Terminal.
func (r *Runner) Result() *model.AssessmentResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// Questions returns the exam questions in order.
func (r *Runner) Questions() []model.AssignedQuestionForStudent {
	return r.questions
}

// Snapshot returns a copy of the runtime state.
func (r *Runner) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	answers := make(map[int64]string, len(r.answers))
	for id, v := range r.answers {
		answers[id] = v
	}
	answered := r.answeredLocked()
	return State{
		Phase:      r.phase,
		Remaining:  r.remaining,
		Current:    r.current,
		Total:      len(r.questions),
		Answered:   answered,
		Progress:   float64(answered) * 100 / float64(len(r.questions)),
		Violations: r.monitor.Violations(),
		Answers:    answers,
	}
}

// ─── Activation ─────────────────────────────────────────────────────

// Accept leaves Instructions once the entry gate passes and the backend confirms the start.
// On failure the runner stays in Instructions and Accept may be retried.
func (r *Runner) Accept(ctx context.Context, env proctor.Environment) error {
	r.mu.Lock()
	if r.phase != PhaseInstructions || r.starting {
		r.mu.Unlock()
		return ErrWrongPhase
	}
	if gate := proctor.CheckGate(env, r.policy); !gate.Allowed {
		r.mu.Unlock()
		return &proctor.GateError{Result: gate}
	}
	r.starting = true
	r.mu.Unlock()

	startedAt, err := r.backend.Start(ctx)

	r.mu.Lock()
	r.starting = false
	if err != nil {
		ev := r.eventLocked(EventStartFailed)
		ev.Err = err
		ev.Message = "Could not start the exam. Please try again."
		r.mu.Unlock()
		r.emit(ev)
		return err
	}

	r.phase = PhaseActive
	if r.timeLimit > 0 {
		left := r.timeLimit - r.now().Sub(startedAt)
		r.remaining = max(int(left/time.Second), 0)
	}
	events := []Event{r.eventLocked(EventPhaseChanged)}
	expired := r.remaining <= 0
	r.mu.Unlock()
	r.emit(events...)

	if expired {
		return r.expire(ctx)
	}
	return nil
}

// ─── Timer ──────────────────────────────────────────────────────────

// Tick advances the countdown by one second. It fires the time warning exactly once
// and forces a timeout submission when the countdown reaches zero.
func (r *Runner) Tick(ctx context.Context) {
	r.mu.Lock()
	if r.phase != PhaseActive || r.timedOut {
		r.mu.Unlock()
		return
	}
	if r.remaining > 0 {
		r.remaining--
	}

	var events []Event
	if r.remaining == r.warnAt && !r.warned {
		r.warned = true
		ev := r.eventLocked(EventTimeWarning)
		ev.Message = "About two minutes left."
		events = append(events, ev)
	}
	expired := r.remaining == 0
	r.mu.Unlock()
	r.emit(events...)

	if expired {
		_ = r.expire(ctx)
	}
}

// expire forces the timeout submission once.
func (r *Runner) expire(ctx context.Context) error {
	r.mu.Lock()
	if r.timedOut {
		r.mu.Unlock()
		return nil
	}
	r.timedOut = true
	r.mu.Unlock()

	_, err := r.ForceSubmit(ctx, model.CompletionTimeout, "Time is up. Your exam has been submitted.")
	return err
}

// Run drives Tick from a wall-clock ticker until the runner is Terminal or ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Tick(ctx)
			if r.Phase() == PhaseTerminal {
				return nil
			}
		}
	}
}

// ─── Answers and navigation ─────────────────────────────────────────

// SetAnswer overwrites the answer of an assigned question.
func (r *Runner) SetAnswer(assignedQuestionID int64, value string) error {
	r.mu.Lock()
	if r.phase != PhaseActive {
		r.mu.Unlock()
		return ErrWrongPhase
	}
	i, ok := r.index[assignedQuestionID]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownQuestion
	}
	r.answers[assignedQuestionID] = value
	ev := r.eventLocked(EventAnswerRecorded)
	ev.Index = i
	r.mu.Unlock()
	r.emit(ev)
	return nil
}

// ClearAnswer resets an answer to empty, which counts the question as unanswered again.
func (r *Runner) ClearAnswer(assignedQuestionID int64) error {
	return r.SetAnswer(assignedQuestionID, "")
}

// Next moves to the next question and returns the new index.
func (r *Runner) Next() (int, error) {
	r.mu.Lock()
	i := r.current + 1
	r.mu.Unlock()
	return r.goTo(min(i, len(r.questions)-1))
}

// Previous moves to the previous question and returns the new index.
func (r *Runner) Previous() (int, error) {
	r.mu.Lock()
	i := r.current - 1
	r.mu.Unlock()
	return r.goTo(max(i, 0))
}

// GoTo moves to question i.
func (r *Runner) GoTo(i int) error {
	_, err := r.goTo(i)
	return err
}

func (r *Runner) goTo(i int) (int, error) {
	r.mu.Lock()
	if r.phase != PhaseActive {
		cur := r.current
		r.mu.Unlock()
		return cur, ErrWrongPhase
	}
	if i < 0 || i >= len(r.questions) {
		cur := r.current
		r.mu.Unlock()
		return cur, ErrOutOfRange
	}
	changed := r.current != i
	r.current = i
	ev := r.eventLocked(EventIndexChanged)
	r.mu.Unlock()
	if changed {
		r.emit(ev)
	}
	return i, nil
}

// FirstUnanswered returns the lowest index with an empty answer, or -1.
func (r *Runner) FirstUnanswered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.firstUnansweredLocked()
}

// JumpToFirstUnanswered moves to the first unanswered question, if any, and returns the index.
func (r *Runner) JumpToFirstUnanswered() (int, error) {
	i := r.FirstUnanswered()
	if i < 0 {
		return r.Snapshot().Current, nil
	}
	return r.goTo(i)
}

func (r *Runner) firstUnansweredLocked() int {
	for i, q := range r.questions {
		if r.answers[q.ID] == "" {
			return i
		}
	}
	return -1
}

func (r *Runner) answeredLocked() int {
	n := 0
	for _, v := range r.answers {
		if v != "" {
			n++
		}
	}
	return n
}

// ─── Environment signals ────────────────────────────────────────────

// Observe feeds an environment signal to the monitor. Signals outside Active are ignored.
// A forcing decision submits the exam before Observe returns.
func (r *Runner) Observe(ctx context.Context, sig proctor.Signal) (proctor.Decision, error) {
	r.mu.Lock()
	if r.phase != PhaseActive {
		r.mu.Unlock()
		return proctor.Decision{Signal: sig, Action: proctor.ActionNone}, nil
	}
	d := r.monitor.Observe(sig)
	r.mu.Unlock()

	switch d.Action {
	case proctor.ActionWarn:
		r.mu.Lock()
		ev := r.eventLocked(EventViolationWarn)
		ev.Decision = &d
		ev.Message = d.Message
		r.mu.Unlock()
		r.emit(ev)
	case proctor.ActionForceSubmit:
		if _, err := r.ForceSubmit(ctx, model.CompletionViolation, d.Message); err != nil {
			return d, err
		}
	}
	return d, nil
}

// ─── Submission ─────────────────────────────────────────────────────

// SubmitManual submits on user request. Every question must have a non-empty answer;
// otherwise the runner moves to the first unanswered question and returns *IncompleteError.
// After a failed forced submission, SubmitManual retries it as forced.
func (r *Runner) SubmitManual(ctx context.Context) (*model.AssessmentResult, error) {
	r.mu.Lock()
	if err := r.submittableLocked(); err != nil {
		r.mu.Unlock()
		return nil, err
	}

	if r.forced != "" {
		sub, events := r.beginSubmitLocked(true, r.forced, "")
		r.mu.Unlock()
		r.emit(events...)
		return r.submit(ctx, sub)
	}

	if first := r.firstUnansweredLocked(); first >= 0 {
		incomplete := &IncompleteError{
			Unanswered:      len(r.questions) - r.answeredLocked(),
			FirstUnanswered: first,
		}
		r.current = first
		ev := r.eventLocked(EventIncomplete)
		ev.Incomplete = incomplete
		ev.Message = incomplete.Error()
		r.mu.Unlock()
		r.emit(ev)
		return nil, incomplete
	}

	sub, events := r.beginSubmitLocked(false, model.CompletionManual, "")
	r.mu.Unlock()
	r.emit(events...)
	return r.submit(ctx, sub)
}

// ForceSubmit submits without the completeness check.
func (r *Runner) ForceSubmit(ctx context.Context, reason model.CompletionReason, message string) (*model.AssessmentResult, error) {
	r.mu.Lock()
	if err := r.submittableLocked(); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	sub, events := r.beginSubmitLocked(true, reason, message)
	r.mu.Unlock()
	r.emit(events...)
	return r.submit(ctx, sub)
}

func (r *Runner) submittableLocked() error {
	switch r.phase {
	case PhaseActive:
		return nil
	case PhaseSubmitting:
		return ErrSubmitInProgress
	}
	return ErrWrongPhase
}

// beginSubmitLocked is the check-and-set into Submitting. The caller holds r.mu and has
// verified the phase; nothing between the check and this call may release the lock.
func (r *Runner) beginSubmitLocked(forced bool, reason model.CompletionReason, message string) (Submission, []Event) {
	r.phase = PhaseSubmitting
	if forced {
		r.forced = reason
	}

	sub := Submission{Forced: forced, Reason: reason}
	for _, q := range r.questions {
		if v := r.answers[q.ID]; v != "" {
			sub.Answers = append(sub.Answers, model.SubmittedAnswer{
				AssignedQuestionID: q.ID,
				QuestionID:         q.QuestionID,
				Answer:             v,
			})
		}
	}

	ev := r.eventLocked(EventSubmitting)
	ev.Reason = reason
	ev.Message = message
	return sub, []Event{ev, r.eventLocked(EventPhaseChanged)}
}

// submit performs the backend call outside the lock and settles the phase.
func (r *Runner) submit(ctx context.Context, sub Submission) (*model.AssessmentResult, error) {
	res, err := r.backend.Submit(ctx, sub)

	r.mu.Lock()
	if err != nil {
		r.phase = PhaseActive
		failed := r.eventLocked(EventSubmitFailed)
		failed.Reason = sub.Reason
		failed.Err = err
		failed.Message = "Submission failed. Your answers are kept; please submit again."
		events := []Event{failed, r.eventLocked(EventPhaseChanged)}
		r.mu.Unlock()
		r.emit(events...)
		return nil, err
	}

	r.phase = PhaseTerminal
	r.result = res
	r.forced = ""
	for id := range r.answers {
		delete(r.answers, id)
	}
	done := r.eventLocked(EventSubmitted)
	done.Reason = sub.Reason
	done.Result = res
	events := []Event{done, r.eventLocked(EventPhaseChanged)}
	r.mu.Unlock()
	r.emit(events...)
	return res, nil
}

// ─── Events ─────────────────────────────────────────────────────────

func (r *Runner) eventLocked(t EventType) Event {
	return Event{Type: t, Phase: r.phase, Remaining: r.remaining, Index: r.current}
}

func (r *Runner) emit(events ...Event) {
	if r.listener == nil {
		return
	}
	for _, ev := range events {
		r.listener.OnEvent(ev)
	}
}
