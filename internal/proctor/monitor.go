package proctor

import (
	"fmt"
	"sync"
	"time"
)

// Action is what the runner must do in response to a signal.
type Action string

const (
	ActionNone        Action = "none"
	ActionWarn        Action = "warn"
	ActionForceSubmit Action = "force_submit"
)

// Policy holds the monitor thresholds.
type Policy struct {
	// ViolationLimit is the number of counted focus violations that forces submission.
	ViolationLimit int
	// WarningTTL is how long a transient warning stays visible.
	WarningTTL time.Duration
	// DevtoolsThreshold is the outer/inner window size difference, in pixels,
	// above which developer tools are assumed open.
	DevtoolsThreshold int
}

// DefaultPolicy returns the standard thresholds.
func DefaultPolicy() Policy {
	return Policy{
		ViolationLimit:    2,
		WarningTTL:        3 * time.Second,
		DevtoolsThreshold: 160,
	}
}

// Decision is the monitor verdict for one signal.
type Decision struct {
	Signal     Signal        `json:"signal"`
	Action     Action        `json:"action"`
	Violations int           `json:"violations"`
	Message    string        `json:"message,omitempty"`
	WarningTTL time.Duration `json:"warning_ttl,omitempty"`
}

// Monitor translates environment signals of one exam run into warnings or forced submission.
// Its counter lives only as long as the run.
type Monitor struct {
	mu         sync.Mutex
	policy     Policy
	mobile     bool
	violations int
}

// NewMonitor creates a monitor. Fullscreen checks are skipped for mobile clients.
func NewMonitor(policy Policy, mobile bool) *Monitor {
	if policy.ViolationLimit <= 0 {
		policy.ViolationLimit = DefaultPolicy().ViolationLimit
	}
	return &Monitor{policy: policy, mobile: mobile}
}

// Observe records a signal and returns the resulting decision.
func (m *Monitor) Observe(sig Signal) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := Decision{Signal: sig, Action: ActionNone}

	switch {
	case sig == SignalFullscreenExit:
		if m.mobile {
			break
		}
		d.Action = ActionForceSubmit
		d.Message = "You exited fullscreen mode. Your exam has been submitted."

	case sig == SignalBackNavigation:
		d.Action = ActionForceSubmit
		d.Message = "You navigated away from the exam. Your exam has been submitted."

	case sig.counted():
		m.violations++
		if m.violations >= m.policy.ViolationLimit {
			d.Action = ActionForceSubmit
			d.Message = "You left the exam window too many times. Your exam has been submitted."
			break
		}
		d.Action = ActionWarn
		d.WarningTTL = m.policy.WarningTTL
		d.Message = fmt.Sprintf("Leaving the exam window is not allowed (%d/%d).", m.violations, m.policy.ViolationLimit)

	case sig == SignalContextMenu || sig == SignalDevtoolsShortcut:
		d.Action = ActionWarn
		d.WarningTTL = m.policy.WarningTTL
		d.Message = "This action is disabled during the exam."
	}

	d.Violations = m.violations
	return d
}

// Violations returns the current counted violations.
func (m *Monitor) Violations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.violations
}
