package service

import (
	"testing"

	"github.com/stemsi/exstem-assessment/internal/model"
)

func TestGrade(t *testing.T) {
	tests := []struct {
		answer, key string
		want        bool
	}{
		{"Paris", "Paris", true},
		{"  Paris\t", "Paris", true},
		{"Paris", " Paris ", true},
		{"paris", "Paris", false},
		{"", "Paris", false},
		{"Par is", "Paris", false},
	}
	for _, tt := range tests {
		if got := Grade(tt.answer, tt.key); got != tt.want {
			t.Errorf("Grade(%q, %q) = %v, want %v", tt.answer, tt.key, got, tt.want)
		}
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		progress model.AttemptProgress
		passing  float64
		status   model.AssignmentStatus
		pct      float64
	}{
		{"seven of ten passes at 70", model.AttemptProgress{Total: 10, Answered: 10, Correct: 7}, 70, model.AssignmentStatusPassed, 70},
		{"seven of ten fails at 71", model.AttemptProgress{Total: 10, Answered: 10, Correct: 7}, 71, model.AssignmentStatusFailed, 70},
		{"two of three rounds", model.AttemptProgress{Total: 3, Answered: 3, Correct: 2}, 50, model.AssignmentStatusPassed, 66.67},
		{"incomplete is terminated", model.AttemptProgress{Total: 10, Answered: 9, Correct: 9}, 0, model.AssignmentStatusTerminated, 0},
		{"nothing assigned is terminated", model.AttemptProgress{}, 0, model.AssignmentStatusTerminated, 0},
		{"zero correct fails", model.AttemptProgress{Total: 4, Answered: 4}, 1, model.AssignmentStatusFailed, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, pct := Evaluate(tt.progress, tt.passing)
			if status != tt.status || pct != tt.pct {
				t.Fatalf("Evaluate = (%s, %v), want (%s, %v)", status, pct, tt.status, tt.pct)
			}
		})
	}
}

func TestCompletionReason(t *testing.T) {
	if got := completionReason(false, ""); got != model.CompletionManual {
		t.Errorf("manual submit: %s", got)
	}
	if got := completionReason(true, ""); got != model.CompletionForced {
		t.Errorf("forced without reason: %s", got)
	}
	if got := completionReason(true, model.CompletionTimeout); got != model.CompletionTimeout {
		t.Errorf("timeout: %s", got)
	}
}
