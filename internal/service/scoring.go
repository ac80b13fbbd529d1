package service

import (
	"math"
	"strings"

	"github.com/stemsi/exstem-assessment/internal/model"
)

// Grade reports whether an answer matches the key. Surrounding whitespace is ignored.
func Grade(answer, key string) bool {
	return strings.TrimSpace(answer) == strings.TrimSpace(key)
}

// Evaluate derives the final status and percentage of an attempt.
// Incomplete attempts are terminated with a zero percentage.
func Evaluate(p model.AttemptProgress, passingScore float64) (model.AssignmentStatus, float64) {
	if !p.Complete() {
		return model.AssignmentStatusTerminated, 0
	}
	pct := float64(p.Correct) * 100 / float64(p.Total)
	status := model.AssignmentStatusFailed
	if pct >= passingScore {
		status = model.AssignmentStatusPassed
	}
	return status, math.Round(pct*100) / 100
}

// resolvePassingScore picks the request override, then the session, then the quiz.
func resolvePassingScore(override *float64, sess *model.QuizSession, quiz *model.Quiz) float64 {
	if override != nil {
		return *override
	}
	return sess.EffectivePassingScore(quiz)
}

func completionReason(forced bool, reason model.CompletionReason) model.CompletionReason {
	switch {
	case reason != "":
		return reason
	case forced:
		return model.CompletionForced
	}
	return model.CompletionManual
}
