package proctor

import (
	"regexp"
	"strings"
)

var mobileUA = regexp.MustCompile(`(?i)android|webos|iphone|ipad|ipod|blackberry|iemobile|opera mini|mobile`)

// IsMobileUserAgent reports whether the user agent belongs to a phone or tablet browser.
func IsMobileUserAgent(ua string) bool {
	return mobileUA.MatchString(ua)
}

// IsDevtoolsShortcut reports whether a key press opens developer tools or page source:
// F12, Ctrl+Shift+I/J/C and Ctrl+U. Meta counts as Ctrl.
func IsDevtoolsShortcut(key string, ctrl, shift, meta bool) bool {
	if strings.EqualFold(key, "F12") {
		return true
	}
	if !ctrl && !meta {
		return false
	}
	switch strings.ToUpper(key) {
	case "I", "J", "C":
		return shift
	case "U":
		return true
	}
	return false
}

// Environment describes the client window at the moment the user accepts the instructions.
type Environment struct {
	UserAgent   string `json:"user_agent"`
	OuterWidth  int    `json:"outer_width"`
	InnerWidth  int    `json:"inner_width"`
	OuterHeight int    `json:"outer_height"`
	InnerHeight int    `json:"inner_height"`
	Fullscreen  bool   `json:"fullscreen"`
	Hidden      bool   `json:"hidden"`
}

// GateResult is the verdict of the entry gate.
type GateResult struct {
	Allowed           bool   `json:"allowed"`
	RequestFullscreen bool   `json:"request_fullscreen,omitempty"`
	Message           string `json:"message,omitempty"`
}

// CheckGate decides whether the exam may become active. It is a deterrent only:
// every input comes from the client.
func CheckGate(env Environment, p Policy) GateResult {
	if IsMobileUserAgent(env.UserAgent) {
		if env.Hidden {
			return GateResult{Message: "Bring the exam tab to the foreground to start."}
		}
		return GateResult{Allowed: true}
	}

	if env.OuterWidth-env.InnerWidth > p.DevtoolsThreshold || env.OuterHeight-env.InnerHeight > p.DevtoolsThreshold {
		return GateResult{Message: "Close the developer tools to start the exam."}
	}
	if !env.Fullscreen {
		return GateResult{RequestFullscreen: true, Message: "Fullscreen mode is required to start the exam."}
	}
	return GateResult{Allowed: true}
}

// GateError is returned when the entry gate blocks the exam.
type GateError struct {
	Result GateResult
}

func (e *GateError) Error() string {
	return "entry gate: " + e.Result.Message
}
