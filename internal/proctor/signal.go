package proctor

import "fmt"

// Signal is an environment event reported by the exam client.
type Signal string

const (
	SignalFullscreenExit   Signal = "fullscreen_exit"
	SignalVisibilityHidden Signal = "visibility_hidden"
	SignalWindowBlur       Signal = "window_blur"
	SignalMouseLeave       Signal = "mouse_leave"
	SignalBackNavigation   Signal = "back_navigation"
	SignalContextMenu      Signal = "context_menu"
	SignalDevtoolsShortcut Signal = "devtools_shortcut"
)

// ParseSignal validates a signal name received over the wire.
func ParseSignal(s string) (Signal, error) {
	switch sig := Signal(s); sig {
	case SignalFullscreenExit, SignalVisibilityHidden, SignalWindowBlur, SignalMouseLeave,
		SignalBackNavigation, SignalContextMenu, SignalDevtoolsShortcut:
		return sig, nil
	}
	return "", fmt.Errorf("unknown signal %q", s)
}

// counted reports whether the signal increments the shared focus violation counter.
func (s Signal) counted() bool {
	return s == SignalVisibilityHidden || s == SignalWindowBlur || s == SignalMouseLeave
}
