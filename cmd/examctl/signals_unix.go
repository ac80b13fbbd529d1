//go:build unix

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/stemsi/exstem-assessment/internal/proctor"
)

// watchSignals maps terminal signals to environment signals: interrupt is leaving the exam,
// suspend hides it and a resize leaves the full window.
func watchSignals(ctx context.Context) <-chan proctor.Signal {
	sigs := make(chan os.Signal, 4)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTSTP, syscall.SIGWINCH)

	out := make(chan proctor.Signal)
	go func() {
		defer close(out)
		defer signal.Stop(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-sigs:
				var sig proctor.Signal
				switch s {
				case os.Interrupt:
					sig = proctor.SignalBackNavigation
				case syscall.SIGTSTP:
					sig = proctor.SignalVisibilityHidden
				case syscall.SIGWINCH:
					sig = proctor.SignalWindowBlur
				}
				select {
				case out <- sig:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
