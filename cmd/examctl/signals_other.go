//go:build !unix

package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/stemsi/exstem-assessment/internal/proctor"
)

func watchSignals(ctx context.Context) <-chan proctor.Signal {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)

	out := make(chan proctor.Signal)
	go func() {
		defer close(out)
		defer signal.Stop(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigs:
				select {
				case out <- proctor.SignalBackNavigation:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
