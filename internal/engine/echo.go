package engine

import (
	"context"
	"errors"
	"time"
)

// TypeEcho is the registry name of the echo engine.
const TypeEcho = "EchoEngine"

// Echo is a no-op engine used for liveness checks and tests. It holds its
// configuration and datasets, waits for an optional delay, and finishes.
// Recognized computational-method keys:
//
//	delay_ms  sleep this long before completing
//	fail      when true, the run fails with a synthetic fault
type Echo struct {
	Base
}

// NewEcho creates an echo engine.
func NewEcho() *Echo {
	return &Echo{Base: NewBase()}
}

// Run completes after the configured delay, or fails when asked to.
func (e *Echo) Run(ctx context.Context) error {
	cm := e.CM()

	if delay, ok := cm.Int("delay_ms"); ok && delay > 0 {
		select {
		case <-time.After(time.Duration(delay) * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if fail, ok := cm.Bool("fail"); ok && fail {
		return errors.New("echo engine asked to fail")
	}
	return nil
}
