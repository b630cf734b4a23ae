// Package flow holds the backup and restore state machines.
//
// A controller is owned by one goroutine, the one draining its Dispatcher.
// Controllers start slow cryptography through the KeyStore's async calls and
// only change state when the completion has been posted back to that goroutine.
package flow

import (
	"context"
	"errors"
)

var (
	// ErrInvalidTransition is returned for an event the current state does not accept.
	ErrInvalidTransition = errors.New("action not allowed in the current state")
	// ErrProceedDisabled is returned by Backup.Proceed while the gate is closed.
	ErrProceedDisabled = errors.New("proceed is disabled")
)

// Dispatcher queues a callback onto the goroutine that owns a controller.
type Dispatcher interface {
	Post(fn func())
}

// Loop is a minimal Dispatcher: callbacks queue on a channel and run when the
// owner calls RunOnce or Run.
type Loop struct {
	tasks chan func()
}

// NewLoop returns a loop with room for size pending callbacks.
func NewLoop(size int) *Loop {
	if size < 1 {
		size = 1
	}
	return &Loop{tasks: make(chan func(), size)}
}

// Post implements Dispatcher. It is safe to call from any goroutine.
func (l *Loop) Post(fn func()) {
	l.tasks <- fn
}

// RunOnce blocks until one callback has run or ctx is done.
func (l *Loop) RunOnce(ctx context.Context) error {
	select {
	case fn := <-l.tasks:
		fn()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains callbacks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := l.RunOnce(ctx); err != nil {
			return err
		}
	}
}
