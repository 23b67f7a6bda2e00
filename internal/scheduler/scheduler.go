// Package scheduler defines the deferred-work collaborator contract used by
// actions that need a follow-up after a delay (payment link expiry). The
// production queue lives outside this module; Timers is an in-process
// implementation for the simulator and tests.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Scheduler schedules a named job with a payload after the given delay.
type Scheduler interface {
	ScheduleAfter(ctx context.Context, jobName string, payload map[string]any, delay time.Duration) error
}

// JobFunc handles a fired job.
type JobFunc func(jobName string, payload map[string]any)

// Timers runs scheduled jobs on in-process timers.
type Timers struct {
	mu      sync.Mutex
	handler JobFunc
	timers  []*time.Timer
	stopped bool
}

// NewTimers returns a Timers scheduler dispatching to handler.
func NewTimers(handler JobFunc) (*Timers, error) {
	if handler == nil {
		return nil, errors.New("scheduler: handler must not be nil")
	}
	return &Timers{handler: handler}, nil
}

func (t *Timers) ScheduleAfter(_ context.Context, jobName string, payload map[string]any, delay time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return errors.New("scheduler: stopped")
	}
	timer := time.AfterFunc(delay, func() {
		t.handler(jobName, payload)
	})
	t.timers = append(t.timers, timer)
	return nil
}

// Stop cancels all pending timers.
func (t *Timers) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	for _, timer := range t.timers {
		timer.Stop()
	}
	t.timers = nil
}
