// Package scheduler runs the app's periodic work: syncing, polling for
// template updates and reminding an idle user.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"mealsync/internal/logging"
)

// Task runs a function at a fixed interval between Start and Stop.
type Task struct {
	name     string
	interval time.Duration
	fn       func(context.Context)
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Every creates a Task running fn every interval. A run that takes longer
// than interval delays the next one instead of overlapping it.
func Every(name string, interval time.Duration, fn func(context.Context), logger *zap.Logger) *Task {
	return &Task{name: name, interval: interval, fn: fn, logger: logging.OrNop(logger)}
}

// Start launches the loop. It stops when ctx is done or Stop is called.
// Starting a running task does nothing.
func (t *Task) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		t.logger.Debug("task started", zap.String("task", t.name), zap.Duration("interval", t.interval))
		for {
			select {
			case <-ctx.Done():
				t.logger.Debug("task stopped", zap.String("task", t.name))
				return
			case <-ticker.C:
				t.run(ctx)
			}
		}
	}()
}

func (t *Task) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("task panicked", zap.String("task", t.name), zap.Any("panic", r))
		}
	}()
	t.fn(ctx)
}

// Stop cancels the loop and waits for a run in progress to return.
func (t *Task) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the loop is active.
func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done == nil {
		return false
	}
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

// Inactivity calls onIdle once the user has been idle for timeout. Touch
// restarts the countdown; after firing it waits for the next Touch.
type Inactivity struct {
	timeout time.Duration
	onIdle  func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewInactivity starts the countdown.
func NewInactivity(timeout time.Duration, onIdle func()) *Inactivity {
	i := &Inactivity{timeout: timeout, onIdle: onIdle}
	i.timer = time.AfterFunc(timeout, onIdle)
	return i
}

// Touch records user activity.
func (i *Inactivity) Touch() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.stopped {
		return
	}
	i.timer.Stop()
	i.timer.Reset(i.timeout)
}

// Stop cancels the countdown for good.
func (i *Inactivity) Stop() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stopped = true
	i.timer.Stop()
}
