// Package notify delivers the short, non-blocking messages that tell the user
// where their change ended up.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"mealsync/internal/logging"
)

// Level is the severity of a toast.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Toast is a transient user-facing notification.
type Toast struct {
	Title   string
	Message string
	Level   Level
	At      time.Time
}

func (t Toast) String() string {
	if t.Message == "" {
		return t.Title
	}
	return t.Title + ": " + t.Message
}

// Notifier delivers toasts.
type Notifier interface {
	Notify(ctx context.Context, t Toast) error
}

// Log writes toasts to a zap logger.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logging.OrNop(logger)}
}

func (l *Log) Notify(_ context.Context, t Toast) error {
	fields := []zap.Field{zap.String("title", t.Title), zap.String("message", t.Message)}
	switch t.Level {
	case LevelError:
		l.logger.Error("toast", fields...)
	case LevelWarning:
		l.logger.Warn("toast", fields...)
	default:
		l.logger.Info("toast", fields...)
	}
	return nil
}

// Writer prints toasts one per line, for the CLI.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) Notify(_ context.Context, t Toast) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := fmt.Fprintf(w.w, "%s %s\n", symbol(t.Level), t)
	return err
}

func symbol(l Level) string {
	switch l {
	case LevelError:
		return "❌"
	case LevelWarning:
		return "⚠️"
	default:
		return "✅"
	}
}

// Fanout delivers every toast to all of its notifiers.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, t Toast) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps every toast in memory.
type Recorder struct {
	mu     sync.Mutex
	toasts []Toast
}

func (r *Recorder) Notify(_ context.Context, t Toast) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, t)
	return nil
}

// Toasts returns a copy of what was recorded so far.
func (r *Recorder) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Toast(nil), r.toasts...)
}

// Titles returns the title of every recorded toast, in order.
func (r *Recorder) Titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	titles := make([]string, len(r.toasts))
	for i, t := range r.toasts {
		titles[i] = t.Title
	}
	return titles
}
