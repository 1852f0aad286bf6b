// Package notify shows short user-facing status messages.
package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Notice is a message that can be updated and dismissed.
type Notice interface {
	Set(msg string)
	Hide(after time.Duration)
}

// Notifier shows notices.
type Notifier interface {
	Show(msg string) Notice
}

// Logger writes notices to a slog logger.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a Notifier that logs every notice.
func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

// Show logs msg.
func (n *Logger) Show(msg string) Notice {
	n.logger.Info("notice", slog.String("message", msg))
	return &logNotice{logger: n.logger}
}

type logNotice struct {
	logger *slog.Logger
}

func (n *logNotice) Set(msg string) {
	n.logger.Info("notice", slog.String("message", msg))
}

func (n *logNotice) Hide(after time.Duration) {}

// Recorder keeps every message shown through it. It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	messages []string
	hides    []time.Duration
}

// Show records msg.
func (r *Recorder) Show(msg string) Notice {
	r.add(msg)
	return recNotice{r}
}

// Messages returns every message shown or set so far.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

// Hides returns the dismissal delays requested so far.
func (r *Recorder) Hides() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.hides...)
}

func (r *Recorder) add(msg string) {
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()
}

type recNotice struct{ r *Recorder }

func (n recNotice) Set(msg string) { n.r.add(msg) }

func (n recNotice) Hide(after time.Duration) {
	n.r.mu.Lock()
	n.r.hides = append(n.r.hides, after)
	n.r.mu.Unlock()
}

var (
	_ Notifier = (*Logger)(nil)
	_ Notifier = (*Recorder)(nil)
)
