package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a message for whoever operates the reader.
type Notification struct {
	Level   Level     `json:"level"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier receives notifications. Implementations must be safe for concurrent use
// and must not block the caller for long.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// LogNotifier writes notifications to the context logger.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, n Notification) {
	var ev *zerolog.Event
	switch n.Level {
	case LevelError:
		ev = log.Ctx(ctx).Error()
	case LevelWarning:
		ev = log.Ctx(ctx).Warn()
	default:
		ev = log.Ctx(ctx).Info()
	}
	ev.Str("title", n.Title).Msg(n.Message)
}

// Feed keeps the most recent notifications in memory.
type Feed struct {
	mu    sync.Mutex
	items []Notification
	limit int
}

func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = 100
	}
	return &Feed{limit: limit}
}

func (f *Feed) Notify(_ context.Context, n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.items = append(f.items, n)
	if over := len(f.items) - f.limit; over > 0 {
		f.items = append(f.items[:0:0], f.items[over:]...)
	}
}

// Recent returns up to n notifications, newest first. n <= 0 returns all.
func (f *Feed) Recent(n int) []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	if n <= 0 || n > len(f.items) {
		n = len(f.items)
	}
	out := make([]Notification, 0, n)
	for i := len(f.items) - 1; i >= len(f.items)-n; i-- {
		out = append(out, f.items[i])
	}
	return out
}

// Multi fans a notification out to every sink.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, sink := range m {
		sink.Notify(ctx, n)
	}
}

// Clocked stamps notifications that have no time yet.
type Clocked struct {
	Next Notifier
	Now  func() time.Time
}

func (c Clocked) Notify(ctx context.Context, n Notification) {
	if n.At.IsZero() {
		now := time.Now
		if c.Now != nil {
			now = c.Now
		}
		n.At = now()
	}
	c.Next.Notify(ctx, n)
}
