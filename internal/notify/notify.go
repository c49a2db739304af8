// Package notify implements the transient notification pop-ups shown after
// every state-changing dashboard action. Notifications are fire-and-forget:
// callers never wait on delivery, and each one is dismissed automatically
// after a fixed duration.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// ParseLevel maps a string to a Level. Unknown values become LevelInfo.
func ParseLevel(s string) Level {
	switch Level(s) {
	case LevelSuccess, LevelWarning, LevelError:
		return Level(s)
	default:
		return LevelInfo
	}
}

// Icon returns the icon class rendered next to the message.
func (l Level) Icon() string {
	switch l {
	case LevelSuccess:
		return "fa-check-circle"
	case LevelError:
		return "fa-exclamation-circle"
	case LevelWarning:
		return "fa-exclamation-triangle"
	default:
		return "fa-info-circle"
	}
}

// Color returns the background colour of the pop-up.
func (l Level) Color() string {
	switch l {
	case LevelSuccess:
		return "#10b981"
	case LevelError:
		return "#ef4444"
	case LevelWarning:
		return "#f59e0b"
	default:
		return "#3b82f6"
	}
}

// Notification is a single message shown to the user.
type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Sink receives a copy of every notification, e.g. for fan-out to other
// processes or for metrics.
type Sink interface {
	Publish(ctx context.Context, n Notification) error
}

// DefaultTTL is how long a notification stays active.
const DefaultTTL = 5 * time.Second

const (
	historySize  = 20
	sinkTimeout  = 2 * time.Second
	subscriberCh = 16
)

// Center holds the active notifications of one dashboard session and
// dispatches them to subscribers and sinks.
type Center struct {
	mu      sync.Mutex
	ttl     time.Duration
	active  []Notification
	history []Notification
	timers  map[string]*time.Timer
	subs    map[chan Notification]struct{}
	sinks   []Sink
	logger  *slog.Logger
	closed  bool
	now     func() time.Time
}

// NewCenter creates a notification center. A ttl <= 0 uses DefaultTTL.
func NewCenter(ttl time.Duration, logger *slog.Logger, sinks ...Sink) *Center {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Center{
		ttl:    ttl,
		timers: make(map[string]*time.Timer),
		subs:   make(map[chan Notification]struct{}),
		sinks:  sinks,
		logger: logger,
		now:    time.Now,
	}
}

// Notify shows a message. It never blocks on subscribers or sinks.
func (c *Center) Notify(level Level, message string) {
	c.Push(level, message)
}

// Notifyf is Notify with formatting.
func (c *Center) Notifyf(level Level, format string, args ...any) {
	c.Push(level, fmt.Sprintf(format, args...))
}

// Push shows a message and returns the stored notification.
func (c *Center) Push(level Level, message string) Notification {
	now := c.now()
	n := Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return n
	}
	c.active = append(c.active, n)
	c.history = append(c.history, n)
	if len(c.history) > historySize {
		c.history = c.history[len(c.history)-historySize:]
	}
	c.timers[n.ID] = time.AfterFunc(c.ttl, func() { c.Dismiss(n.ID) })
	for ch := range c.subs {
		select {
		case ch <- n:
		default:
			c.logger.Warn("notification subscriber full, dropping", "id", n.ID)
		}
	}
	sinks := c.sinks
	c.mu.Unlock()

	c.logger.Debug("notification", "level", string(level), "message", message)

	for _, s := range sinks {
		go func(s Sink) {
			ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
			defer cancel()
			if err := s.Publish(ctx, n); err != nil {
				c.logger.Warn("notification sink failed", "id", n.ID, "error", err)
			}
		}(s)
	}
	return n
}

// Dismiss removes an active notification. Dismissing an unknown or already
// dismissed notification is a no-op and returns false.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
	for i, n := range c.active {
		if n.ID == id {
			c.active = append(c.active[:i], c.active[i+1:]...)
			return true
		}
	}
	return false
}

// Active returns the notifications currently on screen, oldest first.
func (c *Center) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notification(nil), c.active...)
}

// Recent returns up to n of the most recent notifications, newest first,
// including dismissed ones. Used by the notification dropdown.
func (c *Center) Recent(n int) []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n <= 0 || n > len(c.history) {
		n = len(c.history)
	}
	out := make([]Notification, 0, n)
	for i := len(c.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, c.history[i])
	}
	return out
}

// Subscribe returns a channel that receives every new notification.
func (c *Center) Subscribe() chan Notification {
	ch := make(chan Notification, subscriberCh)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch
	}
	c.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe detaches and closes a channel returned by Subscribe.
func (c *Center) Unsubscribe(ch chan Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[ch]; ok {
		delete(c.subs, ch)
		close(ch)
	}
}

// Close stops pending dismiss timers and closes all subscriber channels.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	for ch := range c.subs {
		delete(c.subs, ch)
		close(ch)
	}
	c.active = nil
}
