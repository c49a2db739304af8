package notify

import (
	"context"
	"fmt"
	"sync"
)

// Collector gathers the notifications raised on behalf of one request.
type Collector struct {
	mu    sync.Mutex
	notes []Notification
}

type collectorKey struct{}

// Collect returns a context that records every notification raised through
// NotifyContext with it (or a context derived from it).
func Collect(ctx context.Context) (context.Context, *Collector) {
	c := &Collector{}
	return context.WithValue(ctx, collectorKey{}, c), c
}

func collectorFrom(ctx context.Context) *Collector {
	if ctx == nil {
		return nil
	}
	c, _ := ctx.Value(collectorKey{}).(*Collector)
	return c
}

func (c *Collector) add(n Notification) {
	c.mu.Lock()
	c.notes = append(c.notes, n)
	c.mu.Unlock()
}

// Notifications returns what was collected so far, oldest first.
func (c *Collector) Notifications() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notification(nil), c.notes...)
}

// NotifyContext is Notify for a message raised while handling ctx. Besides
// the usual delivery, the message goes to the Collector attached to ctx.
func (c *Center) NotifyContext(ctx context.Context, level Level, message string) {
	n := c.Push(level, message)
	if col := collectorFrom(ctx); col != nil {
		col.add(n)
	}
}

// NotifyContextf is NotifyContext with formatting.
func (c *Center) NotifyContextf(ctx context.Context, level Level, format string, args ...any) {
	c.NotifyContext(ctx, level, fmt.Sprintf(format, args...))
}
