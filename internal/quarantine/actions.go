package quarantine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sithafal/sithafal/internal/notify"
)

// Action names reported to the Observer and used as span names.
const (
	ActionRelease     = "release"
	ActionDelete      = "delete"
	ActionBulkRelease = "bulk_release"
	ActionBulkDelete  = "bulk_delete"
)

func (c *Controller) notify(ctx context.Context, level notify.Level, message string) {
	if n, ok := c.notifier.(ContextNotifier); ok {
		n.NotifyContext(ctx, level, message)
		return
	}
	c.notifier.Notify(level, message)
}

func (c *Controller) startSpan(ctx context.Context, action string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "quarantine."+action)
}

// ReleaseRow releases a single email. Releasing a row that is already gone
// changes nothing and returns ErrUnknownRow.
func (c *Controller) ReleaseRow(ctx context.Context, id string) error {
	ctx, span := c.startSpan(ctx, ActionRelease)
	defer span.End()
	span.SetAttributes(attribute.String("quarantine.row_id", id))

	c.mu.Lock()
	ok := c.removeLocked(id)
	c.mu.Unlock()
	if !ok {
		span.SetStatus(codes.Error, "unknown row")
		return fmt.Errorf("%w: %s", ErrUnknownRow, id)
	}

	c.logger.Debug("quarantine row released", "id", id)
	c.observer.ObserveAction(ActionRelease, 1)
	c.notify(ctx, notify.LevelSuccess, "Email released successfully!")
	return nil
}

// DeleteRow deletes a single email after confirmation. It returns false
// with a nil error when the user declines.
func (c *Controller) DeleteRow(ctx context.Context, id string) (bool, error) {
	ctx, span := c.startSpan(ctx, ActionDelete)
	defer span.End()
	span.SetAttributes(attribute.String("quarantine.row_id", id))

	if _, ok := c.Row(id); !ok {
		span.SetStatus(codes.Error, "unknown row")
		return false, fmt.Errorf("%w: %s", ErrUnknownRow, id)
	}
	if !c.confirmer.Confirm(ctx, DeletePrompt) {
		span.SetAttributes(attribute.Bool("quarantine.declined", true))
		c.logger.Debug("quarantine delete declined", "id", id)
		return false, nil
	}

	// The row may have been removed while the prompt was open.
	c.mu.Lock()
	ok := c.removeLocked(id)
	c.mu.Unlock()
	if !ok {
		span.SetStatus(codes.Error, "unknown row")
		return false, fmt.Errorf("%w: %s", ErrUnknownRow, id)
	}

	c.logger.Debug("quarantine row deleted", "id", id)
	c.observer.ObserveAction(ActionDelete, 1)
	c.notify(ctx, notify.LevelSuccess, "Email deleted successfully!")
	return true, nil
}

// BulkRelease releases every selected row and returns how many were
// removed. An empty selection only produces a warning.
func (c *Controller) BulkRelease(ctx context.Context) int {
	ctx, span := c.startSpan(ctx, ActionBulkRelease)
	defer span.End()

	c.mu.Lock()
	ids := c.selectedLocked()
	n := 0
	for _, id := range ids {
		if c.removeLocked(id) {
			n++
		}
	}
	c.mu.Unlock()

	span.SetAttributes(attribute.Int("quarantine.rows", n))
	if n == 0 {
		c.notify(ctx, notify.LevelWarning, "Please select emails to release")
		return 0
	}

	c.logger.Debug("quarantine bulk release", "rows", n)
	c.observer.ObserveAction(ActionBulkRelease, n)
	c.notify(ctx, notify.LevelSuccess, fmt.Sprintf("%d emails released successfully!", n))
	return n
}

// BulkDelete deletes every selected row after one confirmation covering
// the batch. It returns how many rows were removed.
func (c *Controller) BulkDelete(ctx context.Context) int {
	ctx, span := c.startSpan(ctx, ActionBulkDelete)
	defer span.End()

	snapshot := c.Selected()
	if len(snapshot) == 0 {
		c.notify(ctx, notify.LevelWarning, "Please select emails to delete")
		return 0
	}
	if !c.confirmer.Confirm(ctx, BulkDeletePrompt(len(snapshot))) {
		span.SetAttributes(attribute.Bool("quarantine.declined", true))
		c.logger.Debug("quarantine bulk delete declined", "rows", len(snapshot))
		return 0
	}

	c.mu.Lock()
	n := 0
	for _, id := range snapshot {
		if c.removeLocked(id) {
			n++
		}
	}
	c.mu.Unlock()

	span.SetAttributes(attribute.Int("quarantine.rows", n))
	if n == 0 {
		return 0
	}
	c.logger.Debug("quarantine bulk delete", "rows", n)
	c.observer.ObserveAction(ActionBulkDelete, n)
	c.notify(ctx, notify.LevelSuccess, fmt.Sprintf("%d emails deleted successfully!", n))
	return n
}
