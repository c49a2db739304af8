package quarantine

import (
	"context"
	"fmt"

	"github.com/sithafal/sithafal/internal/notify"
)

// Notifier shows a transient message to the user.
type Notifier interface {
	Notify(level notify.Level, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(level notify.Level, message string)

func (f NotifierFunc) Notify(level notify.Level, message string) { f(level, message) }

// ContextNotifier is a Notifier that can tie a message to the request
// that raised it. The controller prefers it when available.
type ContextNotifier interface {
	NotifyContext(ctx context.Context, level notify.Level, message string)
}

type nopNotifier struct{}

func (nopNotifier) Notify(notify.Level, string) {}

// Confirmer asks the user to approve a destructive action. Returning false
// aborts the action without changing any state.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

type confirmKey struct{}

// WithConfirmation records on ctx whether the user already answered the
// confirmation prompt, e.g. through an htmx hx-confirm dialog or a y/n key
// in the console.
func WithConfirmation(ctx context.Context, confirmed bool) context.Context {
	return context.WithValue(ctx, confirmKey{}, confirmed)
}

// Confirmed reports the answer stored by WithConfirmation. No answer means no.
func Confirmed(ctx context.Context) bool {
	v, _ := ctx.Value(confirmKey{}).(bool)
	return v
}

// ContextConfirmer is the default Confirmer: it approves only when the
// caller attached a positive answer with WithConfirmation.
var ContextConfirmer Confirmer = ConfirmFunc(func(ctx context.Context, _ string) bool {
	return Confirmed(ctx)
})

// DeletePrompt is the question asked before deleting a single email.
const DeletePrompt = "Are you sure you want to delete this email? This action cannot be undone."

// BulkDeletePrompt is the question asked before deleting the selection.
func BulkDeletePrompt(n int) string {
	return fmt.Sprintf("Are you sure you want to delete %d emails? This action cannot be undone.", n)
}

// Observer is told about every completed action. Metrics implement it.
type Observer interface {
	ObserveAction(action string, rows int)
}

type nopObserver struct{}

func (nopObserver) ObserveAction(string, int) {}
