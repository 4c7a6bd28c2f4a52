package eventrelay

import (
	"context"

	"github.com/randalmurphal/eventrelay/pkg/eventrelay/event"
)

// Delegate is the dispatch sink. Process reports whether the event was
// accepted for sending; the relay does not retry rejected events.
type Delegate interface {
	Process(ctx context.Context, e event.Event) bool
}

// DelegateFunc adapts a function to Delegate.
type DelegateFunc func(ctx context.Context, e event.Event) bool

// Process implements Delegate.
func (f DelegateFunc) Process(ctx context.Context, e event.Event) bool {
	return f(ctx, e)
}

// NotifyDelegate wraps a callback that only observes events. Every event is
// reported as accepted.
func NotifyDelegate(fn func(e event.Event)) Delegate {
	return DelegateFunc(func(_ context.Context, e event.Event) bool {
		fn(e)
		return true
	})
}
