package store

import (
	"context"

	"github.com/randalmurphal/eventrelay/pkg/eventrelay/event"
)

// Async adapts a Store to completion callbacks. Each call runs the
// operation on its own goroutine and invokes the completion exactly once.
// Completions may run concurrently with each other.
type Async struct {
	store Store
}

// NewAsync wraps s.
func NewAsync(s Store) *Async {
	return &Async{store: s}
}

// Append appends events and reports the result to done.
func (a *Async) Append(ctx context.Context, events event.List, done func(error)) {
	go func() {
		err := a.store.Append(ctx, events)
		if done != nil {
			done(err)
		}
	}()
}

// Read reads the store and reports the result to done.
func (a *Async) Read(ctx context.Context, done func(event.List, error)) {
	go func() {
		list, err := a.store.Read(ctx)
		if done != nil {
			done(list, err)
		}
	}()
}

// Clear clears the store and reports the result to done.
func (a *Async) Clear(ctx context.Context, done func(error)) {
	go func() {
		err := a.store.Clear(ctx)
		if done != nil {
			done(err)
		}
	}()
}

// Drain drains the store and reports the result to done.
func (a *Async) Drain(ctx context.Context, done func(event.List, error)) {
	go func() {
		list, err := a.store.Drain(ctx)
		if done != nil {
			done(list, err)
		}
	}()
}
