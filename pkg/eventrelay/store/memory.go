package store

import (
	"context"
	"sync"

	"github.com/randalmurphal/eventrelay/pkg/eventrelay/event"
)

// MemoryStore is an in-memory event store for testing and single-process
// hosts. Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.Mutex
	events event.List
	closed bool
}

// NewMemoryStore creates a new in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append implements Store.
func (m *MemoryStore) Append(ctx context.Context, events event.List) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	m.events = append(m.events, events...)
	return nil
}

// Read implements Store.
func (m *MemoryStore) Read(ctx context.Context) (event.List, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	out := make(event.List, len(m.events))
	copy(out, m.events)
	return out, nil
}

// Clear implements Store.
func (m *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	m.events = nil
	return nil
}

// Drain implements Store.
func (m *MemoryStore) Drain(ctx context.Context) (event.List, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	out := m.events
	if out == nil {
		out = event.List{}
	}
	m.events = nil
	return out, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
