package eventrelay

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/randalmurphal/eventrelay/pkg/eventrelay/event"
	"github.com/randalmurphal/eventrelay/pkg/eventrelay/signal"
	"github.com/randalmurphal/eventrelay/pkg/eventrelay/store"
)

var errInjected = errors.New("injected failure")

// recordingDelegate records every event it is handed.
type recordingDelegate struct {
	mu     sync.Mutex
	events []event.Event
	accept bool
}

func newRecordingDelegate() *recordingDelegate {
	return &recordingDelegate{accept: true}
}

func (d *recordingDelegate) Process(_ context.Context, e event.Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
	return d.accept
}

func (d *recordingDelegate) Events() []event.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]event.Event, len(d.events))
	copy(out, d.events)
	return out
}

func (d *recordingDelegate) Names() []string {
	var names []string
	for _, e := range d.Events() {
		names = append(names, e.Name)
	}
	return names
}

// faultyStore wraps a MemoryStore and fails selected operations.
type faultyStore struct {
	*store.MemoryStore
	failAppend bool
	failDrain  bool
}

func (s *faultyStore) Append(ctx context.Context, events event.List) error {
	if s.failAppend {
		return &store.IOError{Op: "write", Path: "test", Err: errInjected}
	}
	return s.MemoryStore.Append(ctx, events)
}

func (s *faultyStore) Drain(ctx context.Context) (event.List, error) {
	if s.failDrain {
		return nil, errInjected
	}
	return s.MemoryStore.Drain(ctx)
}

// countingCenter counts raises and optionally fails them.
type countingCenter struct {
	signal.Center
	raises    atomic.Int32
	failRaise bool
}

func newCountingCenter() *countingCenter {
	return &countingCenter{Center: signal.NewLocalCenter()}
}

func (c *countingCenter) Raise(ch signal.Channel) error {
	c.raises.Add(1)
	if c.failRaise {
		return errInjected
	}
	return c.Center.Raise(ch)
}
