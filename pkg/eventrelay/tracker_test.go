package eventrelay

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventrelay/pkg/eventrelay/event"
	"github.com/randalmurphal/eventrelay/pkg/eventrelay/store"
)

func appendNames(t *testing.T, s store.Store, names ...string) {
	t.Helper()
	list := make(event.List, 0, len(names))
	for _, n := range names {
		list = append(list, event.NewRecord(n, nil))
	}
	require.NoError(t, s.Append(context.Background(), list))
}

func TestTracker_EmptyStoreMakesNoCalls(t *testing.T) {
	tr := NewTracker(store.NewMemoryStore())
	d := newRecordingDelegate()
	tr.SetDelegate(d)

	assert.Equal(t, 0, tr.Track(context.Background()))
	assert.Empty(t, d.Events())
}

func TestTracker_DispatchesInOrder(t *testing.T) {
	s := store.NewMemoryStore()
	appendNames(t, s, "a")
	appendNames(t, s, "b")

	tr := NewTracker(s)
	d := newRecordingDelegate()
	tr.SetDelegate(d)

	assert.Equal(t, 2, tr.Track(context.Background()))
	assert.Equal(t, []string{"a", "b"}, d.Names())

	left, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestTracker_ReconstructsEvent(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.Append(context.Background(), event.List{
		event.NewRecord("pushNotification", map[string]any{"rid": "abcd1234"}),
		event.NewRecord("launch", nil),
	}))

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tr := NewTracker(s)
	tr.now = func() time.Time { return fixed }
	d := newRecordingDelegate()
	tr.SetDelegate(d)

	tr.Track(context.Background())

	events := d.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "abcd1234", events[0].String("rid"))
	assert.Equal(t, fixed, events[0].ReceivedAt)
	assert.NotEmpty(t, events[0].ID)
	assert.NotEqual(t, events[0].ID, events[1].ID)
	assert.NotNil(t, events[1].Parameters)
}

func TestTracker_NoDelegateStillDrains(t *testing.T) {
	s := store.NewMemoryStore()
	appendNames(t, s, "a", "b")

	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))
	tr := NewTracker(s, WithLogger(logger))

	assert.Equal(t, 0, tr.Track(context.Background()))

	left, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.Empty(t, left)
	assert.Contains(t, buf.String(), "event not tracked")
}

func TestTracker_RejectedEventsAreNotRetried(t *testing.T) {
	s := store.NewMemoryStore()
	appendNames(t, s, "a")

	tr := NewTracker(s)
	d := newRecordingDelegate()
	d.accept = false
	tr.SetDelegate(d)

	assert.Equal(t, 1, tr.Track(context.Background()))
	assert.Equal(t, 0, tr.Track(context.Background()))
	assert.Len(t, d.Events(), 1)
}

func TestTracker_FailedDrain(t *testing.T) {
	s := &faultyStore{MemoryStore: store.NewMemoryStore()}
	appendNames(t, s, "a")
	s.failDrain = true

	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))
	tr := NewTracker(s, WithLogger(logger))
	d := newRecordingDelegate()
	tr.SetDelegate(d)

	assert.Equal(t, 0, tr.Track(context.Background()))
	assert.Empty(t, d.Events())
	assert.Contains(t, buf.String(), "level=WARN")

	s.failDrain = false
	assert.Equal(t, 1, tr.Track(context.Background()))
}

func TestTracker_SkipsRecordsWithoutName(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.Append(context.Background(), event.List{
		event.FromWire(map[string]any{"eventParameters": map[string]any{}}),
		event.NewRecord("valid", nil),
	}))

	tr := NewTracker(s)
	d := newRecordingDelegate()
	tr.SetDelegate(d)

	assert.Equal(t, 1, tr.Track(context.Background()))
	assert.Equal(t, []string{"valid"}, d.Names())
}

func TestTracker_SetDelegate(t *testing.T) {
	tr := NewTracker(store.NewMemoryStore())
	assert.Nil(t, tr.Delegate())

	d := newRecordingDelegate()
	tr.SetDelegate(d)
	assert.Same(t, d, tr.Delegate())

	tr.SetDelegate(nil)
	assert.Nil(t, tr.Delegate())
}

func TestTracker_ConcurrentTracksAreDisjoint(t *testing.T) {
	s := store.NewMemoryStore()
	const total = 100
	names := make([]string, total)
	for i := range names {
		names[i] = fmt.Sprintf("e%03d", i)
	}
	appendNames(t, s, names...)

	tr := NewTracker(s)
	d := newRecordingDelegate()
	tr.SetDelegate(d)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Track(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, names, d.Names())
}

func TestDelegateAdapters(t *testing.T) {
	var seen []string
	d := NotifyDelegate(func(e event.Event) { seen = append(seen, e.Name) })
	assert.True(t, d.Process(context.Background(), event.Event{Name: "a"}))
	assert.Equal(t, []string{"a"}, seen)

	reject := DelegateFunc(func(context.Context, event.Event) bool { return false })
	assert.False(t, reject.Process(context.Background(), event.Event{Name: "b"}))
}
