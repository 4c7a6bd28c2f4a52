package eventrelay

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventrelay/pkg/eventrelay/event"
	"github.com/randalmurphal/eventrelay/pkg/eventrelay/observability"
	"github.com/randalmurphal/eventrelay/pkg/eventrelay/signal"
	"github.com/randalmurphal/eventrelay/pkg/eventrelay/store"
)

func TestObserver_StartStop(t *testing.T) {
	tr := NewTracker(store.NewMemoryStore())
	o := NewObserver(tr, signal.NewLocalCenter())
	d := newRecordingDelegate()

	started, err := o.Start(d)
	require.NoError(t, err)
	assert.True(t, started)
	assert.True(t, o.Observing())
	assert.Same(t, d, tr.Delegate())

	started, err = o.Start(newRecordingDelegate())
	require.NoError(t, err)
	assert.False(t, started)
	assert.Same(t, d, tr.Delegate(), "second start must not replace the delegate")

	assert.True(t, o.Stop())
	assert.False(t, o.Observing())
	assert.Nil(t, tr.Delegate())

	assert.False(t, o.Stop())
}

func TestObserver_PushNotificationScenario(t *testing.T) {
	s := store.NewMemoryStore()
	c := signal.NewLocalCenter()
	defer c.Close()

	o := NewObserver(NewTracker(s), c)
	d := newRecordingDelegate()
	_, err := o.Start(d)
	require.NoError(t, err)
	defer o.Stop()

	p := NewPoster(s, c)
	require.NoError(t, p.Post(context.Background(), "pushNotification", map[string]any{"rid": "abcd1234"}))

	require.Eventually(t, func() bool { return len(d.Events()) == 1 }, time.Second, 5*time.Millisecond)
	evt := d.Events()[0]
	assert.Equal(t, "pushNotification", evt.Name)
	assert.Equal(t, "abcd1234", evt.String("rid"))

	left, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestObserver_NoWakeAfterStop(t *testing.T) {
	s := store.NewMemoryStore()
	c := signal.NewLocalCenter()
	defer c.Close()

	o := NewObserver(NewTracker(s), c)
	d := newRecordingDelegate()
	_, err := o.Start(d)
	require.NoError(t, err)
	require.True(t, o.Stop())

	require.NoError(t, NewPoster(s, c).Post(context.Background(), "a", nil))
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, d.Events())
	left, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.Len(t, left, 1, "event must stay cached while nobody observes")
}

func TestObserver_TrackCachedEvents(t *testing.T) {
	s := store.NewMemoryStore()
	appendNames(t, s, "cached-1", "cached-2")

	o := NewObserver(NewTracker(s), signal.NewLocalCenter())
	d := newRecordingDelegate()
	_, err := o.Start(d)
	require.NoError(t, err)
	defer o.Stop()

	assert.Empty(t, d.Events(), "start does not replay cached events")
	assert.Equal(t, 2, o.TrackCachedEvents(context.Background()))
	assert.Equal(t, []string{"cached-1", "cached-2"}, d.Names())
}

func TestObserver_SubscribeFailure(t *testing.T) {
	c := signal.NewLocalCenter()
	require.NoError(t, c.Close())

	tr := NewTracker(store.NewMemoryStore())
	o := NewObserver(tr, c)

	started, err := o.Start(newRecordingDelegate())
	assert.False(t, started)
	assert.ErrorIs(t, err, signal.ErrCenterClosed)
	assert.Nil(t, tr.Delegate())
	assert.False(t, o.Observing())
}

func TestObserver_BurstOfPostsDispatchedOnce(t *testing.T) {
	s := store.NewMemoryStore()
	c := signal.NewLocalCenter()
	defer c.Close()

	var calls atomic.Int32
	o := NewObserver(NewTracker(s), c)
	_, err := o.Start(DelegateFunc(func(context.Context, event.Event) bool {
		calls.Add(1)
		return true
	}))
	require.NoError(t, err)
	defer o.Stop()

	p := NewPoster(s, c)
	for i := 0; i < 20; i++ {
		require.NoError(t, p.Post(context.Background(), "burst", map[string]any{"i": i}))
	}

	require.Eventually(t, func() bool { return calls.Load() == 20 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(20), calls.Load())
}

// signalMetrics reports each observed signal on a channel.
type signalMetrics struct {
	observability.NoopMetrics
	observed chan string
}

func (m *signalMetrics) RecordSignal(_ context.Context, ch, direction string) {
	if direction == observability.SignalObserved {
		m.observed <- ch
	}
}

func TestObserver_WakeRacingStopKeepsDelegate(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	c := signal.NewLocalCenter()
	defer c.Close()

	metrics := &signalMetrics{observed: make(chan string, 1)}
	o := NewObserver(NewTracker(s), c, WithMetrics(metrics))

	entered := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var names []string
	_, err := o.Start(DelegateFunc(func(_ context.Context, e event.Event) bool {
		if e.Name == "first" {
			close(entered)
			<-release
		}
		mu.Lock()
		names = append(names, e.Name)
		mu.Unlock()
		return true
	}))
	require.NoError(t, err)

	// Hold the tracker busy so the wake below waits for its turn.
	appendNames(t, s, "first")
	busy := make(chan struct{})
	go func() {
		defer close(busy)
		o.TrackCachedEvents(ctx)
	}()
	<-entered

	appendNames(t, s, "second")
	woke := make(chan struct{})
	go func() {
		defer close(woke)
		o.onSignal(EventsTrackingRequest)
	}()

	select {
	case <-metrics.observed:
	case <-time.After(2 * time.Second):
		t.Fatal("wake not observed")
	}
	require.True(t, o.Stop())
	close(release)
	<-busy
	<-woke

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second"}, names)

	left, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestObserver_WakeAfterStopIgnored(t *testing.T) {
	s := store.NewMemoryStore()
	appendNames(t, s, "cached")

	o := NewObserver(NewTracker(s), signal.NewLocalCenter())
	_, err := o.Start(newRecordingDelegate())
	require.NoError(t, err)
	require.True(t, o.Stop())

	o.onSignal(EventsTrackingRequest)

	left, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.Len(t, left, 1)
}
