package eventrelay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/randalmurphal/eventrelay/pkg/eventrelay/observability"
	"github.com/randalmurphal/eventrelay/pkg/eventrelay/signal"
)

// Observer subscribes a Tracker to the tracking request channel so that
// every raise by a producer drains the store.
type Observer struct {
	tracker *Tracker
	center  signal.Center
	channel signal.Channel
	logger  *slog.Logger
	metrics observability.MetricsRecorder

	mu        sync.Mutex
	token     signal.Token
	observing bool
}

// NewObserver creates an observer that wakes tracker on c.
func NewObserver(tracker *Tracker, c signal.Center, opts ...Option) *Observer {
	cfg := applyOptions(opts)
	return &Observer{
		tracker: tracker,
		center:  c,
		channel: cfg.channel,
		logger:  cfg.logger,
		metrics: cfg.metrics,
	}
}

// Start installs d as the tracker's delegate and subscribes to the
// channel. It returns false if the observer was already started.
//
// Start does not drain events cached before it was called; use
// TrackCachedEvents for that.
func (o *Observer) Start(d Delegate) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.observing {
		return false, nil
	}

	o.tracker.SetDelegate(d)
	tok, err := o.center.Subscribe(o.channel, o.onSignal)
	if err != nil {
		o.tracker.SetDelegate(nil)
		return false, err
	}

	o.token = tok
	o.observing = true
	o.logger.Info("observing tracking requests", slog.String("channel", string(o.channel)))
	return true, nil
}

// Stop unsubscribes and removes the tracker's delegate. It returns false
// if the observer was not started.
func (o *Observer) Stop() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.observing {
		return false
	}

	o.center.Unsubscribe(o.token)
	o.tracker.SetDelegate(nil)
	o.token = ""
	o.observing = false
	o.logger.Info("stopped observing tracking requests", slog.String("channel", string(o.channel)))
	return true
}

// Observing reports whether the observer is started.
func (o *Observer) Observing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.observing
}

// TrackCachedEvents drains and dispatches whatever is in the store now.
func (o *Observer) TrackCachedEvents(ctx context.Context) int {
	return o.tracker.Track(ctx)
}

func (o *Observer) onSignal(ch signal.Channel) {
	// Start and Stop change the delegate under o.mu, so this snapshot is
	// the delegate that was installed when the wake arrived.
	o.mu.Lock()
	observing := o.observing
	d := o.tracker.Delegate()
	o.mu.Unlock()
	if !observing || d == nil {
		return
	}

	ctx := context.Background()
	o.metrics.RecordSignal(ctx, string(ch), observability.SignalObserved)
	o.tracker.drainAndDispatch(ctx, d)
}
