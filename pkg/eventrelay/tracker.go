package eventrelay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/eventrelay/pkg/eventrelay/event"
	"github.com/randalmurphal/eventrelay/pkg/eventrelay/observability"
	"github.com/randalmurphal/eventrelay/pkg/eventrelay/store"
)

// Tracker is the consumer side of the relay: it drains the shared store and
// hands each event to the delegate in arrival order.
//
// Only one drain-and-dispatch cycle runs at a time per Tracker, so batches
// from concurrent wakes are disjoint and dispatched one after another.
type Tracker struct {
	store    store.Store
	storeKey string
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager
	now      func() time.Time

	flight sync.Mutex

	mu       sync.RWMutex
	delegate Delegate
}

// NewTracker creates a tracker draining s.
func NewTracker(s store.Store, opts ...Option) *Tracker {
	cfg := applyOptions(opts)
	logger := cfg.logger
	if cfg.storeKey != "" {
		logger = logger.With(slog.String("store_key", cfg.storeKey))
	}
	return &Tracker{
		store:    s,
		storeKey: cfg.storeKey,
		logger:   logger,
		metrics:  cfg.metrics,
		spans:    cfg.spans,
		now:      cfg.now,
	}
}

// SetDelegate replaces the dispatch sink. nil removes it.
func (t *Tracker) SetDelegate(d Delegate) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delegate = d
}

// Delegate returns the current dispatch sink, or nil.
func (t *Tracker) Delegate() Delegate {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.delegate
}

// Track drains the store and dispatches what it found. It returns the
// number of events handed to the delegate.
//
// With no delegate the store is still drained and every event is logged
// as not tracked.
func (t *Tracker) Track(ctx context.Context) int {
	return t.drainAndDispatch(ctx, t.Delegate())
}

// drainAndDispatch drains the store and hands each event to delegate,
// which may be nil.
func (t *Tracker) drainAndDispatch(ctx context.Context, delegate Delegate) int {
	t.flight.Lock()
	defer t.flight.Unlock()

	ctx, span := t.spans.StartDrainSpan(ctx, t.storeKey)
	done := observability.TimedOperation()

	records, err := t.store.Drain(ctx)
	durationMs := done()
	t.metrics.RecordDrain(ctx, len(records), time.Duration(durationMs*float64(time.Millisecond)), err)
	if err != nil {
		observability.LogDrainError(t.logger, err)
		t.spans.EndSpanWithError(span, err)
		return 0
	}
	if len(records) == 0 {
		t.spans.EndSpanWithError(span, nil)
		return 0
	}
	observability.LogDrain(t.logger, len(records), durationMs)

	receivedAt := t.now()
	dispatched, accepted := 0, 0
	for _, rec := range records {
		evt, ok := event.FromRecord(rec, receivedAt)
		if !ok {
			t.logger.Warn("skipping cached record without event name",
				slog.Any("record", rec.Wire()),
			)
			continue
		}

		tracked := false
		if delegate != nil {
			dispatched++
			tracked = delegate.Process(ctx, evt)
		}
		observability.LogDispatch(t.logger, evt.Name, evt.ID, tracked)
		t.metrics.RecordDispatch(ctx, evt.Name, tracked)
		if tracked {
			accepted++
		}
	}

	t.spans.AddSpanEvent(ctx, "dispatched",
		attribute.Int("drained", len(records)),
		attribute.Int("dispatched", dispatched),
		attribute.Int("accepted", accepted),
	)
	t.spans.EndSpanWithError(span, nil)
	return dispatched
}
