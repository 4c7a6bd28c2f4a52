package eventrelay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/eventrelay/pkg/eventrelay/event"
	"github.com/randalmurphal/eventrelay/pkg/eventrelay/observability"
	"github.com/randalmurphal/eventrelay/pkg/eventrelay/signal"
	"github.com/randalmurphal/eventrelay/pkg/eventrelay/store"
)

// Poster is the producer side of the relay: it appends events to the shared
// store and wakes the consumer.
type Poster struct {
	store   store.Store
	center  signal.Center
	channel signal.Channel
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
}

// NewPoster creates a producer over s and c.
func NewPoster(s store.Store, c signal.Center, opts ...Option) *Poster {
	cfg := applyOptions(opts)
	return &Poster{
		store:   s,
		center:  c,
		channel: cfg.channel,
		logger:  cfg.logger,
		metrics: cfg.metrics,
		spans:   cfg.spans,
	}
}

// Post appends one event and, once it is stored, raises the tracking
// request.
//
// If the append fails nothing is raised and the error is returned. If the
// raise fails the event stays stored for the next Track and the raise
// error is returned.
func (p *Poster) Post(ctx context.Context, name string, params map[string]any) (err error) {
	ctx, span := p.spans.StartPostSpan(ctx, name)
	defer func() { p.spans.EndSpanWithError(span, err) }()

	if name == "" {
		return ErrEmptyEventName
	}

	rec := event.NewRecord(name, params)
	if err := p.store.Append(ctx, event.List{rec}); err != nil {
		observability.LogPostError(p.logger, name, "append", err)
		p.metrics.RecordPost(ctx, name, err)
		return fmt.Errorf("append event %q: %w", name, err)
	}
	p.metrics.RecordPost(ctx, name, nil)

	if err := p.center.Raise(p.channel); err != nil {
		observability.LogPostError(p.logger, name, "raise", err)
		return fmt.Errorf("raise %s: %w", p.channel, err)
	}
	p.metrics.RecordSignal(ctx, string(p.channel), observability.SignalRaised)

	observability.LogPost(p.logger, name)
	return nil
}
