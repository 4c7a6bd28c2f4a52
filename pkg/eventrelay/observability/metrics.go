package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Signal directions for RecordSignal.
const (
	SignalRaised   = "raised"
	SignalObserved = "observed"
)

// MetricsRecorder records relay metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordPost records one producer post and whether it failed.
	RecordPost(ctx context.Context, eventName string, err error)

	// RecordDrain records a drain of the shared store.
	RecordDrain(ctx context.Context, count int, duration time.Duration, err error)

	// RecordDispatch records one event handed to the dispatch sink.
	RecordDispatch(ctx context.Context, eventName string, accepted bool)

	// RecordSignal records a signal raised or observed on channel.
	RecordSignal(ctx context.Context, channel, direction string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	posts         metric.Int64Counter
	postErrors    metric.Int64Counter
	drains        metric.Int64Counter
	drainErrors   metric.Int64Counter
	drainedEvents metric.Int64Counter
	drainLatency  metric.Float64Histogram
	dispatches    metric.Int64Counter
	signals       metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("eventrelay")

	posts, err := meter.Int64Counter("eventrelay.events.posted",
		metric.WithDescription("Number of events posted to the shared store"),
	)
	if err != nil {
		return nil, err
	}

	postErrors, err := meter.Int64Counter("eventrelay.post.errors",
		metric.WithDescription("Number of failed posts"),
	)
	if err != nil {
		return nil, err
	}

	drains, err := meter.Int64Counter("eventrelay.store.drains",
		metric.WithDescription("Number of store drains"),
	)
	if err != nil {
		return nil, err
	}

	drainErrors, err := meter.Int64Counter("eventrelay.store.drain_errors",
		metric.WithDescription("Number of failed store drains"),
	)
	if err != nil {
		return nil, err
	}

	drainedEvents, err := meter.Int64Counter("eventrelay.events.drained",
		metric.WithDescription("Number of events removed from the store by drains"),
	)
	if err != nil {
		return nil, err
	}

	drainLatency, err := meter.Float64Histogram("eventrelay.store.drain_latency_ms",
		metric.WithDescription("Drain latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	dispatches, err := meter.Int64Counter("eventrelay.events.dispatched",
		metric.WithDescription("Number of events handed to the dispatch sink"),
	)
	if err != nil {
		return nil, err
	}

	signals, err := meter.Int64Counter("eventrelay.signals",
		metric.WithDescription("Number of signals raised or observed"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		posts:         posts,
		postErrors:    postErrors,
		drains:        drains,
		drainErrors:   drainErrors,
		drainedEvents: drainedEvents,
		drainLatency:  drainLatency,
		dispatches:    dispatches,
		signals:       signals,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordPost records a post.
func (m *otelMetrics) RecordPost(ctx context.Context, eventName string, err error) {
	attrs := metric.WithAttributes(attribute.String("event_name", eventName))
	if err != nil {
		m.postErrors.Add(ctx, 1, attrs)
		return
	}
	m.posts.Add(ctx, 1, attrs)
}

// RecordDrain records a drain.
func (m *otelMetrics) RecordDrain(ctx context.Context, count int, duration time.Duration, err error) {
	m.drains.Add(ctx, 1)
	m.drainLatency.Record(ctx, float64(duration.Microseconds())/1000)
	if err != nil {
		m.drainErrors.Add(ctx, 1)
		return
	}
	m.drainedEvents.Add(ctx, int64(count))
}

// RecordDispatch records a dispatch.
func (m *otelMetrics) RecordDispatch(ctx context.Context, eventName string, accepted bool) {
	m.dispatches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_name", eventName),
		attribute.Bool("accepted", accepted),
	))
}

// RecordSignal records a signal.
func (m *otelMetrics) RecordSignal(ctx context.Context, channel, direction string) {
	m.signals.Add(ctx, 1, metric.WithAttributes(
		attribute.String("channel", channel),
		attribute.String("direction", direction),
	))
}
