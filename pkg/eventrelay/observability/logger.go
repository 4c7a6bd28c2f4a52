// Package observability provides logging, metrics and tracing for the
// event relay: structured logging, metrics, and distributed tracing.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds relay context to a logger.
// Returns a new logger with store_key and channel fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "group.com.example/analytics-events.cache", "com.example.wake")
//	enriched.Info("draining") // includes store_key, channel
func EnrichLogger(logger *slog.Logger, storeKey, channel string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("store_key", storeKey),
		slog.String("channel", channel),
	)
}

// LogPost logs an event accepted into the shared store.
func LogPost(logger *slog.Logger, eventName string) {
	if logger == nil {
		return
	}
	logger.Debug("event posted",
		slog.String("event_name", eventName),
	)
}

// LogPostError logs a failed post. op is the step that failed ("append"
// or "raise").
func LogPostError(logger *slog.Logger, eventName, op string, err error) {
	if logger == nil {
		return
	}
	logger.Error("event post failed",
		slog.String("event_name", eventName),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// LogDrain logs a completed drain.
func LogDrain(logger *slog.Logger, count int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("event cache drained",
		slog.Int("count", count),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogDrainError logs a failed drain (non-fatal: nothing is dispatched this
// cycle).
func LogDrainError(logger *slog.Logger, err error) {
	if logger == nil {
		return
	}
	logger.Warn("event cache drain failed",
		slog.String("error", err.Error()),
	)
}

// LogDispatch logs whether the dispatch sink accepted an event.
func LogDispatch(logger *slog.Logger, eventName, eventID string, accepted bool) {
	if logger == nil {
		return
	}
	msg := "event not tracked"
	if accepted {
		msg = "event tracked"
	}
	logger.Info(msg,
		slog.String("event_name", eventName),
		slog.String("event_id", eventID),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
