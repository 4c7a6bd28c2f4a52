/*
Package eventrelay hands analytics events from one process to another on the
same host, in order, with each event delivered to at most one consumer.

# Overview

A producer (for example an app extension) posts events into a shared store
and raises a signal. The consumer (the host app) observes the signal,
drains the store and hands each event to a Delegate:

	extension                               host
	---------                               ----
	Poster.Post ──► store.Append            Observer (subscribed)
	            └─► signal.Raise ─────────► Tracker.Track
	                                          ├─ store.Drain
	                                          └─ Delegate.Process (in order)

Events survive termination of either process: anything appended and not yet
drained is still in the store the next time the consumer tracks.

# Basic Usage

Both processes build a Relay from the same settings:

	settings, err := config.LoadSettings()
	if err != nil {
	    log.Fatal(err)
	}
	relay, err := eventrelay.New(settings)
	if err != nil {
	    log.Fatal(err)
	}
	defer relay.Close()

The producer posts:

	err = relay.Poster().Post(ctx, "pushNotification", map[string]any{"rid": "abcd1234"})

The consumer observes and also drains whatever was cached while it was not
running:

	relay.Observer().Start(eventrelay.DelegateFunc(func(ctx context.Context, e event.Event) bool {
	    return sender.Send(ctx, e) == nil
	}))
	relay.Observer().TrackCachedEvents(ctx)

# Delivery

The signal carries no data and is not queued. A raise with no observer is
simply lost; the events it announced stay in the store until the next
Track. A failed drain dispatches nothing and is not retried.

Within one process, drains are serialized, so concurrent wakes never
dispatch the same record twice. Across processes the file store is
eventually consistent unless file locking is enabled; the SQLite and Redis
stores drain atomically.

# Observability

Components log through log/slog and accept OpenTelemetry metrics and
tracing via WithMetrics and WithSpanManager. Both default to no-ops.
*/
package eventrelay
