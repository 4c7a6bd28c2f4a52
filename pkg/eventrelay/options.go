package eventrelay

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/eventrelay/pkg/eventrelay/observability"
	"github.com/randalmurphal/eventrelay/pkg/eventrelay/signal"
	"github.com/randalmurphal/eventrelay/pkg/eventrelay/store"
)

// EventsTrackingRequest is the channel producers raise after appending
// events and consumers observe.
const EventsTrackingRequest signal.Channel = "com.eventrelay.notifications.analytics.events.tracking.request"

// relayConfig holds configuration shared by the relay components.
type relayConfig struct {
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager
	channel  signal.Channel
	storeKey string
	now      func() time.Time
}

func defaultRelayConfig() relayConfig {
	return relayConfig{
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
		channel: EventsTrackingRequest,
		now:     time.Now,
	}
}

func applyOptions(opts []Option) relayConfig {
	c := defaultRelayConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Option configures a relay component.
type Option func(*relayConfig)

// WithLogger sets the logger. A nil logger keeps the default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *relayConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics enables metrics recording.
// Default: observability.NoopMetrics{}
//
// Example:
//
//	relay, err := eventrelay.New(settings, eventrelay.WithMetrics(observability.NewMetricsRecorder()))
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *relayConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithSpanManager enables tracing.
// Default: observability.NoopSpanManager{}
func WithSpanManager(s observability.SpanManager) Option {
	return func(c *relayConfig) {
		if s != nil {
			c.spans = s
		}
	}
}

// WithChannel overrides the signal channel. Producer and consumer must use
// the same one.
// Default: EventsTrackingRequest
func WithChannel(ch signal.Channel) Option {
	return func(c *relayConfig) {
		if ch != "" {
			c.channel = ch
		}
	}
}

// WithStoreKey labels logs and drain spans with the store key.
func WithStoreKey(key store.Key) Option {
	return func(c *relayConfig) {
		c.storeKey = key.String()
	}
}
