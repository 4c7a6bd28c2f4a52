package eventrelay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/randalmurphal/eventrelay/pkg/eventrelay/config"
	"github.com/randalmurphal/eventrelay/pkg/eventrelay/observability"
	"github.com/randalmurphal/eventrelay/pkg/eventrelay/registry"
	"github.com/randalmurphal/eventrelay/pkg/eventrelay/signal"
	"github.com/randalmurphal/eventrelay/pkg/eventrelay/store"
)

// Relay wires a store, a signal center and the producer and consumer
// components for one shared container.
//
// Every component is registered in a registry.Container, one per concrete
// type, so hosts can resolve them by type or by interface.
type Relay struct {
	settings  config.Settings
	key       store.Key
	container *registry.Container
	redis     *redis.Client
	logger    *slog.Logger
}

// New builds a relay from settings.
func New(settings config.Settings, opts ...Option) (*Relay, error) {
	settings = settings.WithDefaults()
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	cfg := applyOptions(opts)
	key := store.Key{ContainerID: settings.AppGroupID, FileName: settings.FileName}
	opts = append([]Option{WithStoreKey(key)}, opts...)

	r := &Relay{
		settings:  settings,
		key:       key,
		container: registry.NewContainer(),
		logger:    cfg.logger,
	}

	if settings.StoreBackend == config.StoreRedis || settings.SignalBackend == config.SignalRedis {
		client, err := store.ConnectRedis(context.Background(), settings.RedisURL)
		if err != nil {
			return nil, err
		}
		r.redis = client
	}

	s, err := r.buildStore()
	if err != nil {
		r.closeRedis()
		return nil, err
	}

	c, err := r.buildCenter()
	if errors.Is(err, signal.ErrSignalUnsupported) {
		// The store and explicit tracking still work without wakes.
		r.logger.Warn("signal backend unsupported, using in-process signals",
			slog.String("signal_backend", settings.SignalBackend),
			slog.String("error", err.Error()),
		)
		r.settings.SignalBackend = config.SignalLocal
		c, err = signal.NewLocalCenter(r.signalOptions()...), nil
	}
	if err != nil {
		s.Close()
		r.closeRedis()
		return nil, err
	}

	tracker := NewTracker(s, opts...)
	observer := NewObserver(tracker, c, opts...)
	poster := NewPoster(s, c, opts...)
	openCount := NewOpenCountCache(settings.ContainersRoot, settings.AppGroupID, opts...)

	for _, component := range []any{
		r.settings, s, c, tracker, observer, poster, openCount,
		cfg.logger, cfg.metrics, cfg.spans,
	} {
		if !r.container.Register(component) {
			r.logger.Warn("component type already registered", slog.String("type", fmt.Sprintf("%T", component)))
		}
	}

	r.logger.Debug("relay ready",
		slog.String("store_key", key.String()),
		slog.String("store_backend", settings.StoreBackend),
		slog.String("signal_backend", r.settings.SignalBackend),
	)
	return r, nil
}

func (r *Relay) buildStore() (store.Store, error) {
	codec, err := store.CodecByName(r.settings.Codec)
	if err != nil {
		return nil, err
	}
	storeOpts := []store.Option{
		store.WithCodec(codec),
		store.WithFileLock(r.settings.FileLock),
		store.WithLogger(r.logger),
	}

	switch r.settings.StoreBackend {
	case config.StoreFile:
		return store.NewFileStore(r.settings.ContainersRoot, r.key, storeOpts...), nil
	case config.StoreSQLite:
		return store.NewSQLiteStore(r.settings.SQLitePath, r.key, storeOpts...)
	case config.StoreRedis:
		return store.NewRedisStore(r.redis, r.key, storeOpts...), nil
	case config.StoreMemory:
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", r.settings.StoreBackend)
	}
}

// newFileCenter is replaced in tests to simulate platforms without a file
// watcher.
var newFileCenter = func(dir string, opts ...signal.Option) (signal.Center, error) {
	c, err := signal.NewFileCenter(dir, opts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Relay) signalOptions() []signal.Option {
	return []signal.Option{
		signal.WithLogger(r.logger),
		signal.WithDebounce(r.settings.SignalDebounce),
	}
}

func (r *Relay) buildCenter() (signal.Center, error) {
	signalOpts := r.signalOptions()

	switch r.settings.SignalBackend {
	case config.SignalFile:
		return newFileCenter(r.settings.SignalDir, signalOpts...)
	case config.SignalRedis:
		return signal.NewRedisCenter(context.Background(), r.redis, signalOpts...), nil
	case config.SignalLocal:
		return signal.NewLocalCenter(signalOpts...), nil
	default:
		return nil, fmt.Errorf("unknown signal backend %q", r.settings.SignalBackend)
	}
}

// Settings returns the effective settings.
func (r *Relay) Settings() config.Settings {
	return r.settings
}

// Key returns the store key.
func (r *Relay) Key() store.Key {
	return r.key
}

// Container returns the component registry.
func (r *Relay) Container() *registry.Container {
	return r.container
}

// Store returns the shared event store.
func (r *Relay) Store() store.Store {
	return registry.MustResolve[store.Store](r.container)
}

// Center returns the signal center.
func (r *Relay) Center() signal.Center {
	return registry.MustResolve[signal.Center](r.container)
}

// Poster returns the producer.
func (r *Relay) Poster() *Poster {
	return registry.MustResolve[*Poster](r.container)
}

// Tracker returns the consumer's tracker.
func (r *Relay) Tracker() *Tracker {
	return registry.MustResolve[*Tracker](r.container)
}

// Observer returns the consumer's observer.
func (r *Relay) Observer() *Observer {
	return registry.MustResolve[*Observer](r.container)
}

// OpenCount returns the push open-count cache.
func (r *Relay) OpenCount() *OpenCountCache {
	return registry.MustResolve[*OpenCountCache](r.container)
}

// Metrics returns the metrics recorder.
func (r *Relay) Metrics() observability.MetricsRecorder {
	return registry.MustResolve[observability.MetricsRecorder](r.container)
}

// Close stops observing and releases the center, the store and any Redis
// connection.
func (r *Relay) Close() error {
	r.Observer().Stop()
	err := errors.Join(
		r.Center().Close(),
		r.Store().Close(),
	)
	r.closeRedis()
	return err
}

func (r *Relay) closeRedis() {
	if r.redis != nil {
		r.redis.Close()
		r.redis = nil
	}
}
