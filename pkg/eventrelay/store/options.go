package store

import "log/slog"

// Option configures a store.
type Option func(*options)

type options struct {
	codec    Codec
	fileLock bool
	logger   *slog.Logger
}

func defaultOptions() options {
	return options{
		codec:  JSONCodec{},
		logger: slog.Default(),
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithCodec sets the payload codec. Defaults to JSONCodec.
func WithCodec(c Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithFileLock makes FileStore take an advisory flock(2) on a sidecar
// ".lock" file around every operation, so appends and drains are mutually
// exclusive across processes. Other backends ignore it.
func WithFileLock(enabled bool) Option {
	return func(o *options) {
		o.fileLock = enabled
	}
}

// WithLogger sets the logger. A nil logger keeps the default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
