// Package throttle coalesces high-frequency calls into a bounded rate of
// handler invocations.
//
// Throttle keeps only the newest pending argument and delivers it at most
// once per interval. BatchThrottle keeps every argument and delivers all of
// those received within a window as one batch. Both run the handler on a
// single worker goroutine and survive handler errors and panics.
package throttle

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/curseddelta/curseddelta/internal/logging"
)

// DefaultInterval is used when a non-positive interval is given.
const DefaultInterval = time.Second

// Option configures a Throttle or BatchThrottle.
type Option func(*options)

type options struct {
	name   string
	logger *zerolog.Logger
}

// WithName labels log lines written by the worker.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger overrides the logger used for swallowed handler failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) workerLogger() zerolog.Logger {
	logger := logging.Component("throttle")
	if o.logger != nil {
		logger = *o.logger
	}
	if o.name != "" {
		logger = logger.With().Str("throttle", o.name).Logger()
	}
	return logger
}

func normalizeInterval(interval time.Duration) time.Duration {
	if interval <= 0 {
		return DefaultInterval
	}
	return interval
}

// invokeSafely runs fn and converts a panic into an error so the worker
// goroutine keeps running.
func invokeSafely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn()
}
