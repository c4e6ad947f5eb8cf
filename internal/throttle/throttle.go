package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Throttle delivers at most one call per interval to its handler, always
// with the most recent argument. Arguments superseded before delivery are
// discarded.
type Throttle[T any] struct {
	handler  func(T) error
	interval time.Duration
	limiter  *rate.Limiter
	logger   zerolog.Logger

	mu         sync.Mutex
	pending    T
	hasPending bool

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New starts a Throttle worker for handler.
func New[T any](handler func(T) error, interval time.Duration, opts ...Option) *Throttle[T] {
	o := buildOptions(opts)
	interval = normalizeInterval(interval)
	ctx, cancel := context.WithCancel(context.Background())
	t := &Throttle[T]{
		handler:  handler,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		logger:   o.workerLogger(),
		wake:     make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go t.loop()
	return t
}

// Invoke records arg as the pending call and returns immediately.
func (t *Throttle[T]) Invoke(arg T) {
	if t.ctx.Err() != nil {
		return
	}
	t.mu.Lock()
	t.pending = arg
	t.hasPending = true
	t.mu.Unlock()

	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// Interval returns the minimum spacing between handler calls.
func (t *Throttle[T]) Interval() time.Duration {
	return t.interval
}

// Close stops the worker. A pending call that has not started is dropped.
func (t *Throttle[T]) Close() {
	t.cancel()
	<-t.done
}

func (t *Throttle[T]) loop() {
	defer close(t.done)
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-t.wake:
		}
		if !t.ready() {
			continue
		}

		// Waiting before taking the slot lets calls that arrive during the
		// cooldown replace the pending argument.
		if err := t.limiter.Wait(t.ctx); err != nil {
			return
		}

		arg, ok := t.take()
		if !ok {
			continue
		}
		if err := invokeSafely(func() error { return t.handler(arg) }); err != nil {
			t.logger.Warn().Err(err).Msg("throttled handler failed")
		}
	}
}

func (t *Throttle[T]) ready() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasPending
}

func (t *Throttle[T]) take() (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var zero T
	if !t.hasPending {
		return zero, false
	}
	arg := t.pending
	t.pending = zero
	t.hasPending = false
	return arg, true
}
