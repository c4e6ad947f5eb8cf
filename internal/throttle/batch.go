package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// BatchThrottle merges every call received within a window into a single
// handler invocation. Nothing is dropped.
//
// The window opens when the worker sees the first queued argument after
// being idle and lasts exactly interval; later arrivals do not extend it.
type BatchThrottle[T any] struct {
	handler  func([]T) error
	interval time.Duration
	logger   zerolog.Logger

	mu    sync.Mutex
	queue []T

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBatch starts a BatchThrottle worker for handler.
func NewBatch[T any](handler func([]T) error, interval time.Duration, opts ...Option) *BatchThrottle[T] {
	o := buildOptions(opts)
	ctx, cancel := context.WithCancel(context.Background())
	b := &BatchThrottle[T]{
		handler:  handler,
		interval: normalizeInterval(interval),
		logger:   o.workerLogger(),
		wake:     make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go b.loop()
	return b
}

// Invoke queues args for the next batch and returns immediately. A call
// with no arguments is ignored.
func (b *BatchThrottle[T]) Invoke(args ...T) {
	if len(args) == 0 || b.ctx.Err() != nil {
		return
	}
	b.mu.Lock()
	b.queue = append(b.queue, args...)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Interval returns the batching window.
func (b *BatchThrottle[T]) Interval() time.Duration {
	return b.interval
}

// Close stops the worker after delivering anything still queued.
func (b *BatchThrottle[T]) Close() {
	b.cancel()
	<-b.done
}

func (b *BatchThrottle[T]) loop() {
	defer close(b.done)
	for {
		select {
		case <-b.ctx.Done():
			b.deliver(b.drain())
			return
		case <-b.wake:
		}
		if b.pending() == 0 {
			continue
		}

		timer := time.NewTimer(b.interval)
		select {
		case <-timer.C:
		case <-b.ctx.Done():
			timer.Stop()
		}
		b.deliver(b.drain())
		if b.ctx.Err() != nil {
			return
		}
	}
}

func (b *BatchThrottle[T]) pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

func (b *BatchThrottle[T]) drain() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	batch := b.queue
	b.queue = nil
	return batch
}

func (b *BatchThrottle[T]) deliver(batch []T) {
	if len(batch) == 0 {
		return
	}
	if err := invokeSafely(func() error { return b.handler(batch) }); err != nil {
		b.logger.Warn().Err(err).Int("batch_size", len(batch)).Msg("batched handler failed")
	}
}
