// Package lazylist provides an ordered key sequence whose display widgets
// are built on demand and kept in a bounded LRU cache.
package lazylist

import (
	"errors"
	"fmt"
	"slices"
)

// ErrIndexOutOfRange is returned by Get for positions outside the key sequence.
var ErrIndexOutOfRange = errors.New("index out of range")

// Factory converts a key into its display widget. It may read live engine
// state, so results for the same key can change between ClearCache calls.
type Factory[K comparable, W any] func(key K) (W, error)

// List is a sequence of keys materialized lazily into widgets.
//
// List is not safe for concurrent use; it is owned by the UI goroutine.
type List[K comparable, W any] struct {
	keys      []K
	factory   Factory[K, W]
	cacheSize int
	cache     *lruCache[K, W]
}

// Option configures a List.
type Option func(*options)

type options struct {
	cacheSize int
}

// WithCacheSize bounds the number of cached widgets (default 1000).
func WithCacheSize(n int) Option {
	return func(o *options) {
		o.cacheSize = n
	}
}

// New creates a list over keys using factory to build widgets.
func New[K comparable, W any](keys []K, factory Factory[K, W], opts ...Option) *List[K, W] {
	o := options{cacheSize: defaultCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cacheSize <= 0 {
		o.cacheSize = defaultCacheSize
	}
	return &List[K, W]{
		keys:      slices.Clone(keys),
		factory:   factory,
		cacheSize: o.cacheSize,
		cache:     newLRUCache[K, W](o.cacheSize),
	}
}

// Get returns the widget for position i.
func (l *List[K, W]) Get(i int) (W, error) {
	if i < 0 || i >= len(l.keys) {
		var zero W
		return zero, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, len(l.keys))
	}
	key := l.keys[i]
	if widget, ok := l.cache.get(key); ok {
		return widget, nil
	}
	widget, err := l.factory(key)
	if err != nil {
		var zero W
		return zero, err
	}
	l.cache.put(key, widget)
	return widget, nil
}

// SetKeys replaces the key sequence. Cached widgets are kept; call
// ClearCache first when the data behind unchanged keys may have changed.
func (l *List[K, W]) SetKeys(keys []K) {
	l.keys = slices.Clone(keys)
}

// ClearCache drops every cached widget.
func (l *List[K, W]) ClearCache() {
	l.cache = newLRUCache[K, W](l.cacheSize)
}

// Insert places key at position i, shifting later keys. i == Len() appends.
func (l *List[K, W]) Insert(i int, key K) error {
	if i < 0 || i > len(l.keys) {
		return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, len(l.keys))
	}
	l.keys = slices.Insert(l.keys, i, key)
	return nil
}

// Append adds key at the end of the sequence.
func (l *List[K, W]) Append(key K) {
	l.keys = append(l.keys, key)
}

// Remove deletes the first occurrence of key and reports whether it was found.
func (l *List[K, W]) Remove(key K) bool {
	i := slices.Index(l.keys, key)
	if i < 0 {
		return false
	}
	l.keys = slices.Delete(l.keys, i, i+1)
	return true
}

// Len returns the number of keys.
func (l *List[K, W]) Len() int {
	return len(l.keys)
}

// Keys returns a copy of the key sequence.
func (l *List[K, W]) Keys() []K {
	return slices.Clone(l.keys)
}

// Key returns the key at position i.
func (l *List[K, W]) Key(i int) (K, bool) {
	if i < 0 || i >= len(l.keys) {
		var zero K
		return zero, false
	}
	return l.keys[i], true
}

// Index returns the position of key, or -1.
func (l *List[K, W]) Index(key K) int {
	return slices.Index(l.keys, key)
}

// Cached returns the number of widgets currently held in the cache.
func (l *List[K, W]) Cached() int {
	return l.cache.len()
}
