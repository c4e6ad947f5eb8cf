package lazylist

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type countingFactory struct {
	calls map[int]int
	fail  map[int]error
	// version lets tests simulate engine data changing behind a key.
	version int
}

func newCountingFactory() *countingFactory {
	return &countingFactory{calls: make(map[int]int), fail: make(map[int]error)}
}

func (f *countingFactory) build(key int) (string, error) {
	f.calls[key]++
	if err := f.fail[key]; err != nil {
		return "", err
	}
	return fmt.Sprintf("widget-%d-v%d", key, f.version), nil
}

func TestGetCachesPerKey(t *testing.T) {
	f := newCountingFactory()
	l := New([]int{1, 2, 3}, f.build)

	for round := 0; round < 3; round++ {
		for i := 0; i < l.Len(); i++ {
			w, err := l.Get(i)
			require.NoError(t, err)
			require.Equal(t, fmt.Sprintf("widget-%d-v0", i+1), w)
		}
	}
	require.Equal(t, map[int]int{1: 1, 2: 1, 3: 1}, f.calls)
	require.Equal(t, 3, l.Cached())
}

func TestGetOutOfRange(t *testing.T) {
	l := New([]int{7}, newCountingFactory().build)

	for _, i := range []int{-1, 1, 100} {
		_, err := l.Get(i)
		require.ErrorIs(t, err, ErrIndexOutOfRange)
	}

	empty := New[int, string](nil, newCountingFactory().build)
	_, err := empty.Get(0)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestClearCacheForcesRecompute(t *testing.T) {
	f := newCountingFactory()
	l := New([]int{1, 2}, f.build)

	_, err := l.Get(0)
	require.NoError(t, err)
	_, err = l.Get(1)
	require.NoError(t, err)

	f.version = 1
	l.ClearCache()
	require.Equal(t, 0, l.Cached())

	w, err := l.Get(1)
	require.NoError(t, err)
	require.Equal(t, "widget-2-v1", w)
	require.Equal(t, 2, f.calls[2])
	require.Equal(t, 1, f.calls[1])
}

func TestSetKeysKeepsCache(t *testing.T) {
	f := newCountingFactory()
	l := New([]int{1, 2}, f.build)

	_, err := l.Get(0)
	require.NoError(t, err)

	l.SetKeys([]int{3, 1})
	w, err := l.Get(1)
	require.NoError(t, err)
	require.Equal(t, "widget-1-v0", w)
	require.Equal(t, 1, f.calls[1])

	w, err = l.Get(0)
	require.NoError(t, err)
	require.Equal(t, "widget-3-v0", w)
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	f := newCountingFactory()
	l := New([]int{1, 2, 3}, f.build, WithCacheSize(2))

	for i := 0; i < 3; i++ {
		_, err := l.Get(i)
		require.NoError(t, err)
	}
	require.Equal(t, 2, l.Cached())

	// Key 1 was the least recently used and must be rebuilt.
	_, err := l.Get(0)
	require.NoError(t, err)
	require.Equal(t, 2, f.calls[1])

	// Key 3 survived the eviction of key 2 caused by re-adding key 1.
	_, err = l.Get(2)
	require.NoError(t, err)
	require.Equal(t, 1, f.calls[3])

	_, err = l.Get(1)
	require.NoError(t, err)
	require.Equal(t, 2, f.calls[2])
}

func TestRecentAccessProtectsEntry(t *testing.T) {
	f := newCountingFactory()
	l := New([]int{1, 2, 3}, f.build, WithCacheSize(2))

	_, _ = l.Get(0) // 1
	_, _ = l.Get(1) // 2
	_, _ = l.Get(0) // touch 1, so 2 becomes oldest
	_, _ = l.Get(2) // 3 evicts 2

	_, _ = l.Get(0)
	require.Equal(t, 1, f.calls[1])
	_, _ = l.Get(1)
	require.Equal(t, 2, f.calls[2])
}

func TestFactoryErrorPropagatesAndIsNotCached(t *testing.T) {
	f := newCountingFactory()
	gone := errors.New("chat deleted")
	f.fail[2] = gone
	l := New([]int{1, 2}, f.build)

	_, err := l.Get(1)
	require.ErrorIs(t, err, gone)
	require.Equal(t, 0, l.Cached())

	delete(f.fail, 2)
	w, err := l.Get(1)
	require.NoError(t, err)
	require.Equal(t, "widget-2-v0", w)
	require.Equal(t, 2, f.calls[2])
}

func TestSequenceMutation(t *testing.T) {
	f := newCountingFactory()
	l := New([]int{1, 3}, f.build)

	_, err := l.Get(1)
	require.NoError(t, err)

	require.NoError(t, l.Insert(1, 2))
	l.Append(4)
	require.Equal(t, []int{1, 2, 3, 4}, l.Keys())
	require.ErrorIs(t, l.Insert(9, 5), ErrIndexOutOfRange)

	// Key 3 moved to position 2 but its cached widget is still served.
	w, err := l.Get(2)
	require.NoError(t, err)
	require.Equal(t, "widget-3-v0", w)
	require.Equal(t, 1, f.calls[3])

	require.True(t, l.Remove(2))
	require.False(t, l.Remove(42))
	require.Equal(t, []int{1, 3, 4}, l.Keys())
	require.Equal(t, 1, l.Index(3))
	require.Equal(t, -1, l.Index(2))

	key, ok := l.Key(2)
	require.True(t, ok)
	require.Equal(t, 4, key)
	_, ok = l.Key(3)
	require.False(t, ok)
}

func TestKeysAreCopied(t *testing.T) {
	keys := []int{1, 2}
	l := New(keys, newCountingFactory().build)
	keys[0] = 99
	require.Equal(t, []int{1, 2}, l.Keys())

	out := l.Keys()
	out[1] = 42
	require.Equal(t, []int{1, 2}, l.Keys())
}

func TestStructKeys(t *testing.T) {
	type key struct {
		account int
		chat    int
	}
	calls := 0
	l := New([]key{{1, 10}, {2, 10}}, func(k key) (int, error) {
		calls++
		return k.account*100 + k.chat, nil
	})
	w, err := l.Get(1)
	require.NoError(t, err)
	require.Equal(t, 210, w)
	_, _ = l.Get(1)
	require.Equal(t, 1, calls)
}
