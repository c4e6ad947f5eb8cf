package throttle

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type delivery[T any] struct {
	arg T
	at  time.Time
}

type recorder[T any] struct {
	mu    sync.Mutex
	calls []delivery[T]
}

func (r *recorder[T]) record(arg T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, delivery[T]{arg: arg, at: time.Now()})
}

func (r *recorder[T]) snapshot() []delivery[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]delivery[T], len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *recorder[T]) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func quiet() Option {
	return WithLogger(zerolog.Nop())
}

func TestThrottleBurstDeliversOnlyLatest(t *testing.T) {
	const interval = 200 * time.Millisecond
	rec := &recorder[string]{}
	th := New(func(arg string) error {
		rec.record(arg)
		return nil
	}, interval, quiet())
	t.Cleanup(th.Close)

	th.Invoke("warm")
	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	for _, arg := range []string{"a1", "a2", "a3", "a4", "a5", "a6", "a7", "a8", "a9"} {
		th.Invoke(arg)
	}
	require.Eventually(t, func() bool { return rec.count() == 2 }, 2*time.Second, 5*time.Millisecond)

	time.Sleep(3 * interval)
	calls := rec.snapshot()
	require.Len(t, calls, 2)
	require.Equal(t, "warm", calls[0].arg)
	require.Equal(t, "a9", calls[1].arg)
	require.GreaterOrEqual(t, calls[1].at.Sub(calls[0].at), interval-20*time.Millisecond)
}

func TestThrottleSupersededArgumentNeverFinal(t *testing.T) {
	const interval = 300 * time.Millisecond
	rec := &recorder[string]{}
	th := New(func(arg string) error {
		rec.record(arg)
		return nil
	}, interval, quiet())
	t.Cleanup(th.Close)

	th.Invoke("a")
	time.Sleep(interval / 5)
	th.Invoke("b")

	require.Eventually(t, func() bool {
		calls := rec.snapshot()
		return len(calls) > 0 && calls[len(calls)-1].arg == "b"
	}, 2*time.Second, 5*time.Millisecond)

	time.Sleep(2 * interval)
	calls := rec.snapshot()
	require.LessOrEqual(t, len(calls), 2)
	require.Equal(t, "b", calls[len(calls)-1].arg)
}

func TestThrottleSpacesInvocations(t *testing.T) {
	const interval = 60 * time.Millisecond
	rec := &recorder[int]{}
	th := New(func(arg int) error {
		rec.record(arg)
		return nil
	}, interval, quiet())
	t.Cleanup(th.Close)

	stop := time.After(400 * time.Millisecond)
	i := 0
loop:
	for {
		select {
		case <-stop:
			break loop
		default:
			th.Invoke(i)
			i++
			time.Sleep(time.Millisecond)
		}
	}

	require.Eventually(t, func() bool {
		calls := rec.snapshot()
		return len(calls) > 0 && calls[len(calls)-1].arg == i-1
	}, 2*time.Second, 5*time.Millisecond)

	calls := rec.snapshot()
	require.Less(t, len(calls), i)
	for k := 1; k < len(calls); k++ {
		require.GreaterOrEqual(t, calls[k].at.Sub(calls[k-1].at), interval-15*time.Millisecond)
		require.Greater(t, calls[k].arg, calls[k-1].arg)
	}
}

func TestThrottleSurvivesHandlerFailures(t *testing.T) {
	rec := &recorder[string]{}
	th := New(func(arg string) error {
		rec.record(arg)
		switch arg {
		case "error":
			return errors.New("refresh failed")
		case "panic":
			panic("widget exploded")
		}
		return nil
	}, 10*time.Millisecond, quiet())
	t.Cleanup(th.Close)

	th.Invoke("error")
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 2*time.Millisecond)
	th.Invoke("panic")
	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 2*time.Millisecond)
	th.Invoke("ok")
	require.Eventually(t, func() bool { return rec.count() == 3 }, time.Second, 2*time.Millisecond)

	require.Equal(t, "ok", rec.snapshot()[2].arg)
}

func TestThrottleNeverRunsConcurrently(t *testing.T) {
	var active, maxActive, total int32
	th := New(func(int) error {
		n := atomic.AddInt32(&active, 1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		time.Sleep(3 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		atomic.AddInt32(&total, 1)
		return nil
	}, time.Millisecond, quiet())
	t.Cleanup(th.Close)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				th.Invoke(g*100 + i)
			}
		}(g)
	}
	wg.Wait()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&total) > 0 }, time.Second, 2*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
}

func TestThrottleCloseStopsDelivery(t *testing.T) {
	rec := &recorder[int]{}
	th := New(func(arg int) error {
		rec.record(arg)
		return nil
	}, 10*time.Millisecond, quiet())

	th.Invoke(1)
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 2*time.Millisecond)

	th.Close()
	th.Invoke(2)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, rec.count())
}

func TestThrottleDefaultsInterval(t *testing.T) {
	th := New(func(int) error { return nil }, 0, quiet())
	t.Cleanup(th.Close)
	require.Equal(t, DefaultInterval, th.Interval())
}
