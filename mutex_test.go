package strand

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMutexExclusion(t *testing.T) {
	s := NewScheduler()
	defer s.Shutdown()

	var m Mutex
	var inCS atomic.Int32
	counter := 0
	const fibers = 8
	const iterations = 200

	workers := make([]*Context, fibers)
	for i := range workers {
		workers[i] = MakeWorker(Post, func() {
			for j := 0; j < iterations; j++ {
				m.Lock()
				if n := inCS.Add(1); n != 1 {
					t.Errorf("critical section occupancy %d", n)
				}
				counter++
				Yield() // holding a fiber mutex across suspension is legal
				inCS.Add(-1)
				m.Unlock()
			}
		})
	}
	for _, w := range workers {
		require.NoError(t, w.Join())
	}
	require.Equal(t, fibers*iterations, counter)
}

func TestMutexExclusionCrossThread(t *testing.T) {
	var m Mutex
	var inCS atomic.Int32
	var counter atomic.Int64
	const threads = 3
	const fibers = 4
	const iterations = 100

	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := NewScheduler()
			defer s.Shutdown()
			workers := make([]*Context, fibers)
			for j := range workers {
				workers[j] = MakeWorker(Post, func() {
					for k := 0; k < iterations; k++ {
						m.Lock()
						if n := inCS.Add(1); n != 1 {
							t.Errorf("critical section occupancy %d", n)
						}
						counter.Add(1)
						inCS.Add(-1)
						m.Unlock()
					}
				})
			}
			for _, w := range workers {
				if err := w.Join(); err != nil {
					t.Error(err)
				}
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int64(threads*fibers*iterations), counter.Load())
}

func TestMutexHandoffOrder(t *testing.T) {
	s := NewScheduler()
	defer s.Shutdown()

	var m Mutex
	var order []int
	m.Lock() // held by main; waiters queue in lock order
	workers := make([]*Context, 4)
	for i := range workers {
		i := i
		workers[i] = MakeWorker(Post, func() {
			m.Lock()
			order = append(order, i)
			m.Unlock()
		})
	}
	// let every fiber block on the mutex
	SleepFor(time.Millisecond)
	m.Unlock()
	for _, w := range workers {
		require.NoError(t, w.Join())
	}
	require.Equal(t, []int{0, 1, 2, 3}, order,
		"the mutex must hand off to waiters in FIFO order")
}

func TestMutexTryLock(t *testing.T) {
	s := NewScheduler()
	defer s.Shutdown()

	var m Mutex
	require.True(t, m.TryLock())
	held := true
	f := MakeWorker(Post, func() {
		held = m.TryLock()
	})
	require.NoError(t, f.Join())
	require.False(t, held, "TryLock must not block or succeed on a held mutex")
	m.Unlock()
	require.True(t, m.TryLock())
	m.Unlock()
}

func TestMutexRecursiveLockPanics(t *testing.T) {
	s := NewScheduler()
	defer s.Shutdown()

	var m Mutex
	var recovered any
	f := MakeWorker(Post, func() {
		defer func() { recovered = recover() }()
		m.Lock()
		m.Lock()
	})
	require.NoError(t, f.Join())
	require.NotNil(t, recovered, "recursive lock must panic")
}

func TestMutexCrossThreadWake(t *testing.T) {
	var m Mutex
	locked := make(chan struct{})
	witness := 0

	done := make(chan struct{})
	go func() {
		defer close(done)
		s := NewScheduler()
		defer s.Shutdown()
		b := MakeWorker(Post, func() {
			m.Lock()
			close(locked)
			SleepFor(5 * time.Millisecond)
			witness = 1
			m.Unlock()
		})
		if err := b.Join(); err != nil {
			t.Error(err)
		}
	}()

	s := NewScheduler()
	defer s.Shutdown()
	a := MakeWorker(Post, func() {
		<-locked // wait for the remote fiber to take the mutex
		m.Lock()
		// the remote unlock handed the mutex over and woke us through
		// the remote-ready path
		if witness != 1 {
			t.Error("resumed before the remote critical section finished")
		}
		m.Unlock()
	})
	require.NoError(t, a.Join())
	<-done
}

func TestTimedMutexTimeout(t *testing.T) {
	s := NewScheduler()
	defer s.Shutdown()

	var m TimedMutex
	var got bool
	var elapsed time.Duration
	holder := MakeWorker(Post, func() {
		m.Lock()
		SleepFor(80 * time.Millisecond)
		m.Unlock()
	})
	waiter := MakeWorker(Post, func() {
		start := time.Now()
		got = m.TryLockFor(20 * time.Millisecond)
		elapsed = time.Since(start)
	})
	require.NoError(t, holder.Join())
	require.NoError(t, waiter.Join())
	require.False(t, got, "the lock is held well past the deadline")
	require.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
	require.Less(t, elapsed, 80*time.Millisecond)
}

func TestTimedMutexHandoffBeforeDeadline(t *testing.T) {
	s := NewScheduler()
	defer s.Shutdown()

	var m TimedMutex
	var got bool
	holder := MakeWorker(Post, func() {
		m.Lock()
		SleepFor(10 * time.Millisecond)
		m.Unlock()
	})
	waiter := MakeWorker(Post, func() {
		got = m.TryLockUntil(time.Now().Add(10 * time.Second))
		if got {
			m.Unlock()
		}
	})
	require.NoError(t, holder.Join())
	require.NoError(t, waiter.Join())
	require.True(t, got)
}

func TestTimedMutexUncontended(t *testing.T) {
	s := NewScheduler()
	defer s.Shutdown()

	var m TimedMutex
	f := MakeWorker(Post, func() {
		if !m.TryLockFor(time.Millisecond) {
			t.Error("TryLockFor failed on a free mutex")
		}
		m.Unlock()
		if !m.TryLock() {
			t.Error("TryLock failed on a free mutex")
		}
		m.Unlock()
	})
	require.NoError(t, f.Join())
}
