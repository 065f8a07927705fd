package strand

import (
	"runtime"
	"time"

	"github.com/GoBlaze/strand/spinlock"
)

// Mutex blocks fibers, not threads. Unlock hands the mutex directly to
// the longest-waiting fiber and schedules it; on wake-up the fiber
// already owns the lock. Safe to share between fibers of different
// schedulers. The zero value is an unlocked mutex.
type Mutex struct {
	splk      spinlock.SpinLock
	owner     *Context
	waitQueue waitList
}

func (m *Mutex) Lock() {
	active := mustActive()
	m.splk.Lock()
	if m.owner == active {
		m.splk.Unlock()
		panic("BUG: strand: recursive lock of Mutex")
	}
	if m.owner == nil {
		m.owner = active
		m.splk.Unlock()
		return
	}
	m.waitQueue.push(active)
	active.sched.suspendLock(&m.splk)
	// direct hand-off: the unlocker made us owner before scheduling us
}

// TryLock acquires the mutex without suspending. It reports whether the
// mutex was taken.
func (m *Mutex) TryLock() bool {
	active := mustActive()
	m.splk.Lock()
	if m.owner == nil {
		m.owner = active
		m.splk.Unlock()
		return true
	}
	m.splk.Unlock()
	return false
}

func (m *Mutex) Unlock() {
	active := mustActive()
	m.splk.Lock()
	if m.owner != active {
		m.splk.Unlock()
		panic("BUG: strand: Unlock of Mutex not owned by caller")
	}
	if w := m.waitQueue.pop(); w != nil {
		m.owner = w
		active.schedule(w)
	} else {
		m.owner = nil
	}
	m.splk.Unlock()
}

// TimedMutex is a Mutex whose acquisition can carry a deadline. Timed
// waiters sit on both the mutex's wait queue and their scheduler's sleep
// queue, so the unlock path must claim them through the wait-handshake
// before waking them.
type TimedMutex struct {
	splk      spinlock.SpinLock
	owner     *Context
	waitQueue waitList
}

func (m *TimedMutex) Lock() {
	active := mustActive()
	m.splk.Lock()
	if m.owner == active {
		m.splk.Unlock()
		panic("BUG: strand: recursive lock of TimedMutex")
	}
	if m.owner == nil {
		m.owner = active
		m.splk.Unlock()
		return
	}
	m.waitQueue.push(active)
	active.sched.suspendLock(&m.splk)
}

// TryLock acquires the mutex without suspending. It reports whether the
// mutex was taken.
func (m *TimedMutex) TryLock() bool {
	active := mustActive()
	m.splk.Lock()
	if m.owner == nil {
		m.owner = active
		m.splk.Unlock()
		return true
	}
	m.splk.Unlock()
	return false
}

// TryLockUntil blocks until the mutex is acquired or tp passes. It
// reports whether the mutex was taken.
func (m *TimedMutex) TryLockUntil(tp time.Time) bool {
	active := mustActive()
	for {
		if !time.Now().Before(tp) {
			return false
		}
		m.splk.Lock()
		if m.owner == active {
			m.splk.Unlock()
			panic("BUG: strand: recursive lock of TimedMutex")
		}
		if m.owner == nil {
			m.owner = active
			m.splk.Unlock()
			return true
		}
		m.waitQueue.push(active)
		active.waitSplk = &m.splk
		active.sleepSplk = &active.sched.sleepSplk
		active.waitListP = &m.waitQueue
		signaled := active.sched.waitUntil(active, tp, &m.splk)
		m.splk.Lock()
		if m.owner == active {
			m.splk.Unlock()
			return true
		}
		// not handed the mutex: whichever side woke us has already
		// unlinked us; the checks below only cover a stray Schedule
		if m.waitQueue.linked(active) {
			m.waitQueue.unlink(active)
		}
		active.waitSplk, active.sleepSplk, active.waitListP = nil, nil, nil
		m.splk.Unlock()
		if !signaled {
			return false
		}
	}
}

// TryLockFor is TryLockUntil with a relative deadline.
func (m *TimedMutex) TryLockFor(d time.Duration) bool {
	return m.TryLockUntil(time.Now().Add(d))
}

func (m *TimedMutex) Unlock() {
	active := mustActive()
	for {
		m.splk.Lock()
		if m.owner != active {
			m.splk.Unlock()
			panic("BUG: strand: Unlock of TimedMutex not owned by caller")
		}
		w := m.waitQueue.front()
		if w == nil {
			m.owner = nil
			m.splk.Unlock()
			return
		}
		if w.waitSplk != nil {
			if w.waitSplk != &m.splk {
				fatalf("timed waiter armed against a foreign wait-queue")
			}
			sl := w.sleepSplk
			if !sl.TryLock() {
				// the timer side is waking this fiber; let it finish
				m.splk.Unlock()
				runtime.Gosched()
				continue
			}
			w.sched.sleepQueue.unlink(w)
			w.waitSplk, w.sleepSplk, w.waitListP = nil, nil, nil
			sl.Unlock()
		}
		m.waitQueue.pop()
		m.owner = w
		active.schedule(w)
		m.splk.Unlock()
		return
	}
}
