package spinlock

import (
	"runtime"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/GoBlaze/strand/constants"
)

const (
	unlocked = 0
	locked   = 1

	// spins of the inner test loop before the goroutine yields
	spinsBeforeYield = 64
	// yields before falling back to sleeping
	yieldsBeforeSleep = 16
	// upper bound of the binary exponential back-off, in microseconds
	maxSleepUS = 500
)

// SpinLock is a test-and-test-and-set lock for the short, non-suspending
// sections inside the runtime. A fiber must never suspend while holding
// one.
type SpinLock struct {
	state atomic.Int32
	_     [constants.CacheLinePadSize - unsafe.Sizeof(atomic.Int32{})]byte
}

func (l *SpinLock) Lock() {
	sleepUS := 1
	for {
		for i := 0; i < spinsBeforeYield; i++ {
			// test before test-and-set keeps the line shared while owned
			if l.state.Load() == unlocked && l.state.CompareAndSwap(unlocked, locked) {
				return
			}
		}
		for i := 0; i < yieldsBeforeSleep; i++ {
			runtime.Gosched()
			if l.state.Load() == unlocked && l.state.CompareAndSwap(unlocked, locked) {
				return
			}
		}
		time.Sleep(time.Duration(sleepUS) * time.Microsecond)
		if sleepUS < maxSleepUS {
			sleepUS = min(sleepUS<<1, maxSleepUS)
		}
	}
}

// TryLock acquires the lock without waiting. It reports whether the lock
// was taken.
func (l *SpinLock) TryLock() bool {
	return l.state.Load() == unlocked && l.state.CompareAndSwap(unlocked, locked)
}

func (l *SpinLock) Unlock() {
	if l.state.Swap(unlocked) == unlocked {
		panic("BUG: spinlock: Unlock of unlocked SpinLock")
	}
}
