package strand

import (
	"time"
	"unsafe"

	"github.com/GoBlaze/strand/constants"
)

// Algorithm is the pluggable scheduling policy behind a scheduler. All
// methods except Notify are called only from the owning thread; Notify
// must be safe to call from any thread.
type Algorithm interface {
	// Awakened hands a newly-ready context to the algorithm. The
	// algorithm may consult ctx.Properties().
	Awakened(ctx *Context)
	// PickNext returns the next fiber to run, or nil.
	PickNext() *Context
	// HasReadyFibers reports whether any fiber is ready.
	HasReadyFibers() bool
	// SuspendUntil parks the OS thread until tp or until Notify.
	SuspendUntil(tp time.Time)
	// Notify wakes a thread parked in SuspendUntil.
	Notify()
}

// RoundRobin is the default algorithm: FIFO over one ready list, with a
// buffered-channel token for idle parking.
type RoundRobin struct {
	readyQueue readyList
	notifyCh   chan struct{}
	_          [constants.CacheLinePadSize - unsafe.Sizeof((chan struct{})(nil))%constants.CacheLinePadSize]byte
}

// NewRoundRobin returns a FIFO round-robin algorithm.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{
		notifyCh: make(chan struct{}, 1),
	}
}

func (r *RoundRobin) Awakened(ctx *Context) {
	r.readyQueue.push(ctx)
}

func (r *RoundRobin) PickNext() *Context {
	return r.readyQueue.pop()
}

func (r *RoundRobin) HasReadyFibers() bool {
	return !r.readyQueue.empty()
}

// SuspendUntil parks the thread until the deadline or a Notify token.
// A stale token costs one spurious dispatcher pass, nothing more.
func (r *RoundRobin) SuspendUntil(tp time.Time) {
	if !tp.Before(timeMax) {
		<-r.notifyCh
		return
	}
	d := time.Until(tp)
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	select {
	case <-r.notifyCh:
		t.Stop()
	case <-t.C:
	}
}

// Notify posts a wake-up token; extra tokens coalesce.
func (r *RoundRobin) Notify() {
	select {
	case r.notifyCh <- struct{}{}:
	default:
	}
}
