package strand

import (
	"runtime"
	"sync"
	"time"

	"github.com/GoBlaze/strand/spinlock"
)

// Cond is a condition variable for fibers, usable with any sync.Locker —
// typically a Mutex. The zero value is ready for use.
//
// A notifier and an expiring timed wait can race for the same fiber;
// both sides claim it through its wait-handshake spinlocks, so each
// blocked fiber is woken exactly once.
type Cond struct {
	splk      spinlock.SpinLock
	waitQueue waitList
}

// Wait atomically releases l and blocks the calling fiber until another
// fiber calls Signal or Broadcast. l is re-acquired before Wait returns.
// As with any condition variable, callers must re-check their predicate
// in a loop.
func (c *Cond) Wait(l sync.Locker) {
	active := mustActive()
	c.splk.Lock()
	c.waitQueue.push(active)
	l.Unlock()
	active.sched.suspendLock(&c.splk)
	l.Lock()
}

// WaitUntil is Wait with a deadline. It reports whether the fiber was
// woken before tp; false means the wait timed out.
func (c *Cond) WaitUntil(l sync.Locker, tp time.Time) bool {
	active := mustActive()
	c.splk.Lock()
	c.waitQueue.push(active)
	active.waitSplk = &c.splk
	active.sleepSplk = &active.sched.sleepSplk
	active.waitListP = &c.waitQueue
	l.Unlock()
	signaled := active.sched.waitUntil(active, tp, &c.splk)
	// the waking side unlinked and disarmed us; the cleanup below only
	// covers a stray Schedule of a waiting fiber
	c.splk.Lock()
	if c.waitQueue.linked(active) {
		c.waitQueue.unlink(active)
	}
	active.waitSplk, active.sleepSplk, active.waitListP = nil, nil, nil
	c.splk.Unlock()
	l.Lock()
	return signaled
}

// WaitFor is WaitUntil with a relative deadline.
func (c *Cond) WaitFor(l sync.Locker, d time.Duration) bool {
	return c.WaitUntil(l, time.Now().Add(d))
}

// Signal wakes the longest-waiting fiber, if any.
func (c *Cond) Signal() {
	active := mustActive()
	for {
		c.splk.Lock()
		ctx := c.waitQueue.front()
		if ctx == nil {
			c.splk.Unlock()
			return
		}
		if ctx.waitSplk != nil {
			if ctx.waitSplk != &c.splk {
				fatalf("timed waiter armed against a foreign wait-queue")
			}
			sl := ctx.sleepSplk
			if !sl.TryLock() {
				// the timer side is waking this fiber; try the queue again
				c.splk.Unlock()
				runtime.Gosched()
				continue
			}
			ctx.sched.sleepQueue.unlink(ctx)
			ctx.waitSplk, ctx.sleepSplk, ctx.waitListP = nil, nil, nil
			sl.Unlock()
		}
		c.waitQueue.pop()
		active.schedule(ctx)
		c.splk.Unlock()
		return
	}
}

// Broadcast wakes every waiting fiber.
func (c *Cond) Broadcast() {
	active := mustActive()
	for {
		c.splk.Lock()
		for {
			ctx := c.waitQueue.front()
			if ctx == nil {
				c.splk.Unlock()
				return
			}
			if ctx.waitSplk != nil {
				if ctx.waitSplk != &c.splk {
					fatalf("timed waiter armed against a foreign wait-queue")
				}
				sl := ctx.sleepSplk
				if !sl.TryLock() {
					c.splk.Unlock()
					runtime.Gosched()
					break // restart the claim loop
				}
				ctx.sched.sleepQueue.unlink(ctx)
				ctx.waitSplk, ctx.sleepSplk, ctx.waitListP = nil, nil, nil
				sl.Unlock()
			}
			c.waitQueue.pop()
			active.schedule(ctx)
		}
	}
}
