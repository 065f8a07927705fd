package strand

import (
	"time"

	"github.com/GoBlaze/strand/spinlock"
)

// Scheduler multiplexes fibers onto the thread that constructed it. All
// queues are thread-private except the remote-ready inbox, which is the
// only cross-thread handoff and is guarded by its spinlock. The sleep
// queue carries its own spinlock so timed waiters on shared primitives
// can be claimed from other threads (see the wait-handshake in cond.go).
type Scheduler struct {
	algo Algorithm

	mainCtx       *Context
	dispatcherCtx *Context

	workerQueue     workerList
	terminatedQueue terminatedList

	sleepQueue sleepList
	sleepSplk  spinlock.SpinLock

	remoteReadyQueue remoteReadyList
	remoteSplk       spinlock.SpinLock

	shutdown bool
}

// Option configures a scheduler at construction.
type Option func(*Scheduler)

// WithAlgorithm installs a scheduling algorithm other than the default
// round-robin.
func WithAlgorithm(a Algorithm) Option {
	return func(s *Scheduler) { s.algo = a }
}

// NewScheduler constructs a scheduler owned by the calling goroutine:
// the caller's own execution state becomes the main context, and a fresh
// dispatcher fiber is attached ready to run on the main context's first
// suspension. Tear down with Shutdown from the same goroutine.
func NewScheduler(opts ...Option) *Scheduler {
	if Active() != nil {
		panic("BUG: strand: thread already owns a scheduler")
	}
	s := &Scheduler{}
	for _, o := range opts {
		o(s)
	}
	if s.algo == nil {
		s.algo = NewRoundRobin()
	}
	s.attachMainContext()
	s.attachDispatcherContext()
	log.Debugf("strand: scheduler %p attached", s)
	return s
}

func (s *Scheduler) attachMainContext() {
	ctx := newMainContext(s)
	f := currentFlow()
	f.owner = ctx
	s.mainCtx = ctx
}

// attachDispatcherContext creates the dispatcher fiber and makes it
// ready, so the first time the main context suspends the dispatcher runs
// and enters dispatch.
func (s *Scheduler) attachDispatcherContext() {
	s.dispatcherCtx = newDispatcherContext(s)
	s.algo.Awakened(s.dispatcherCtx)
}

// AttachWorker links a worker context to this scheduler.
func (s *Scheduler) AttachWorker(ctx *Context) {
	if ctx.sched != nil {
		fatalf("attach of context %#x already owned by a scheduler", ctx.ID())
	}
	s.workerQueue.push(ctx)
	ctx.sched = s
}

// DetachWorker unlinks a worker context; it must not be pinned.
func (s *Scheduler) DetachWorker(ctx *Context) {
	if ctx.IsType(TypePinned) {
		fatalf("detach of pinned context %#x", ctx.ID())
	}
	s.workerQueue.unlink(ctx)
	ctx.sched = nil
}

// releaseTerminated drops the scheduler's reference on every drained
// fiber; the last reference runs the destroy + stack-release handshake
// on the dispatcher's flow.
func (s *Scheduler) releaseTerminated() {
	for ctx := s.terminatedQueue.pop(); ctx != nil; ctx = s.terminatedQueue.pop() {
		if !ctx.IsType(TypeWorker) || ctx.IsType(TypePinned) {
			fatalf("non-worker context %#x on terminated-queue", ctx.ID())
		}
		if !ctx.terminated {
			fatalf("live context %#x on terminated-queue", ctx.ID())
		}
		ctx.decRef()
	}
}

// remoteReady2Ready swaps out the inbox under its spinlock and feeds the
// contexts to the local queues.
func (s *Scheduler) remoteReady2Ready() {
	var tmp remoteReadyList
	s.remoteSplk.Lock()
	s.remoteReadyQueue.swap(&tmp)
	s.remoteSplk.Unlock()
	for ctx := tmp.pop(); ctx != nil; ctx = tmp.pop() {
		s.schedule(ctx)
	}
}

// sleep2Ready wakes every sleeper whose deadline has passed. A sleeper
// that is also a timed waiter on a mutex or condvar must be claimed
// through its wait-queue spinlock; if that lock is contended a notifier
// is claiming the same fiber, so the sleeper is left for the next pass.
func (s *Scheduler) sleep2Ready() {
	now := time.Now()
	s.sleepSplk.Lock()
	for {
		head := s.sleepQueue.head
		if head == nil || head.tp.After(now) {
			break
		}
		if head.waitSplk != nil {
			if !head.waitSplk.TryLock() {
				break
			}
			wq := head.waitSplk
			head.waitListP.unlink(head)
			head.waitSplk, head.sleepSplk, head.waitListP = nil, nil, nil
			wq.Unlock()
		}
		ctx := s.sleepQueue.pop(now)
		if ctx.IsType(TypeDispatcher) {
			fatalf("dispatcher context on sleep-queue")
		}
		s.algo.Awakened(ctx)
	}
	s.sleepSplk.Unlock()
}

// dispatch is the dispatcher fiber's loop: drain terminated, remote and
// expired sleepers, then run the next ready fiber or park the thread.
// The returned continuation is the dispatcher's disposal-time resume,
// which its flow exits to.
func (s *Scheduler) dispatch() *Continuation {
	for {
		if s.shutdown {
			s.algo.Notify()
			if s.workerQueue.empty() {
				break
			}
		}
		s.releaseTerminated()
		s.remoteReady2Ready()
		s.sleep2Ready()
		if ctx := s.algo.PickNext(); ctx != nil {
			// hand the dispatcher over as the context to re-enqueue, so
			// the ready queue never runs dry
			ctx.doResume(nil, s.dispatcherCtx)
		} else {
			s.sleepSplk.Lock()
			tp := s.sleepQueue.lowestDeadline()
			s.sleepSplk.Unlock()
			s.algo.SuspendUntil(tp)
		}
	}
	s.releaseTerminated()
	// finish the dispatcher: drop its joiner (the main context, parked
	// in Shutdown) and hand control straight back to it
	d := s.dispatcherCtx
	d.splk.Lock()
	d.terminated = true
	for w := d.waitQueue.pop(); w != nil; w = d.waitQueue.pop() {
		if w != s.mainCtx {
			fatalf("unexpected joiner of dispatcher context")
		}
	}
	d.splk.Unlock()
	return s.mainCtx.suspendWithCC()
}

// schedule makes a context owned by this scheduler ready, unlinking it
// from the sleep queue first in case a timed wait is being cut short.
func (s *Scheduler) schedule(ctx *Context) {
	if ctx == nil {
		fatalf("schedule of nil context")
	}
	s.sleepSplk.Lock()
	s.sleepQueue.unlink(ctx)
	s.sleepSplk.Unlock()
	s.algo.Awakened(ctx)
}

// scheduleFromRemote is the cross-thread wake-up path: push into the
// spinlocked inbox, then knock on the algorithm so a parked thread
// re-runs its dispatch pass.
func (s *Scheduler) scheduleFromRemote(ctx *Context) {
	if ctx == nil {
		fatalf("remote schedule of nil context")
	}
	if ctx.IsType(TypeDispatcher) {
		fatalf("remote schedule of dispatcher context")
	}
	s.remoteSplk.Lock()
	if s.shutdown {
		s.remoteSplk.Unlock()
		fatalf("remote schedule on a scheduler shutting down")
	}
	s.remoteReadyQueue.push(ctx)
	s.remoteSplk.Unlock()
	s.algo.Notify()
}

// terminate parks ctx on the terminated queue and switches to the next
// ready fiber for good. Called on ctx's own flow with lk held; lk is
// released before the final switch — the terminated flag is already
// published under it.
func (s *Scheduler) terminate(lk *spinlock.SpinLock, ctx *Context) *Continuation {
	if Active() != ctx {
		fatalf("terminate of context %#x from another fiber", ctx.ID())
	}
	if !ctx.IsType(TypeWorker) || ctx.IsType(TypePinned) {
		fatalf("terminate of non-worker context %#x", ctx.ID())
	}
	s.terminatedQueue.push(ctx)
	s.workerQueue.unlink(ctx)
	lk.Unlock()
	next := s.algo.PickNext()
	if next == nil {
		fatalf("no ready context after terminate")
	}
	return next.suspendWithCC()
}

// yield re-enqueues ctx behind the ready fibers and runs the next one.
func (s *Scheduler) yield(ctx *Context) {
	if Active() != ctx {
		fatalf("yield of context %#x from another fiber", ctx.ID())
	}
	next := s.algo.PickNext()
	if next == nil {
		fatalf("no ready context on yield")
	}
	next.doResume(nil, ctx)
}

// suspend runs the next ready fiber; the caller must already be linked
// on whatever queue will wake it.
func (s *Scheduler) suspend() {
	next := s.algo.PickNext()
	if next == nil {
		fatalf("no ready context on suspend")
	}
	next.doResume(nil, nil)
}

// suspendLock is suspend with a spinlock released on the far side of the
// switch, once the suspension has committed.
func (s *Scheduler) suspendLock(lk *spinlock.SpinLock) {
	next := s.algo.PickNext()
	if next == nil {
		fatalf("no ready context on suspend")
	}
	next.doResume(lk, nil)
}

// waitUntil parks ctx on the sleep queue until tp, releasing lk (may be
// nil) atomically with the switch. It reports whether the fiber was
// woken before the deadline.
func (s *Scheduler) waitUntil(ctx *Context, tp time.Time, lk *spinlock.SpinLock) bool {
	if Active() != ctx {
		fatalf("wait of context %#x from another fiber", ctx.ID())
	}
	if ctx.IsType(TypeDispatcher) {
		fatalf("dispatcher context cannot wait")
	}
	s.sleepSplk.Lock()
	ctx.tp = tp
	s.sleepQueue.push(ctx)
	s.sleepSplk.Unlock()
	if lk != nil {
		s.suspendLock(lk)
	} else {
		s.suspend()
	}
	return time.Now().Before(tp)
}

// HasReadyFibers reports whether the algorithm holds a ready fiber.
func (s *Scheduler) HasReadyFibers() bool {
	return s.algo.HasReadyFibers()
}

// SetAlgorithm swaps the scheduling algorithm, migrating any fibers the
// old one still holds ready.
func (s *Scheduler) SetAlgorithm(a Algorithm) {
	for s.algo.HasReadyFibers() {
		a.Awakened(s.algo.PickNext())
	}
	s.algo = a
}

// Shutdown tears the scheduler down from its owning goroutine: signal
// the dispatcher, wait for it to drain every worker, then release the
// dispatcher and main contexts. Fibers that never terminate make
// Shutdown wait forever; that is a caller bug.
func (s *Scheduler) Shutdown() {
	if Active() != s.mainCtx {
		panic("BUG: strand: Shutdown called off the owning thread")
	}
	s.remoteSplk.Lock()
	s.shutdown = true
	s.remoteSplk.Unlock()
	s.dispatcherCtx.join()
	if !s.workerQueue.empty() || !s.terminatedQueue.empty() || !s.sleepQueue.empty() {
		fatalf("scheduler torn down with live fibers")
	}
	resetActive()
	s.dispatcherCtx.decRef()
	s.dispatcherCtx = nil
	s.mainCtx.decRef()
	s.mainCtx = nil
	log.Debugf("strand: scheduler %p detached", s)
}
