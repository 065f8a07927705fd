package strand

import (
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/GoBlaze/strand/spinlock"
)

// Type classifies a context. Values combine as a bitmask.
type Type uint8

const (
	TypeNone       Type = 0
	TypeMain       Type = 1 << 0
	TypeDispatcher Type = 1 << 1
	TypeWorker     Type = 1 << 2
	// TypePinned marks a context that must not migrate between
	// schedulers: the main and dispatcher contexts.
	TypePinned Type = 1 << 3
)

// Launch selects how a new fiber enters the scheduler.
type Launch uint8

const (
	// Post makes the fiber ready; the caller keeps running.
	Post Launch = iota
	// Dispatch suspends the caller and runs the fiber immediately;
	// control returns when the fiber next yields.
	Dispatch
)

// ID is an opaque, pointer-derived fiber identifier.
type ID uintptr

// timeMax is the far-future sentinel standing in for an unset deadline.
var timeMax = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

// Context is one fiber: its suspended execution state, its queue
// memberships, its joiners and its fiber-local storage. A context is
// jointly owned — by the user-visible handle, by its scheduler until the
// terminated-queue drain, and transiently across switches — through the
// reference count.
type Context struct {
	useCount atomic.Int64

	// intrusive links; each pair belongs to one list kind
	remoteReadyPrev, remoteReadyNext *Context
	waitPrev, waitNext               *Context
	sleepPrev, sleepNext             *Context
	readyPrev, readyNext             *Context
	terminatedPrev, terminatedNext   *Context
	workerPrev, workerNext           *Context

	// splk guards terminated and waitQueue
	splk       spinlock.SpinLock
	terminated bool
	waitQueue  waitList

	sched *Scheduler
	c     *Continuation

	fls        atomic.Pointer[map[FLSKey]flsEntry]
	properties any

	// tp is the wake deadline while on a sleep-queue; timeMax otherwise
	tp time.Time

	// wait-handshake fields (timed waits on mutex/condvar): spinlocks
	// the fiber expects to see unlocked when it is woken, plus the wait
	// list it is linked on so either waking side can unlink it
	waitSplk  *spinlock.SpinLock
	sleepSplk *spinlock.SpinLock
	waitListP *waitList

	typ      Type
	policy   Launch
	joinable atomic.Bool
}

// ID returns the fiber's opaque identifier.
func (ctx *Context) ID() ID {
	return ID(uintptr(unsafe.Pointer(ctx)))
}

// IsType reports whether the context's type intersects t.
func (ctx *Context) IsType(t Type) bool {
	return ctx.typ&t != TypeNone
}

// Scheduler returns the scheduler the context is attached to, or nil.
func (ctx *Context) Scheduler() *Scheduler { return ctx.sched }

// Policy returns the launch policy the fiber was created with.
func (ctx *Context) Policy() Launch { return ctx.policy }

// Properties returns the opaque scheduling properties handed to the
// algorithm on every wake-up.
func (ctx *Context) Properties() any { return ctx.properties }

// SetProperties attaches opaque scheduling properties to the context.
func (ctx *Context) SetProperties(props any) { ctx.properties = props }

// IsTerminated reports whether the fiber has finished.
func (ctx *Context) IsTerminated() bool {
	ctx.splk.Lock()
	t := ctx.terminated
	ctx.splk.Unlock()
	return t
}

func newMainContext(s *Scheduler) *Context {
	ctx := &Context{
		typ:   TypeMain | TypePinned,
		tp:    timeMax,
		sched: s,
	}
	ctx.useCount.Store(1)
	return ctx
}

func newDispatcherContext(s *Scheduler) *Context {
	ctx := &Context{
		typ:   TypeDispatcher | TypePinned,
		tp:    timeMax,
		sched: s,
	}
	ctx.useCount.Store(1)
	ctx.c = callcc(ctx, func(c *Continuation) *Continuation {
		ctx.applyTransfer(c)
		return s.dispatch()
	})
	return ctx
}

func newWorkerContext(policy Launch, fn func()) *Context {
	ctx := &Context{
		typ:    TypeWorker,
		policy: policy,
		tp:     timeMax,
	}
	// the scheduler's reference, dropped by the terminated-queue drain
	ctx.useCount.Store(1)
	ctx.joinable.Store(true)
	ctx.c = callcc(ctx, func(c *Continuation) *Continuation {
		ctx.applyTransfer(c)
		runFiber(fn)
		return ctx.terminate()
	})
	return ctx
}

// runFiber keeps a panic in user code from tearing down the process: the
// fiber aborts like a normal termination and joiners are woken.
func runFiber(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("strand: fiber terminated by panic: %v", r)
		}
	}()
	fn()
}

// MakeWorker creates a worker fiber running fn on the calling fiber's
// scheduler. With Post the fiber becomes ready and the caller continues;
// with Dispatch the caller is re-enqueued and fn runs immediately.
func MakeWorker(policy Launch, fn func()) *Context {
	active := Active()
	if active == nil {
		panic("BUG: strand: MakeWorker called outside an attached thread")
	}
	ctx := newWorkerContext(policy, fn)
	ctx.incRef() // the handle's reference
	active.sched.AttachWorker(ctx)
	if policy == Dispatch {
		ctx.doResume(nil, active)
	} else {
		active.schedule(ctx)
	}
	return ctx
}

func (ctx *Context) incRef() {
	ctx.useCount.Add(1)
}

// decRef drops one reference. On the zero transition the context is
// destroyed: fiber-local storage cleanups run, then the terminal
// resume(nil) handshake lets the fiber goroutine return and release its
// stack.
func (ctx *Context) decRef() {
	if n := ctx.useCount.Add(-1); n == 0 {
		ctx.destroy()
	} else if n < 0 {
		fatalf("context %#x over-released", ctx.ID())
	}
}

func (ctx *Context) destroy() {
	if ctx.readyPrev != nil || ctx.readyNext != nil ||
		ctx.sleepPrev != nil || ctx.sleepNext != nil ||
		ctx.workerPrev != nil || ctx.workerNext != nil ||
		ctx.terminatedPrev != nil || ctx.terminatedNext != nil ||
		ctx.remoteReadyPrev != nil || ctx.remoteReadyNext != nil {
		fatalf("context %#x destroyed while still linked", ctx.ID())
	}
	ctx.clearFLS()
	c := ctx.c
	ctx.c = nil
	ctx.sched = nil
	if c.Valid() {
		c.Resume()
		// a releaser that was never attached borrowed a flow just for
		// the handshake; drop it again
		if f := peekFlow(); f != nil && f.owner == nil {
			unbindFlow()
		}
	}
}

// applyTransfer runs the far side of the switch protocol: store the
// suspender's fresh continuation, then release the published spinlock or
// make the published context ready. ctx is the context that just gained
// control.
func (ctx *Context) applyTransfer(c *Continuation) {
	d, _ := c.Data().(*transferData)
	if d == nil {
		return
	}
	c.data = nil
	if d.from != nil {
		d.from.c = c
	}
	if d.lock != nil {
		d.lock.Unlock()
	} else if d.ctx != nil {
		ctx.schedule(d.ctx)
	}
	releaseTransfer(d)
}

// doResume switches from the active context into ctx, publishing at most
// one of lk (to release) and ready (to schedule). It returns when the
// suspended fiber is next switched to.
func (ctx *Context) doResume(lk *spinlock.SpinLock, ready *Context) {
	prev := Active()
	if prev == nil {
		panic("BUG: strand: resume outside an attached thread")
	}
	c := ctx.c
	if !c.Valid() {
		fatalf("resume of non-resumable context %#x", ctx.ID())
	}
	ctx.c = nil
	ret := c.ResumeWith(acquireTransfer(prev, lk, ready))
	prev.applyTransfer(ret)
}

// suspendWithCC switches into ctx like doResume but hands the re-entry
// continuation back raw. Termination paths use it: the next entry is the
// disposal resume, whose continuation the dying flow must exit to.
func (ctx *Context) suspendWithCC() *Continuation {
	prev := Active()
	if prev == nil {
		panic("BUG: strand: resume outside an attached thread")
	}
	c := ctx.c
	if !c.Valid() {
		fatalf("resume of non-resumable context %#x", ctx.ID())
	}
	ctx.c = nil
	return c.ResumeWith(acquireTransfer(prev, nil, nil))
}

// terminate finishes the calling fiber: it wakes every joiner, parks the
// context on the scheduler's terminated queue and switches away for the
// last time. The returned continuation is the disposal-time continuation
// of the releasing fiber.
func (ctx *Context) terminate() *Continuation {
	ctx.splk.Lock()
	ctx.terminated = true
	for w := ctx.waitQueue.pop(); w != nil; w = ctx.waitQueue.pop() {
		ctx.schedule(w)
	}
	return ctx.sched.terminate(&ctx.splk, ctx)
}

// join blocks the active fiber until ctx terminates.
func (ctx *Context) join() {
	active := Active()
	ctx.splk.Lock()
	if !ctx.terminated {
		ctx.waitQueue.push(active)
		active.sched.suspendLock(&ctx.splk)
	} else {
		ctx.splk.Unlock()
	}
}

// Join blocks until the fiber has terminated and releases the handle.
// Joining the calling fiber returns ErrDeadlock; a detached or already
// joined fiber returns ErrNotJoinable.
func (ctx *Context) Join() error {
	if Active() == ctx {
		return ErrDeadlock
	}
	if !ctx.joinable.CompareAndSwap(true, false) {
		return ErrNotJoinable
	}
	ctx.join()
	ctx.decRef()
	return nil
}

// Detach releases the handle without waiting; the scheduler reclaims the
// fiber when it terminates.
func (ctx *Context) Detach() error {
	if !ctx.joinable.CompareAndSwap(true, false) {
		return ErrNotJoinable
	}
	ctx.decRef()
	return nil
}

// Yield moves the calling fiber to the back of the ready queue and runs
// the next one.
func (ctx *Context) Yield() {
	ctx.sched.yield(ctx)
}

// WaitUntil parks the calling fiber until tp or until it is scheduled.
// It reports whether the fiber was woken before the deadline.
func (ctx *Context) WaitUntil(tp time.Time) bool {
	return ctx.sched.waitUntil(ctx, tp, nil)
}

// schedule makes other ready. A context owned by another scheduler goes
// through that scheduler's remote-ready inbox.
func (ctx *Context) schedule(other *Context) {
	if other == nil {
		fatalf("schedule of nil context")
	}
	if other.sched == ctx.sched {
		ctx.sched.schedule(other)
	} else {
		other.sched.scheduleFromRemote(other)
	}
}

// Schedule makes other ready, crossing schedulers when needed.
func (ctx *Context) Schedule(other *Context) {
	ctx.schedule(other)
}

func mustActive() *Context {
	a := Active()
	if a == nil {
		panic("BUG: strand: fiber operation outside an attached thread")
	}
	return a
}

// Yield suspends the calling fiber in favour of the next ready one.
func Yield() {
	a := mustActive()
	a.sched.yield(a)
}

// SleepUntil parks the calling fiber until tp.
func SleepUntil(tp time.Time) {
	a := mustActive()
	a.sched.waitUntil(a, tp, nil)
}

// SleepFor parks the calling fiber for at least d.
func SleepFor(d time.Duration) {
	SleepUntil(time.Now().Add(d))
}
