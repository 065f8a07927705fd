package strand

import "sync/atomic"

// The continuation layer multiplexes fibers onto goroutines. Each fiber
// is backed by one goroutine parked on a rendezvous channel; switching
// fibers is a channel hand-off that carries the switcher's continuation
// plus an opaque data pointer. The goroutine's stack plays the role of
// the fiber stack and is reclaimed by the Go runtime when the flow's
// function returns after the final disposal switch.

// entry is what a parked flow receives when it is switched to.
type entry struct {
	from *Continuation
	data any
}

// flow is the execution state behind one fiber: the park channel control
// is handed over on, and the context that owns it.
type flow struct {
	park  chan entry
	owner *Context
	done  atomic.Bool
}

func newFlow(owner *Context) *flow {
	return &flow{
		park:  make(chan entry),
		owner: owner,
	}
}

// Continuation is a one-shot handle to a suspended flow of execution.
// Resuming it transfers control to that flow and invalidates the handle;
// the suspended side receives a fresh Continuation for the switcher.
type Continuation struct {
	f     *flow
	data  any
	spent bool
}

// Valid reports whether the continuation can be resumed: it has not been
// consumed and the flow behind it has not finished.
func (c *Continuation) Valid() bool {
	return c != nil && c.f != nil && !c.spent && !c.f.done.Load()
}

// Data returns the opaque pointer set by the switch that produced this
// continuation.
func (c *Continuation) Data() any {
	return c.data
}

// Resume switches to the continuation. It returns when the calling flow
// is next switched to, yielding the continuation of whoever performed
// that switch.
func (c *Continuation) Resume() *Continuation {
	return c.ResumeWith(nil)
}

// ResumeWith is Resume with a data pointer the target observes through
// the returned continuation's Data.
func (c *Continuation) ResumeWith(data any) *Continuation {
	if !c.Valid() {
		panic("BUG: strand: resume of invalid continuation")
	}
	c.spent = true
	self := currentFlow()
	c.f.park <- entry{from: &Continuation{f: self}, data: data}
	e := <-self.park
	e.from.data = e.data
	return e.from
}

// callcc creates a new flow owned by ctx and starts a goroutine for it.
// The flow stays parked until first resumed; fn then receives the first
// resumer's continuation. The continuation fn returns is exited to when
// fn finishes — for fibers that is the disposal-time continuation of the
// releasing fiber.
func callcc(ctx *Context, fn func(*Continuation) *Continuation) *Continuation {
	f := newFlow(ctx)
	go func() {
		bindFlow(f)
		e := <-f.park
		e.from.data = e.data
		c := fn(e.from)
		exitTo(f, c)
	}()
	return &Continuation{f: f}
}

// exitTo finishes the flow f and transfers control to c. The goroutine
// behind f returns afterwards, releasing its stack.
func exitTo(f *flow, c *Continuation) {
	f.done.Store(true)
	unbindFlow()
	if c.Valid() {
		c.spent = true
		c.f.park <- entry{from: &Continuation{f: f}}
	}
}
