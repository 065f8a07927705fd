package strand

import (
	"github.com/alphadose/haxmap"
	"github.com/petermattis/goid"
)

// flows maps a goroutine id to the flow of execution it is backing. It is
// the Go stand-in for the original thread-local active-context pointer:
// every goroutine that hosts a fiber (or a thread's main context)
// registers here, and Active resolves through it.
var flows = haxmap.New[int64, *flow]()

// currentFlow returns the flow backing the calling goroutine, creating
// and registering one on first use. First use happens when a plain
// goroutine becomes a scheduler's main context, or when a goroutine that
// is not attached to a scheduler resumes a continuation (as in destroy).
func currentFlow() *flow {
	gid := goid.Get()
	if f, ok := flows.Get(gid); ok {
		return f
	}
	f := newFlow(nil)
	flows.Set(gid, f)
	return f
}

// peekFlow returns the calling goroutine's flow or nil, without
// registering one.
func peekFlow() *flow {
	f, _ := flows.Get(goid.Get())
	return f
}

func bindFlow(f *flow) {
	flows.Set(goid.Get(), f)
}

func unbindFlow() {
	flows.Del(goid.Get())
}

// Active returns the context of the fiber running on the calling
// goroutine, or nil if the goroutine is not attached to a scheduler.
func Active() *Context {
	if f := peekFlow(); f != nil {
		return f.owner
	}
	return nil
}

// resetActive detaches the calling goroutine from its context binding.
// Called during scheduler teardown, after the dispatcher has finished.
func resetActive() {
	unbindFlow()
}
