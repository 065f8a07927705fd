package strand

import (
	"fmt"

	"github.com/valyala/bytebufferpool"
)

// String renders the context for diagnostics.
func (ctx *Context) String() string {
	b := bytebufferpool.Get()
	defer bytebufferpool.Put(b)
	fmt.Fprintf(b, "context %#x type=%#x refs=%d", uintptr(ctx.ID()), ctx.typ, ctx.useCount.Load())
	if ctx.terminated {
		b.WriteString(" terminated")
	}
	return b.String()
}

// Dump renders the scheduler's queues for diagnostics. Call it from the
// owning thread; counts taken from elsewhere are only indicative.
func (s *Scheduler) Dump() string {
	b := bytebufferpool.Get()
	defer bytebufferpool.Put(b)
	fmt.Fprintf(b, "scheduler %p", s)
	fmt.Fprintf(b, " workers=%d", s.workerQueue.len())
	fmt.Fprintf(b, " ready=%v", s.algo.HasReadyFibers())
	fmt.Fprintf(b, " terminated=%v", !s.terminatedQueue.empty())
	s.sleepSplk.Lock()
	fmt.Fprintf(b, " sleeping=%v", !s.sleepQueue.empty())
	s.sleepSplk.Unlock()
	s.remoteSplk.Lock()
	fmt.Fprintf(b, " remote=%v shutdown=%v", !s.remoteReadyQueue.empty(), s.shutdown)
	s.remoteSplk.Unlock()
	return b.String()
}
