package strand

import (
	"github.com/GoBlaze/strand/pool"
	"github.com/GoBlaze/strand/spinlock"
)

// transferData rides across a stack switch: the suspending fiber
// publishes what the resumed side must do before running user code —
// release a spinlock, or make a context ready. At most one of lock and
// ctx is set.
type transferData struct {
	from *Context
	lock *spinlock.SpinLock
	ctx  *Context
}

var transferPool = pool.New[*transferData](func() *transferData {
	return new(transferData)
})

func acquireTransfer(from *Context, lock *spinlock.SpinLock, ctx *Context) *transferData {
	d := transferPool.Get()
	d.from, d.lock, d.ctx = from, lock, ctx
	return d
}

func releaseTransfer(d *transferData) {
	d.from, d.lock, d.ctx = nil, nil, nil
	transferPool.Put(d)
}
