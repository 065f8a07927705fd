package pool

import (
	"sync"
	"unsafe"

	"github.com/GoBlaze/strand/constants"
)

// Pool represents a pool of objects with type T.
type Pool[T any] struct {
	items *sync.Pool
	_     [constants.CacheLinePadSize - unsafe.Sizeof(&sync.Pool{})%constants.CacheLinePadSize]byte
}

// New creates a new Pool[T] with a function that creates new objects.
func New[T any](newFunc func() T) *Pool[T] {
	p := &Pool[T]{
		items: &sync.Pool{
			New: func() any {
				return newFunc()
			},
		},
	}
	return p
}

// Get returns an object from the pool, creating a new one if necessary.
func (p *Pool[T]) Get() T {
	return p.items.Get().(T)
}

// Put adds an object to the pool.
func (p *Pool[T]) Put(x T) {
	p.items.Put(x)
}
