package strand

// Fiber-local storage: per-context key/value pairs with cleanup
// callbacks. The map is copy-on-write behind an atomic pointer so the
// owning fiber writes without locking and the destroying goroutine —
// which may run on another thread after the terminate/release fence —
// reads a consistent snapshot.

type flsKey struct{ _ byte }

// FLSKey identifies one fiber-local slot. Keys compare by pointer
// identity; allocate them once per slot with NewFLSKey.
type FLSKey *flsKey

// NewFLSKey returns a fresh fiber-local storage key.
func NewFLSKey() FLSKey {
	return &flsKey{}
}

type flsEntry struct {
	value   any
	cleanup func(any)
}

// GetFLS returns the value stored under key on this context, or nil.
func (ctx *Context) GetFLS(key FLSKey) any {
	m := ctx.fls.Load()
	if m == nil {
		return nil
	}
	return (*m)[key].value
}

// SetFLS stores value under key with an optional cleanup function. When
// the key is already set and cleanupExisting is true, the previous
// entry's cleanup runs with the previous value before it is replaced.
func (ctx *Context) SetFLS(key FLSKey, value any, cleanup func(any), cleanupExisting bool) {
	for {
		old := ctx.fls.Load()
		next := make(map[FLSKey]flsEntry, 1)
		var prev flsEntry
		var had bool
		if old != nil {
			for k, v := range *old {
				next[k] = v
			}
			prev, had = next[key]
		}
		next[key] = flsEntry{value: value, cleanup: cleanup}
		if ctx.fls.CompareAndSwap(old, &next) {
			if had && cleanupExisting && prev.cleanup != nil {
				prev.cleanup(prev.value)
			}
			return
		}
	}
}

// clearFLS runs every cleanup with its last stored value and drops the
// map. Called exactly once, from the context's destroy step.
func (ctx *Context) clearFLS() {
	m := ctx.fls.Swap(nil)
	if m == nil {
		return
	}
	for _, e := range *m {
		if e.cleanup != nil {
			e.cleanup(e.value)
		}
	}
}
