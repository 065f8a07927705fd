package strand

import "time"

// Intrusive doubly-linked lists. Links live inside Context, one pair per
// membership kind, so scheduling never allocates. Push requires the
// relevant pair to be nil: a context may not be on two lists of the same
// kind.

type readyList struct {
	head, tail *Context
}

func (l *readyList) empty() bool { return l.head == nil }

func (l *readyList) push(c *Context) {
	if c.readyPrev != nil || c.readyNext != nil || l.head == c {
		panic("BUG: strand: context already on a ready-queue")
	}
	if l.head == nil {
		l.head, l.tail = c, c
	} else {
		c.readyPrev = l.tail
		l.tail.readyNext = c
		l.tail = c
	}
}

func (l *readyList) pop() *Context {
	if l.head == nil {
		return nil
	}
	c := l.head
	l.head = c.readyNext
	c.readyNext = nil
	if l.head == nil {
		l.tail = nil
	} else {
		l.head.readyPrev = nil
	}
	return c
}

func (l *readyList) unlink(c *Context) {
	if c.readyPrev != nil {
		c.readyPrev.readyNext = c.readyNext
	} else {
		l.head = c.readyNext
	}
	if c.readyNext != nil {
		c.readyNext.readyPrev = c.readyPrev
	} else {
		l.tail = c.readyPrev
	}
	c.readyPrev, c.readyNext = nil, nil
}

type workerList struct {
	head, tail *Context
}

func (l *workerList) empty() bool { return l.head == nil }

func (l *workerList) push(c *Context) {
	if c.workerPrev != nil || c.workerNext != nil {
		panic("BUG: strand: context already on a worker-queue")
	}
	if l.head == nil {
		l.head, l.tail = c, c
	} else {
		c.workerPrev = l.tail
		l.tail.workerNext = c
		l.tail = c
	}
}

func (l *workerList) unlink(c *Context) {
	if c.workerPrev != nil {
		c.workerPrev.workerNext = c.workerNext
	} else {
		l.head = c.workerNext
	}
	if c.workerNext != nil {
		c.workerNext.workerPrev = c.workerPrev
	} else {
		l.tail = c.workerPrev
	}
	c.workerPrev, c.workerNext = nil, nil
}

func (l *workerList) len() int {
	n := 0
	for c := l.head; c != nil; c = c.workerNext {
		n++
	}
	return n
}

type terminatedList struct {
	head, tail *Context
}

func (l *terminatedList) empty() bool { return l.head == nil }

func (l *terminatedList) push(c *Context) {
	if c.terminatedPrev != nil || c.terminatedNext != nil {
		panic("BUG: strand: context already on a terminated-queue")
	}
	if l.head == nil {
		l.head, l.tail = c, c
	} else {
		c.terminatedPrev = l.tail
		l.tail.terminatedNext = c
		l.tail = c
	}
}

func (l *terminatedList) pop() *Context {
	if l.head == nil {
		return nil
	}
	c := l.head
	l.head = c.terminatedNext
	c.terminatedNext = nil
	if l.head == nil {
		l.tail = nil
	} else {
		l.head.terminatedPrev = nil
	}
	return c
}

type remoteReadyList struct {
	head, tail *Context
}

func (l *remoteReadyList) empty() bool { return l.head == nil }

func (l *remoteReadyList) push(c *Context) {
	if c.remoteReadyPrev != nil || c.remoteReadyNext != nil {
		panic("BUG: strand: context already on a remote-ready-queue")
	}
	if l.head == nil {
		l.head, l.tail = c, c
	} else {
		c.remoteReadyPrev = l.tail
		l.tail.remoteReadyNext = c
		l.tail = c
	}
}

func (l *remoteReadyList) pop() *Context {
	if l.head == nil {
		return nil
	}
	c := l.head
	l.head = c.remoteReadyNext
	c.remoteReadyNext = nil
	if l.head == nil {
		l.tail = nil
	} else {
		l.head.remoteReadyPrev = nil
	}
	return c
}

// swap exchanges the contents of two remote-ready lists. The dispatcher
// uses it to take the whole inbox in one motion under the spinlock.
func (l *remoteReadyList) swap(other *remoteReadyList) {
	l.head, other.head = other.head, l.head
	l.tail, other.tail = other.tail, l.tail
}

// sleepList is kept sorted ascending by wake deadline. Insertion is
// stable for equal deadlines, so equal sleepers wake in arrival order.
type sleepList struct {
	head, tail *Context
}

func (l *sleepList) empty() bool { return l.head == nil }

func (l *sleepList) push(c *Context) {
	if c.sleepPrev != nil || c.sleepNext != nil {
		panic("BUG: strand: context already on a sleep-queue")
	}
	if l.head == nil {
		l.head, l.tail = c, c
		return
	}
	at := l.head
	for at != nil && !c.tp.Before(at.tp) {
		at = at.sleepNext
	}
	switch {
	case at == nil: // append
		c.sleepPrev = l.tail
		l.tail.sleepNext = c
		l.tail = c
	case at == l.head: // prepend
		c.sleepNext = at
		at.sleepPrev = c
		l.head = c
	default:
		c.sleepPrev = at.sleepPrev
		c.sleepNext = at
		at.sleepPrev.sleepNext = c
		at.sleepPrev = c
	}
}

// pop returns the head iff its deadline has been reached, clearing its
// deadline back to the far-future sentinel.
func (l *sleepList) pop(now time.Time) *Context {
	c := l.head
	if c == nil || c.tp.After(now) {
		return nil
	}
	l.head = c.sleepNext
	c.sleepNext = nil
	if l.head == nil {
		l.tail = nil
	} else {
		l.head.sleepPrev = nil
	}
	c.tp = timeMax
	return c
}

func (l *sleepList) linked(c *Context) bool {
	return c.sleepPrev != nil || c.sleepNext != nil || l.head == c
}

// unlink removes c if it is on the list; a no-op otherwise. Timed waits
// woken before their deadline pass through here.
func (l *sleepList) unlink(c *Context) {
	if !l.linked(c) {
		return
	}
	if c.sleepPrev != nil {
		c.sleepPrev.sleepNext = c.sleepNext
	} else {
		l.head = c.sleepNext
	}
	if c.sleepNext != nil {
		c.sleepNext.sleepPrev = c.sleepPrev
	} else {
		l.tail = c.sleepPrev
	}
	c.sleepPrev, c.sleepNext = nil, nil
	c.tp = timeMax
}

// lowestDeadline returns the earliest wake deadline on the list, or the
// far-future sentinel when the list is empty.
func (l *sleepList) lowestDeadline() time.Time {
	if l.head == nil {
		return timeMax
	}
	return l.head.tp
}

// waitList holds the fibers blocked on one object: a context's joiners,
// a mutex's or a condition variable's waiters.
type waitList struct {
	head, tail *Context
}

func (l *waitList) empty() bool { return l.head == nil }

func (l *waitList) push(c *Context) {
	if c.waitPrev != nil || c.waitNext != nil {
		panic("BUG: strand: context already on a wait-queue")
	}
	if l.head == nil {
		l.head, l.tail = c, c
	} else {
		c.waitPrev = l.tail
		l.tail.waitNext = c
		l.tail = c
	}
}

func (l *waitList) front() *Context { return l.head }

func (l *waitList) pop() *Context {
	if l.head == nil {
		return nil
	}
	c := l.head
	l.head = c.waitNext
	c.waitNext = nil
	if l.head == nil {
		l.tail = nil
	} else {
		l.head.waitPrev = nil
	}
	return c
}

func (l *waitList) linked(c *Context) bool {
	return c.waitPrev != nil || c.waitNext != nil || l.head == c
}

func (l *waitList) unlink(c *Context) {
	if !l.linked(c) {
		return
	}
	if c.waitPrev != nil {
		c.waitPrev.waitNext = c.waitNext
	} else {
		l.head = c.waitNext
	}
	if c.waitNext != nil {
		c.waitNext.waitPrev = c.waitPrev
	} else {
		l.tail = c.waitPrev
	}
	c.waitPrev, c.waitNext = nil, nil
}
