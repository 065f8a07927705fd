package strand

import (
	"testing"
	"time"
)

func newTestContext() *Context {
	return &Context{tp: timeMax}
}

func TestReadyListFIFO(t *testing.T) {
	var l readyList
	a, b, c := newTestContext(), newTestContext(), newTestContext()
	if !l.empty() {
		t.Fatalf("new list not empty")
	}
	l.push(a)
	l.push(b)
	l.push(c)
	if l.pop() != a || l.pop() != b || l.pop() != c {
		t.Fatalf("pop order not FIFO")
	}
	if l.pop() != nil || !l.empty() {
		t.Fatalf("drained list not empty")
	}
}

func TestReadyListUnlink(t *testing.T) {
	var l readyList
	a, b, c := newTestContext(), newTestContext(), newTestContext()
	l.push(a)
	l.push(b)
	l.push(c)
	l.unlink(b)
	if b.readyPrev != nil || b.readyNext != nil {
		t.Fatalf("unlinked context keeps links")
	}
	if l.pop() != a || l.pop() != c || l.pop() != nil {
		t.Fatalf("unexpected order after unlink")
	}

	l.push(a)
	l.unlink(a)
	if !l.empty() {
		t.Fatalf("list not empty after unlinking only element")
	}
}

func TestReadyListDoublePushPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	var l readyList
	a := newTestContext()
	l.push(a)
	l.push(a)
}

func TestRemoteReadyListSwap(t *testing.T) {
	var l, tmp remoteReadyList
	a, b := newTestContext(), newTestContext()
	l.push(a)
	l.push(b)
	l.swap(&tmp)
	if !l.empty() {
		t.Fatalf("source list not empty after swap")
	}
	if tmp.pop() != a || tmp.pop() != b || tmp.pop() != nil {
		t.Fatalf("swapped list lost elements")
	}
}

func TestSleepListOrdering(t *testing.T) {
	var l sleepList
	now := time.Now()
	a, b, c, d := newTestContext(), newTestContext(), newTestContext(), newTestContext()
	a.tp = now.Add(30 * time.Millisecond)
	b.tp = now.Add(10 * time.Millisecond)
	c.tp = now.Add(20 * time.Millisecond)
	d.tp = now.Add(10 * time.Millisecond) // same deadline as b, arrives later
	l.push(a)
	l.push(b)
	l.push(c)
	l.push(d)

	if got := l.lowestDeadline(); !got.Equal(b.tp) {
		t.Fatalf("lowestDeadline = %v, want %v", got, b.tp)
	}
	if l.pop(now) != nil {
		t.Fatalf("pop before any deadline returned a context")
	}
	if l.pop(now.Add(15*time.Millisecond)) != b {
		t.Fatalf("expected b first")
	}
	if !b.tp.Equal(timeMax) {
		t.Fatalf("pop did not clear deadline")
	}
	if l.pop(now.Add(15*time.Millisecond)) != d {
		t.Fatalf("equal deadlines should wake in arrival order")
	}
	late := now.Add(time.Second)
	if l.pop(late) != c || l.pop(late) != a || l.pop(late) != nil {
		t.Fatalf("unexpected drain order")
	}
	if l.lowestDeadline() != timeMax {
		t.Fatalf("empty list deadline not max")
	}
}

func TestSleepListUnlink(t *testing.T) {
	var l sleepList
	now := time.Now()
	a, b := newTestContext(), newTestContext()
	a.tp = now.Add(10 * time.Millisecond)
	b.tp = now.Add(20 * time.Millisecond)
	l.push(a)
	l.push(b)
	// unlink of a context not on the list is a no-op
	l.unlink(newTestContext())
	l.unlink(a)
	if !a.tp.Equal(timeMax) {
		t.Fatalf("unlink did not clear deadline")
	}
	if l.pop(now.Add(time.Second)) != b || !l.empty() {
		t.Fatalf("unexpected contents after unlink")
	}
}

func TestWaitList(t *testing.T) {
	var l waitList
	a, b := newTestContext(), newTestContext()
	l.push(a)
	l.push(b)
	if l.front() != a {
		t.Fatalf("front is not first pushed")
	}
	if !l.linked(a) || !l.linked(b) || l.linked(newTestContext()) {
		t.Fatalf("linked misreports membership")
	}
	l.unlink(a)
	if l.linked(a) {
		t.Fatalf("unlinked context reported linked")
	}
	if l.pop() != b || l.pop() != nil {
		t.Fatalf("unexpected contents after unlink")
	}
}

func TestWorkerList(t *testing.T) {
	var l workerList
	a, b, c := newTestContext(), newTestContext(), newTestContext()
	l.push(a)
	l.push(b)
	l.push(c)
	if l.len() != 3 {
		t.Fatalf("len = %d, want 3", l.len())
	}
	l.unlink(b)
	l.unlink(c)
	l.unlink(a)
	if !l.empty() || l.len() != 0 {
		t.Fatalf("list not empty after unlinking all")
	}
}
