package eventloop

import (
	"container/heap"
	"time"
	"weak"
)

// timerEntry is a scheduled deadline for a timer slot. Entries are never
// removed eagerly: disarming bumps the slot generation, and entries with a
// stale generation are discarded when they reach the top of the heap.
type timerEntry struct {
	when  time.Time
	seq   uint64 // arming order, breaks deadline ties
	gen   uint64
	index int
}

type timerHeap []timerEntry

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}

func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) {
	*h = append(*h, x.(timerEntry))
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// timerSlot is the loop's scheduling entry for one timer. The loop holds
// the owning Timer weakly, so an armed Timer may still be collected.
type timerSlot struct {
	deadline time.Time
	owner    weak.Pointer[Timer]
	// detached is set for Loop.SingleShot, which has no Timer.
	detached func()
	// gen is bumped on every arm and disarm, and never reset, so entries
	// that outlive a slot's reuse are always stale.
	gen uint64
	// epoch is bumped on every allocation, see releaseOwned.
	epoch uint64
	armed bool
	inUse bool
}

// firing is a due entry, collected before any callback runs.
type firing struct {
	scheduled time.Time
	gen       uint64
	index     int
	// interval is set for repeating timers, once prepared
	interval time.Duration
}

// timerTable is an arena of timer slots plus a min-heap of deadlines.
//
// Thread Safety: NOT thread-safe. The caller must hold Loop.timerMu.
type timerTable struct {
	slots []timerSlot
	free  []int
	heap  timerHeap
	seq   uint64
	armed int
}

// alloc reserves a slot, returning its index and epoch.
func (t *timerTable) alloc() (int, uint64) {
	var index int
	if n := len(t.free); n > 0 {
		index = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		index = len(t.slots)
		t.slots = append(t.slots, timerSlot{})
	}
	s := &t.slots[index]
	s.inUse = true
	s.epoch++
	return index, s.epoch
}

// release disarms a slot and returns it to the free list.
func (t *timerTable) release(index int) {
	s := &t.slots[index]
	if !s.inUse {
		return
	}
	t.disarm(index)
	s.inUse = false
	s.owner = weak.Pointer[Timer]{}
	s.detached = nil
	t.free = append(t.free, index)
}

// releaseOwned releases a slot only if it has not been reallocated since
// epoch was issued, for cleanups that may run after an explicit release.
func (t *timerTable) releaseOwned(index int, epoch uint64) {
	if index < len(t.slots) && t.slots[index].inUse && t.slots[index].epoch == epoch {
		t.release(index)
	}
}

// arm (re)schedules a slot, replacing any previous deadline.
func (t *timerTable) arm(index int, deadline time.Time) {
	s := &t.slots[index]
	if !s.armed {
		t.armed++
	}
	s.gen++
	s.armed = true
	s.deadline = deadline
	t.seq++
	heap.Push(&t.heap, timerEntry{when: deadline, seq: t.seq, gen: s.gen, index: index})
	t.maybeCompact()
}

func (t *timerTable) disarm(index int) {
	s := &t.slots[index]
	if !s.armed {
		return
	}
	s.gen++
	s.armed = false
	t.armed--
}

func (t *timerTable) isArmed(index int) bool {
	return t.slots[index].armed
}

// valid reports whether e is the current deadline of an armed slot.
func (t *timerTable) valid(e timerEntry) bool {
	s := &t.slots[e.index]
	return s.armed && s.gen == e.gen
}

// next returns the earliest live deadline, discarding stale entries.
func (t *timerTable) next() (time.Time, bool) {
	for len(t.heap) > 0 {
		if e := t.heap[0]; t.valid(e) {
			return e.when, true
		}
		heap.Pop(&t.heap)
	}
	return time.Time{}, false
}

// popDue appends every live entry due at or before now to buf, in deadline
// then arming order.
func (t *timerTable) popDue(now time.Time, buf []firing) []firing {
	for len(t.heap) > 0 {
		e := t.heap[0]
		if !t.valid(e) {
			heap.Pop(&t.heap)
			continue
		}
		if e.when.After(now) {
			break
		}
		heap.Pop(&t.heap)
		buf = append(buf, firing{scheduled: e.when, gen: e.gen, index: e.index})
	}
	return buf
}

// maybeCompact rebuilds the heap once stale entries dominate it, e.g. under
// repeated re-arming of timers that never come due.
func (t *timerTable) maybeCompact() {
	if len(t.heap) < 64 || len(t.heap) < 4*t.armed {
		return
	}
	live := t.heap[:0]
	for _, e := range t.heap {
		if t.valid(e) {
			live = append(live, e)
		}
	}
	clear(t.heap[len(live):])
	t.heap = live
	heap.Init(&t.heap)
}

// reset disarms everything, and drops detached callbacks. Slots owned by a
// Timer stay allocated until that Timer releases them.
func (t *timerTable) reset() {
	for i := range t.slots {
		s := &t.slots[i]
		if !s.inUse {
			continue
		}
		if s.detached != nil {
			t.release(i)
			continue
		}
		t.disarm(i)
	}
	t.heap = nil
}
