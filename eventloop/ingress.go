package eventloop

import (
	"sync"
	"time"
)

const (
	// chunkSize is the number of invocations per node in the invocationQueue linked list.
	chunkSize = 128

	// batchSize is the number of invocations the loop moves out of the queue
	// per lock acquisition.
	batchSize = 256
)

// invocation is a pending cross-goroutine callback.
type invocation struct {
	fn       func()
	enqueued time.Time
}

// invocationQueue is a chunked linked-list FIFO of pending invocations.
//
// Thread Safety: This struct is NOT thread-safe.
// The caller must provide external synchronization (Loop.ingressMu).
//
// Performance rationale:
// - Fixed-size arrays (chunkSize) provide cache locality and amortize allocations.
// - sync.Pool chunk recycling prevents GC thrashing under high throughput.
type invocationQueue struct { // betteralign:ignore
	head   *chunk
	tail   *chunk
	length int
}

// chunkPool prevents GC thrashing under high load.
var chunkPool = sync.Pool{
	New: func() any {
		return &chunk{}
	},
}

// chunk is a fixed-size node in the chunked linked-list.
// It uses readPos/pos cursors for O(1) push/pop without shifting.
type chunk struct {
	items   [chunkSize]invocation
	next    *chunk
	readPos int // First unread slot
	pos     int // First unused slot
}

// newChunk creates and returns a new chunk from the pool.
func newChunk() *chunk {
	c := chunkPool.Get().(*chunk)
	c.pos = 0
	c.readPos = 0
	c.next = nil
	return c
}

// returnChunk returns an exhausted chunk to the pool, clearing slots so
// pooled chunks never retain callback closures.
func returnChunk(c *chunk) {
	for i := 0; i < c.pos; i++ {
		c.items[i] = invocation{}
	}
	c.pos = 0
	c.readPos = 0
	c.next = nil
	chunkPool.Put(c)
}

// push adds an invocation to the tail of the queue.
//
// CALLER MUST HOLD EXTERNAL MUTEX.
func (q *invocationQueue) push(inv invocation) {
	if q.tail == nil {
		q.tail = newChunk()
		q.head = q.tail
	}

	if q.tail.pos == len(q.tail.items) {
		newTail := newChunk()
		q.tail.next = newTail
		q.tail = newTail
	}

	q.tail.items[q.tail.pos] = inv
	q.tail.pos++
	q.length++
}

// pop removes and returns the invocation at the head of the queue.
// Returns false if the queue is empty.
//
// CALLER MUST HOLD EXTERNAL MUTEX.
func (q *invocationQueue) pop() (invocation, bool) {
	if q.head == nil || q.length == 0 {
		return invocation{}, false
	}

	if q.head.readPos >= q.head.pos {
		// exhausted, and length > 0 guarantees a next chunk
		oldHead := q.head
		q.head = q.head.next
		returnChunk(oldHead)
	}

	inv := q.head.items[q.head.readPos]
	q.head.items[q.head.readPos] = invocation{}
	q.head.readPos++
	q.length--

	if q.head.readPos >= q.head.pos {
		if q.head == q.tail {
			// only chunk: reset cursors for reuse
			q.head.pos = 0
			q.head.readPos = 0
		} else {
			oldHead := q.head
			q.head = q.head.next
			returnChunk(oldHead)
		}
	}

	return inv, true
}

// popBatch moves up to min(len(buf), limit) invocations into buf, returning
// the number moved.
//
// CALLER MUST HOLD EXTERNAL MUTEX.
func (q *invocationQueue) popBatch(buf []invocation, limit int) int {
	if limit > len(buf) {
		limit = len(buf)
	}
	n := 0
	for n < limit {
		inv, ok := q.pop()
		if !ok {
			break
		}
		buf[n] = inv
		n++
	}
	return n
}

// Length returns the queue length.
//
// CALLER MUST HOLD EXTERNAL MUTEX.
func (q *invocationQueue) Length() int {
	return q.length
}

// clear discards every pending invocation, returning how many were dropped.
//
// CALLER MUST HOLD EXTERNAL MUTEX.
func (q *invocationQueue) clear() int {
	n := q.length
	for c := q.head; c != nil; {
		next := c.next
		returnChunk(c)
		c = next
	}
	q.head = nil
	q.tail = nil
	q.length = 0
	return n
}
