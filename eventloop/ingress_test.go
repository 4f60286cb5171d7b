package eventloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIngress_ChunkTransition verifies the invocation queue correctly handles
// chunk boundary transitions during push/pop operations.
func TestIngress_ChunkTransition(t *testing.T) {
	const cycles = 3
	total := chunkSize * cycles

	var q invocationQueue
	var ran []int
	for i := 0; i < total; i++ {
		q.push(invocation{fn: func() { ran = append(ran, i) }, enqueued: time.Now()})
	}
	require.Equal(t, total, q.Length())

	for i := 0; i < total; i++ {
		inv, ok := q.pop()
		require.True(t, ok, "premature exhaustion at index %d", i)
		require.NotNil(t, inv.fn)
		inv.fn()
	}
	_, ok := q.pop()
	assert.False(t, ok)
	assert.Zero(t, q.Length())

	for i, v := range ran {
		if v != i {
			t.Fatalf("FIFO violated at %d: got %d", i, v)
		}
	}
}

// TestIngress_ReuseAfterEmpty verifies a drained single chunk is reused.
func TestIngress_ReuseAfterEmpty(t *testing.T) {
	var q invocationQueue
	for round := 0; round < 3; round++ {
		for i := 0; i < 10; i++ {
			q.push(invocation{fn: func() {}})
		}
		for i := 0; i < 10; i++ {
			_, ok := q.pop()
			require.True(t, ok)
		}
		assert.Same(t, q.head, q.tail)
		assert.Zero(t, q.head.pos)
	}
}

func TestIngress_PopBatch(t *testing.T) {
	var q invocationQueue
	for i := 0; i < 300; i++ {
		q.push(invocation{fn: func() {}})
	}

	buf := make([]invocation, batchSize)
	assert.Equal(t, 10, q.popBatch(buf, 10))
	assert.Equal(t, 290, q.Length())

	// bounded by len(buf)
	assert.Equal(t, batchSize, q.popBatch(buf, 1000))
	assert.Equal(t, 290-batchSize, q.Length())

	assert.Equal(t, 290-batchSize, q.popBatch(buf, 1000))
	assert.Zero(t, q.popBatch(buf, 1000))
}

func TestIngress_Clear(t *testing.T) {
	var q invocationQueue
	assert.Zero(t, q.clear())

	for i := 0; i < chunkSize*2+5; i++ {
		q.push(invocation{fn: func() {}})
	}
	assert.Equal(t, chunkSize*2+5, q.clear())
	assert.Zero(t, q.Length())
	_, ok := q.pop()
	assert.False(t, ok)

	// usable after clear
	q.push(invocation{fn: func() {}})
	assert.Equal(t, 1, q.Length())
}

func TestReturnChunk_ClearsReferences(t *testing.T) {
	c := newChunk()
	c.items[0] = invocation{fn: func() {}}
	c.pos = 1
	returnChunk(c)
	assert.Nil(t, c.items[0].fn)
	assert.Zero(t, c.pos)
	assert.Zero(t, c.readPos)
}

func BenchmarkIngress_PushPop(b *testing.B) {
	var q invocationQueue
	inv := invocation{fn: func() {}}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		q.push(inv)
		q.pop()
	}
}
