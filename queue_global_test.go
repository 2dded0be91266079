package asyncrt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGlobalQueueFIFO(t *testing.T) {
	q := newGlobalQueue()
	for i := 1; i <= 3; i++ {
		q.push(newTestTask(TaskID(i)))
	}
	for i := 1; i <= 3; i++ {
		got, ok := q.pop()
		require.True(t, ok)
		require.Equal(t, TaskID(i), got.id)
	}
	_, ok := q.pop()
	require.False(t, ok)
}

func TestGlobalQueueSpansMultipleChunks(t *testing.T) {
	q := newGlobalQueue()
	const n = globalQueueChunkSize*2 + 7
	for i := 1; i <= n; i++ {
		q.push(newTestTask(TaskID(i)))
	}
	require.Equal(t, n, q.len())
	for i := 1; i <= n; i++ {
		got, ok := q.pop()
		require.True(t, ok)
		require.Equal(t, TaskID(i), got.id)
	}
}

func TestGlobalQueuePopBatch(t *testing.T) {
	q := newGlobalQueue()
	for i := 1; i <= 10; i++ {
		q.push(newTestTask(TaskID(i)))
	}
	dst := newLocalQueue(16)
	moved := q.popBatch(dst, 4)
	require.Equal(t, 4, moved)
	require.Equal(t, 4, dst.length())
	require.Equal(t, 6, q.len())
}

func TestGlobalQueuePushBatch(t *testing.T) {
	q := newGlobalQueue()
	batch := []*task{newTestTask(1), newTestTask(2), newTestTask(3)}
	q.pushBatch(batch)
	require.Equal(t, 3, q.len())
}
