package asyncrt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerHeapOrdersByDeadline(t *testing.T) {
	h := newTimerHeap()
	base := time.Now()
	b1 := &CompletionBridge{}
	b2 := &CompletionBridge{}
	b3 := &CompletionBridge{}
	h.add(base.Add(30*time.Millisecond), b3)
	h.add(base.Add(10*time.Millisecond), b1)
	h.add(base.Add(20*time.Millisecond), b2)

	fired := h.expire(base.Add(25 * time.Millisecond))
	require.Len(t, fired, 2)
	require.Same(t, b1, fired[0])
	require.Same(t, b2, fired[1])

	deadline, ok := h.nextDeadline()
	require.True(t, ok)
	require.True(t, deadline.Equal(base.Add(30 * time.Millisecond)))
}

func TestTimerHeapSameDeadlineFIFO(t *testing.T) {
	h := newTimerHeap()
	when := time.Now().Add(time.Millisecond)
	b1 := &CompletionBridge{}
	b2 := &CompletionBridge{}
	h.add(when, b1)
	h.add(when, b2)

	fired := h.expire(when)
	require.Len(t, fired, 2)
	require.Same(t, b1, fired[0])
	require.Same(t, b2, fired[1])
}

func TestTimerHeapRemove(t *testing.T) {
	h := newTimerHeap()
	b := &CompletionBridge{}
	e := h.add(time.Now().Add(time.Hour), b)
	h.remove(e)

	_, ok := h.nextDeadline()
	require.False(t, ok)
}
