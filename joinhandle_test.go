package asyncrt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJoinSlotDeliverWakesWaiters(t *testing.T) {
	slot := &joinSlot[int]{}

	cx := noopContext()
	_, _, settled := slot.poll(cx)
	require.False(t, settled)

	slot.deliver(42)

	v, panicErr, settled := slot.poll(cx)
	require.True(t, settled)
	require.Nil(t, panicErr)
	require.Equal(t, 42, v)
}

func TestJoinSlotDeliverIsOneShot(t *testing.T) {
	slot := &joinSlot[int]{}
	slot.deliver(1)
	slot.deliver(2)

	v, _, settled := slot.poll(noopContext())
	require.True(t, settled)
	require.Equal(t, 1, v)
}

func TestJoinHandlePollReportsPanicAsZeroValue(t *testing.T) {
	slot := &joinSlot[int]{}
	h := JoinHandle[int]{t: newTestTask(1), slot: slot}

	slot.deliverPanic(&TaskPanicError{Value: "boom", TaskID: 1})

	result := h.Poll(noopContext())
	v, ready := result.Value()
	require.True(t, ready)
	require.Equal(t, 0, v)

	_, panicErr, settled := h.TryValue()
	require.True(t, settled)
	require.NotNil(t, panicErr)
}

func TestJoinHandleIsFinished(t *testing.T) {
	slot := &joinSlot[int]{}
	h := JoinHandle[int]{t: newTestTask(1), slot: slot}
	require.False(t, h.IsFinished())
	slot.deliver(1)
	require.True(t, h.IsFinished())
}

func TestJoinHandleTaskID(t *testing.T) {
	tsk := newTestTask(99)
	h := JoinHandle[int]{t: tsk, slot: &joinSlot[int]{}}
	require.Equal(t, TaskID(99), h.TaskID())
}
