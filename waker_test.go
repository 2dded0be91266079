package asyncrt

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoopWakerIsSafeToCall(t *testing.T) {
	w := NoopWaker()
	require.False(t, w.IsNil())
	w.WakeByRef()
	w.Wake()
	w.Drop()
}

func TestZeroWakerIsNilAndSafe(t *testing.T) {
	var w Waker
	require.True(t, w.IsNil())
	w.Wake()
	w.WakeByRef()
	require.True(t, w.Clone().IsNil())
}

func TestTaskWakerWake(t *testing.T) {
	s := newTestScheduler(t, 1)
	tsk := newTask(s, func(*Context) bool { return true })
	tsk.phase.Store(PhaseAwaitingWake)

	w := newTaskWaker(tsk)
	w.Wake()
	require.Equal(t, PhaseRunnable, tsk.phase.Load())
}

func TestChannelWakerDedupsPendingWakes(t *testing.T) {
	ch := make(chan struct{}, 1)
	var pending atomic.Bool
	w := newChannelWaker(ch, &pending)

	w.WakeByRef()
	w.WakeByRef() // second wake while first still pending: no double-send

	require.Len(t, ch, 1)
	<-ch
	require.Len(t, ch, 0)

	pending.Store(false)
	w.WakeByRef()
	require.Len(t, ch, 1)
}
