package asyncrt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWorkerNextTaskPrefersLIFOSlot(t *testing.T) {
	s := newTestScheduler(t, 1)
	w := s.workers[0]

	require.True(t, w.local.push(newTestTask(1)))
	w.lifoSlot.Store(newTestTask(2))

	got, ok := w.nextTask()
	require.True(t, ok)
	require.Equal(t, TaskID(2), got.id)
}

func TestWorkerExecuteDeliversReadyResult(t *testing.T) {
	s := newTestScheduler(t, 1)
	w := s.workers[0]

	var observed int
	tsk := newTask(s, func(cx *Context) bool {
		observed = 7
		return true
	})
	s.outstanding.Add(1)

	w.execute(tsk)
	require.Equal(t, 7, observed)
	require.Equal(t, PhaseCompleted, tsk.phase.Load())
	require.True(t, s.drained())
}

func TestWorkerExecuteSkipsCancelledTask(t *testing.T) {
	s := newTestScheduler(t, 1)
	w := s.workers[0]

	called := false
	tsk := newTask(s, func(cx *Context) bool {
		t.Fatal("poll must not run on a cancelled task")
		return true
	})
	tsk.onCancel = func() { called = true }
	tsk.phase.Store(PhaseCancelled)
	s.outstanding.Add(1)

	w.execute(tsk)
	require.True(t, called)
	require.True(t, s.drained())
}

func TestWorkerExecuteReschedulesWhenWakeRacesDuringPoll(t *testing.T) {
	s := newTestScheduler(t, 1)
	w := s.workers[0]

	var tsk *task
	polls := 0
	tsk = newTask(s, func(cx *Context) bool {
		polls++
		if polls == 1 {
			// Simulate a wake (e.g. an I/O completion on another
			// goroutine) landing while this poll is still in flight.
			tsk.wake()
			return false
		}
		return true
	})
	s.outstanding.Add(1)

	w.execute(tsk)
	// The race must not strand the task in AwaitingWake: it should be
	// back to Runnable and already placed for a next run.
	require.Equal(t, PhaseRunnable, tsk.phase.Load())
	require.NotNil(t, w.lifoSlot.Load())

	w.lifoSlot.Store(nil)
	w.execute(tsk)
	require.Equal(t, 2, polls)
	require.Equal(t, PhaseCompleted, tsk.phase.Load())
	require.True(t, s.drained())
}

func TestWorkerExecuteRecoversPanic(t *testing.T) {
	s := newTestScheduler(t, 1)
	w := s.workers[0]

	var delivered *TaskPanicError
	tsk := newTask(s, func(cx *Context) bool {
		panic("kaboom")
	})
	tsk.onPanic = func(pe *TaskPanicError) { delivered = pe }
	s.outstanding.Add(1)

	w.execute(tsk)
	require.NotNil(t, delivered)
	require.Equal(t, "kaboom", delivered.Value)
	require.True(t, s.drained())
}
