package asyncrt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, workers int) *Scheduler {
	t.Helper()
	cfg, err := resolveOptions([]Option{WithWorkerThreads(workers)})
	require.NoError(t, err)
	s := newScheduler(cfg, nil)
	t.Cleanup(s.stop)
	return s
}

func TestSchedulerStealMovesWorkBetweenWorkers(t *testing.T) {
	s := newTestScheduler(t, 2)

	busy := s.workers[0]
	for i := 0; i < 20; i++ {
		require.True(t, busy.local.push(newTestTask(TaskID(i))))
	}

	idle := s.workers[1]
	stolen, ok := s.steal(idle)
	require.True(t, ok)
	require.NotNil(t, stolen)
}

func TestSchedulerStealFallsBackToGlobal(t *testing.T) {
	s := newTestScheduler(t, 2)
	s.global.push(newTestTask(1))

	stolen, ok := s.steal(s.workers[0])
	require.True(t, ok)
	require.Equal(t, TaskID(1), stolen.id)
}

func TestSchedulerStealDisabledSkipsPeers(t *testing.T) {
	cfg, err := resolveOptions([]Option{WithWorkerThreads(2), WithWorkStealing(false)})
	require.NoError(t, err)
	s := newScheduler(cfg, nil)
	t.Cleanup(s.stop)

	for i := 0; i < 5; i++ {
		require.True(t, s.workers[1].local.push(newTestTask(TaskID(i))))
	}

	_, ok := s.steal(s.workers[0])
	require.False(t, ok)
}

func TestSchedulerScheduleWokenPrefersHomeWorkerLIFOSlot(t *testing.T) {
	s := newTestScheduler(t, 2)
	tsk := newTestTask(1)
	tsk.sched = s
	tsk.homeWorker.Store(1)

	s.scheduleWoken(tsk)

	got := s.workers[1].lifoSlot.Load()
	require.NotNil(t, got)
	require.Equal(t, TaskID(1), got.id)
}

func TestSchedulerWakeOneRacingParkIsNotLost(t *testing.T) {
	s := newTestScheduler(t, 1)
	w := s.workers[0]

	// wakeOne fires before the worker has actually parked (idleCount
	// still 0), mirroring a producer that pushes work and wakes in the
	// gap between a worker's last empty nextTask and its park call.
	s.wakeOne()
	require.Equal(t, int32(1), s.pendingWakes.Load())

	done := make(chan struct{})
	go func() {
		w.park()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("park blocked despite a pending wake racing in first")
	}
	require.Equal(t, int32(0), s.pendingWakes.Load())
}

func TestSchedulerSpawnTaskIncrementsOutstanding(t *testing.T) {
	s := newTestScheduler(t, 2)
	require.True(t, s.drained())

	s.spawnTask(newTestTask(1))
	require.False(t, s.drained())

	s.taskCompleted()
	require.True(t, s.drained())
}
