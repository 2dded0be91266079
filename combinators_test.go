package asyncrt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMap(t *testing.T) {
	fut := Map(ReadyFuture(3), func(v int) string { return "n=3" })
	result := fut.Poll(noopContext())
	v, ready := result.Value()
	require.True(t, ready)
	require.Equal(t, "n=3", v)
}

func TestAndThenSequences(t *testing.T) {
	fut := AndThen(ReadyFuture(3), func(v int) Future[int] {
		return ReadyFuture(v * 10)
	})
	v, ready := fut.Poll(noopContext()).Value()
	require.True(t, ready)
	require.Equal(t, 30, v)
}

func TestJoinAllPreservesOrder(t *testing.T) {
	futs := []Future[int]{ReadyFuture(1), ReadyFuture(2), ReadyFuture(3)}
	fut := JoinAll(futs)
	v, ready := fut.Poll(noopContext()).Value()
	require.True(t, ready)
	require.Equal(t, []int{1, 2, 3}, v)
}

// neverFuture never resolves and never wakes, a deliberately pathological
// Future used to exercise Timeout against a future that cannot otherwise
// settle.
type neverFuture[T any] struct{}

func (neverFuture[T]) Poll(*Context) PollResult[T] {
	return PendingResult[T]()
}

func TestTimeoutExpiresAgainstNeverCompletingFuture(t *testing.T) {
	r := newTestReactor(t)
	fut := Timeout[int](neverFuture[int]{}, 20*time.Millisecond)

	cx := &Context{waker: NoopWaker(), reactor: r, budget: NewBudget(DefaultBudget)}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		result := fut.Poll(cx)
		if v, ready := result.Value(); ready {
			require.False(t, v.Ok())
			var timeoutErr *TimeoutError
			require.ErrorAs(t, v.Err, &timeoutErr)
			return
		}
		_, _ = r.PollOnce(10 * time.Millisecond)
	}
	t.Fatal("Timeout never fired")
}

func TestRaceResolvesWithFirstReady(t *testing.T) {
	futs := []Future[int]{
		neverFuture[int]{},
		ReadyFuture(99),
	}
	fut := Race(futs)
	v, ready := fut.Poll(noopContext()).Value()
	require.True(t, ready)
	require.Equal(t, 1, v.Index)
	require.Equal(t, 99, v.Value)
}
