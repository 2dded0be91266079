package asyncrt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadyFutureResolvesImmediately(t *testing.T) {
	fut := ReadyFuture("hello")
	v, ready := fut.Poll(noopContext()).Value()
	require.True(t, ready)
	require.Equal(t, "hello", v)
}

func TestFutureFuncAdaptsPlainFunction(t *testing.T) {
	var fut Future[int] = FutureFunc[int](func(cx *Context) PollResult[int] {
		return Ready(9)
	})
	v, ready := fut.Poll(noopContext()).Value()
	require.True(t, ready)
	require.Equal(t, 9, v)
}
