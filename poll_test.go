package asyncrt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPollResultReady(t *testing.T) {
	p := Ready(5)
	require.True(t, p.IsReady())
	v, ok := p.Value()
	require.True(t, ok)
	require.Equal(t, 5, v)
	require.Equal(t, 5, p.MustValue())
}

func TestPollResultPending(t *testing.T) {
	p := PendingResult[int]()
	require.False(t, p.IsReady())
	_, ok := p.Value()
	require.False(t, ok)
}

func TestPollResultMustValuePanicsWhenPending(t *testing.T) {
	p := PendingResult[int]()
	require.Panics(t, func() { p.MustValue() })
}
