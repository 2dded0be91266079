package asyncrt

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func noopContext() *Context {
	return &Context{waker: NoopWaker(), budget: NewBudget(DefaultBudget)}
}

func TestCompletionBridgePollPendingThenReady(t *testing.T) {
	b := &CompletionBridge{}
	b.reset(1, OpRead, 3, time.Time{})

	cx := noopContext()
	status, _, _, done := b.poll(cx)
	require.False(t, done)
	require.Equal(t, BridgeSubmitted, status)

	b.complete(BridgeReady, OpResult{Events: EventRead}, nil)

	status, result, err, done := b.poll(cx)
	require.True(t, done)
	require.NoError(t, err)
	require.Equal(t, BridgeReady, status)
	require.Equal(t, EventRead, result.Events)
}

func TestCompletionBridgeCompleteIsIdempotent(t *testing.T) {
	b := &CompletionBridge{}
	b.reset(1, OpRead, 3, time.Time{})
	b.complete(BridgeReady, OpResult{Events: EventRead}, nil)
	b.complete(BridgeFailed, OpResult{}, errors.New("should be ignored"))

	status, _, _, done := b.poll(noopContext())
	require.True(t, done)
	require.Equal(t, BridgeReady, status)
}

func TestCompletionBridgeCancelReclassifiesReady(t *testing.T) {
	b := &CompletionBridge{}
	b.reset(1, OpRead, 3, time.Time{})
	b.requestCancel()
	b.complete(BridgeReady, OpResult{}, nil)

	status, _, _, done := b.poll(noopContext())
	require.True(t, done)
	require.Equal(t, BridgeCancelled, status)
}

func TestOpHandlePollMapsTerminalStatuses(t *testing.T) {
	b := &CompletionBridge{}
	b.reset(1, OpTimeout, -1, time.Time{})
	h := OpHandle{bridge: b}

	result := h.Poll(noopContext())
	require.False(t, result.IsReady())

	b.complete(BridgeTimedOut, OpResult{}, nil)
	result = h.Poll(noopContext())
	v, ready := result.Value()
	require.True(t, ready)
	require.True(t, v.TimedOut)
	require.Error(t, v.Err)
}

