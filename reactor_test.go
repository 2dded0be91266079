package asyncrt

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errTestPoison = errors.New("simulated backend failure")

func newTestReactor(t *testing.T) *Reactor {
	t.Helper()
	backend := newPlatformBackend()
	r, err := newReactor(backend)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestSelectReactorBackendHonorsPortableOverride(t *testing.T) {
	cfg, err := resolveOptions([]Option{WithReactorBackend(ReactorBackendPortable)})
	require.NoError(t, err)
	backend := selectReactorBackend(cfg)
	require.IsType(t, &portableBackend{}, backend)
}

func TestReactorSubmitTimeoutFires(t *testing.T) {
	r := newTestReactor(t)

	h, err := r.SubmitTimeout(time.Now().Add(10 * time.Millisecond))
	require.NoError(t, err)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, err := r.PollOnce(20 * time.Millisecond); err != nil {
			t.Fatalf("PollOnce: %v", err)
		}
		result := h.Poll(noopContext())
		if v, ready := result.Value(); ready {
			require.True(t, v.TimedOut)
			return
		}
	}
	t.Fatal("timeout bridge never fired")
}

func TestReactorWakeInterruptsBlockingPoll(t *testing.T) {
	r := newTestReactor(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = r.PollOnce(-1)
	}()

	time.Sleep(20 * time.Millisecond)
	r.Wake()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PollOnce did not return after Wake")
	}
}

func TestReactorCancelTimeout(t *testing.T) {
	r := newTestReactor(t)

	h, err := r.SubmitTimeout(time.Now().Add(time.Hour))
	require.NoError(t, err)

	h.Cancel()

	result := h.Poll(noopContext())
	v, ready := result.Value()
	require.True(t, ready)
	require.True(t, v.Cancelled)
}

func TestReactorPoisonCompletesOutstandingOps(t *testing.T) {
	r := newTestReactor(t)

	h, err := r.SubmitTimeout(time.Now().Add(time.Hour))
	require.NoError(t, err)

	r.poison(errTestPoison)

	result := h.Poll(noopContext())
	v, ready := result.Value()
	require.True(t, ready)
	require.Error(t, v.Err)

	_, err = r.SubmitTimeout(time.Now().Add(time.Millisecond))
	require.Error(t, err)
}
