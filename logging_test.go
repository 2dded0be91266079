package asyncrt

import (
	"bytes"
	"testing"

	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/require"
)

func TestSetLoggerRedirectsOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := stumpy.L.New(stumpy.L.WithStumpy(stumpy.WithWriter(&buf)))
	SetLogger(logger)
	t.Cleanup(func() { SetLogger(nil) })

	logTaskPanic(&TaskPanicError{Value: "boom", TaskID: 7})

	require.Contains(t, buf.String(), "task panicked")
	require.Contains(t, buf.String(), "boom")
}

func TestSetLoggerNilDiscardsOutput(t *testing.T) {
	SetLogger(nil)
	t.Cleanup(func() {
		SetLogger(stumpy.L.New(stumpy.L.WithStumpy()))
	})

	// Must not panic even with no writer backing it.
	logSchedulerStarted(4)
	logSchedulerStopped()
}
