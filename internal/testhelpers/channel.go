package testhelpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// ChanDiscard consumes a channel and discards all values.
func ChanDiscard[T any](ch <-chan T) {
	go func() {
		for range ch {
			// no-op
		}
	}()
}

// ChanRecv receives a value from a channel, failing the test if nothing
// arrives within the timeout.
func ChanRecv[T any](t testing.TB, ch <-chan T, timeout time.Duration) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		require.Fail(t, "timed out waiting for channel")
		var zero T
		return zero
	}
}

// ChanRequireNoError consumes a channel and asserts that no error is received.
func ChanRequireNoError(t testing.TB, ch <-chan error) {
	t.Helper()

	go func() {
		require.NoError(t, <-ch)
	}()
}
