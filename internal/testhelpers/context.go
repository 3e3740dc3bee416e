package testhelpers

import (
	"context"
	"testing"
)

// Context returns a context that is canceled when the test completes.
// It stands in for (*testing.T).Context, which requires Go 1.24.
func Context(t testing.TB) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
