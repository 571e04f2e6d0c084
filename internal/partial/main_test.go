package partial

import (
	"testing"

	"go.uber.org/goleak"
)

// The engine is synchronous; nothing in this package may leave goroutines behind.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
