package mcp

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain enables goroutine leak detection: sessions and stores opened in
// tests must be closed by their cleanup hooks.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
