package telemetry_test

import (
	"net"
	"testing"
	"time"
)

const collectorAddr = "localhost:14317"

// requireCollector skips the test unless an OTEL collector is reachable on
// the local development endpoint (started with `make otel-up`).
func requireCollector(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	conn, err := net.DialTimeout("tcp", collectorAddr, 250*time.Millisecond)
	if err != nil {
		t.Skipf("OTEL collector not reachable on %s: %v", collectorAddr, err)
	}
	_ = conn.Close()
}
