package metrics

import (
	"context"
	"testing"
	"time"
)

func TestServerRunShutsDownOnContextCancel(t *testing.T) {
	s := NewServer(":0")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error on shutdown: %v", err)
		}
	case <-time.After(6 * time.Second):
		t.Fatal("Run did not shut down within its own 5s shutdown budget")
	}
}
