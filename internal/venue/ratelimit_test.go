package venue

import (
	"context"
	"testing"
	"time"
)

func TestTokenBucketAllowsBurstUpToCapacity(t *testing.T) {
	tb := NewTokenBucket(3, 1)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := tb.Wait(ctx); err != nil {
			t.Fatalf("Wait() #%d: %v", i, err)
		}
	}
}

func TestTokenBucketBlocksUntilRefill(t *testing.T) {
	tb := NewTokenBucket(1, 100) // 1 token capacity, refills in 10ms
	ctx := context.Background()

	if err := tb.Wait(ctx); err != nil {
		t.Fatalf("first Wait(): %v", err)
	}

	start := time.Now()
	if err := tb.Wait(ctx); err != nil {
		t.Fatalf("second Wait(): %v", err)
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("expected second Wait() to block for a refill, only took %s", elapsed)
	}
}

func TestTokenBucketRespectsContextCancellation(t *testing.T) {
	tb := NewTokenBucket(1, 0.001) // effectively never refills within the test
	_ = tb.Wait(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := tb.Wait(ctx)
	if err == nil {
		t.Error("expected Wait() to return an error once the context times out")
	}
}

func TestNewRateLimiterPopulatesAllBuckets(t *testing.T) {
	rl := NewRateLimiter()
	if rl.Order == nil || rl.Cancel == nil || rl.Book == nil {
		t.Fatalf("expected all three buckets to be initialized, got %+v", rl)
	}
}
