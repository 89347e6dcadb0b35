package venue

import (
	"context"
	"testing"
	"time"
)

func TestTokenBucketAllowsBurstThenThrottles(t *testing.T) {
	tb := NewTokenBucket(2, 1)
	ctx := context.Background()

	start := time.Now()
	if err := tb.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if err := tb.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("expected burst of 2 to be immediate, took %v", elapsed)
	}

	if err := tb.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 500*time.Millisecond {
		t.Fatalf("expected third token to require refill wait, took %v", elapsed)
	}
}

func TestTokenBucketRespectsCancellation(t *testing.T) {
	tb := NewTokenBucket(1, 0.1)
	ctx := context.Background()
	if err := tb.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tb.Wait(cancelCtx); err == nil {
		t.Fatal("expected cancelled context to abort wait")
	}
}

func TestNewRateLimiterDefaultsNonPositiveRPS(t *testing.T) {
	rl := NewRateLimiter(0)
	if rl.Submit == nil || rl.Cancel == nil || rl.Read == nil {
		t.Fatal("expected all buckets initialized with default rps")
	}
}
