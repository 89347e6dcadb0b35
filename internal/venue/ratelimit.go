// Package venue implements one concrete VenueGateway adapter: a REST
// client for order submission/cancellation, a WebSocket feed for order
// and fill updates, EIP-712 order signing, and per-category rate
// limiting — generalized from the teacher's Polymarket CLOB client
// (internal/exchange/{client,ws,auth,ratelimit}.go) onto the generic
// VenueOrder/VenueOrderUpdate/VenueOrderFill domain model.
package venue

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is a continuously-refilling token-bucket rate limiter.
// Grounded on internal/exchange/ratelimit.go's TokenBucket, unchanged in
// shape.
type TokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64
	lastTime time.Time
}

// NewTokenBucket creates a limiter with the given burst capacity and
// refill rate (tokens per second).
func NewTokenBucket(capacity, ratePerSecond float64) *TokenBucket {
	return &TokenBucket{tokens: capacity, capacity: capacity, rate: ratePerSecond, lastTime: time.Now()}
}

// Wait blocks until a token is available or ctx is cancelled.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(tb.lastTime).Seconds()
		tb.tokens += elapsed * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastTime = now

		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}

		wait := time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
		tb.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// RateLimiter groups the token buckets a venue gateway needs: one for
// order submission, one for cancellation, one for book/status reads.
type RateLimiter struct {
	Submit *TokenBucket
	Cancel *TokenBucket
	Read   *TokenBucket
}

// NewRateLimiter creates a limiter set from a single requests-per-second
// budget, splitting it across categories the way the teacher splits one
// published venue limit into order/cancel/book buckets.
func NewRateLimiter(rps float64) *RateLimiter {
	if rps <= 0 {
		rps = 10
	}
	return &RateLimiter{
		Submit: NewTokenBucket(rps*7, rps),
		Cancel: NewTokenBucket(rps*6, rps*0.6),
		Read:   NewTokenBucket(rps*3, rps*0.3),
	}
}
