// Package ratelimit implements the persisted token-bucket limiter used for
// abuse prevention across the service.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/store"
)

// Limiter is a keyed token-bucket rate limiter backed by the store. Each
// key owns a token balance capped at 1.0 and a last-refill timestamp; a
// fresh bucket starts full. Every call debits 1/capacity, and the debit is
// persisted even when the call is denied, so a rejected-retry loop cannot
// refill faster than it drains.
//
// Concurrent calls against the same key may overwrite each other's balance
// (last write wins). That imprecision is accepted for lock-free simplicity;
// the limiter only needs approximate fairness.
type Limiter struct {
	store  store.BucketStore
	secret string
	now    func() time.Time
}

func New(s store.BucketStore, secret string) *Limiter {
	return &Limiter{store: s, secret: secret, now: time.Now}
}

// Authorize refills and debits the bucket for key, then reports whether the
// call is allowed. A denial is a valid outcome, not an error; errors only
// surface storage failures.
func (l *Limiter) Authorize(ctx context.Context, key string, capacity int, refillPeriod time.Duration) (bool, error) {
	now := l.now()
	bucket, created, err := l.store.GetOrCreateBucket(ctx, key)
	if err != nil {
		return false, fmt.Errorf("rate limit %q: %w", key, err)
	}

	if !created {
		elapsed := now.Sub(bucket.Updated).Seconds()
		bucket.Tokens = math.Min(1.0, bucket.Tokens+elapsed/refillPeriod.Seconds())
	}

	bucket.Tokens -= 1.0 / float64(capacity)
	bucket.Updated = now
	if err := l.store.SaveBucket(ctx, bucket); err != nil {
		return false, fmt.Errorf("rate limit %q: %w", key, err)
	}

	// 1/capacity is not exact in binary for most capacities, so the
	// debits accumulate error on the order of 1e-16; without a tolerance
	// the capacity-th call on a fresh bucket can land just below zero.
	return bucket.Tokens >= -tolerance, nil
}

const tolerance = 1e-9
