package ratelimit

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/store/memory"
)

func newTestLimiter() (*Limiter, *memory.Store, *time.Time) {
	st := memory.New()
	l := New(st, "test-secret")
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, st, &now
}

func mustAuthorize(t *testing.T, l *Limiter, key string, capacity int, period time.Duration) bool {
	t.Helper()
	ok, err := l.Authorize(context.Background(), key, capacity, period)
	if err != nil {
		t.Fatalf("Authorize(%q): %v", key, err)
	}
	return ok
}

func TestAuthorizeExhaustsCapacity(t *testing.T) {
	l, _, _ := newTestLimiter()

	for i := 0; i < 4; i++ {
		if !mustAuthorize(t, l, "k", 4, time.Minute) {
			t.Fatalf("call %d denied, want allowed", i+1)
		}
	}
	if mustAuthorize(t, l, "k", 4, time.Minute) {
		t.Fatal("call 5 allowed, want denied")
	}
}

func TestAuthorizeRefillCapsAtFull(t *testing.T) {
	l, _, now := newTestLimiter()

	// Drain the bucket past empty, then let many refill periods pass.
	for i := 0; i < 5; i++ {
		mustAuthorize(t, l, "k", 4, time.Minute)
	}
	*now = now.Add(10 * time.Minute)

	// The balance must cap at 1.0, not accumulate, so exactly capacity
	// calls pass again.
	for i := 0; i < 4; i++ {
		if !mustAuthorize(t, l, "k", 4, time.Minute) {
			t.Fatalf("call %d after idle denied, want allowed", i+1)
		}
	}
	if mustAuthorize(t, l, "k", 4, time.Minute) {
		t.Fatal("call past capacity allowed, want denied")
	}
}

func TestAuthorizeInexactCapacities(t *testing.T) {
	l, _, _ := newTestLimiter()

	// 1/capacity is inexact in binary for all of these; a fresh key must
	// still permit exactly capacity calls.
	for _, capacity := range []int{6, 10, 20, 96} {
		key := fmt.Sprintf("k-%d", capacity)
		for i := 0; i < capacity; i++ {
			if !mustAuthorize(t, l, key, capacity, time.Hour) {
				t.Fatalf("capacity %d: call %d denied, want allowed", capacity, i+1)
			}
		}
		if mustAuthorize(t, l, key, capacity, time.Hour) {
			t.Fatalf("capacity %d: call %d allowed, want denied", capacity, capacity+1)
		}
	}
}

func TestAuthorizePartialRefill(t *testing.T) {
	l, _, now := newTestLimiter()

	for i := 0; i < 4; i++ {
		mustAuthorize(t, l, "k", 4, time.Minute)
	}

	// Half a period restores half the capacity.
	*now = now.Add(30 * time.Second)
	for i := 0; i < 2; i++ {
		if !mustAuthorize(t, l, "k", 4, time.Minute) {
			t.Fatalf("call %d after partial refill denied, want allowed", i+1)
		}
	}
	if mustAuthorize(t, l, "k", 4, time.Minute) {
		t.Fatal("third call after partial refill allowed, want denied")
	}
}

func TestAuthorizeDebitPersistsOnDenial(t *testing.T) {
	l, st, _ := newTestLimiter()

	for i := 0; i < 5; i++ {
		mustAuthorize(t, l, "k", 4, time.Minute)
	}

	// Five debits of 0.25 against a full bucket leave -0.25 on record.
	bucket, created, err := st.GetOrCreateBucket(context.Background(), "k")
	if err != nil || created {
		t.Fatalf("GetOrCreateBucket: created=%v err=%v", created, err)
	}
	if math.Abs(bucket.Tokens-(-0.25)) > 1e-9 {
		t.Fatalf("tokens after denied call = %v, want -0.25", bucket.Tokens)
	}
}

func TestAuthorizeLoginEmailNormalizes(t *testing.T) {
	l, _, _ := newTestLimiter()
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		ok, err := l.AuthorizeLoginEmail(ctx, "j.doe+alerts@example.org")
		if err != nil || !ok {
			t.Fatalf("attempt %d: ok=%v err=%v", i+1, ok, err)
		}
	}

	// The aliased and plain spellings share one bucket.
	if ok, _ := l.AuthorizeLoginEmail(ctx, "jdoe@example.org"); ok {
		t.Fatal("normalized alias not rate limited with the plain address")
	}

	// An unrelated address has its own bucket.
	if ok, _ := l.AuthorizeLoginEmail(ctx, "other@example.org"); !ok {
		t.Fatal("unrelated address denied")
	}
}

func TestAuthorizeTOTPCodeSingleUse(t *testing.T) {
	l, _, _ := newTestLimiter()
	ctx := context.Background()

	if ok, _ := l.AuthorizeTOTPCode(ctx, 1, "123456"); !ok {
		t.Fatal("first use of code denied")
	}
	if ok, _ := l.AuthorizeTOTPCode(ctx, 1, "123456"); ok {
		t.Fatal("replayed code allowed within its window")
	}
	if ok, _ := l.AuthorizeTOTPCode(ctx, 1, "654321"); !ok {
		t.Fatal("different code denied")
	}
	if ok, _ := l.AuthorizeTOTPCode(ctx, 2, "123456"); ok != true {
		t.Fatal("same code for different user denied")
	}
}

func TestHashedKeyOmitsRawValue(t *testing.T) {
	l, _, _ := newTestLimiter()

	key := l.hashedKey("em", "jdoe@example.org")
	if len(key) != len("em-")+40 {
		t.Fatalf("key %q is not prefix plus a sha1 hex digest", key)
	}
	if key == "em-jdoe@example.org" {
		t.Fatal("key contains the raw address")
	}

	// Different secrets must produce different keys for the same value.
	other := New(memory.New(), "other-secret")
	if other.hashedKey("em", "jdoe@example.org") == key {
		t.Fatal("key does not depend on the secret")
	}
}
