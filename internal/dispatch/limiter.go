package dispatch

import (
	"context"
	"sync"
	"time"
)

// tokenBucket implements the per-instance rate limit described in §4.4: up
// to burst calls may proceed immediately, and tokens beyond that accrue
// incrementally at one per minSpacing (1000/rps ms), capped at burst;
// consecutive acquisitions are additionally spaced by at least minSpacing
// even when tokens remain, so a burst never lets two calls through back to
// back. Neither golang.org/x/time/rate nor any third-party limiter in the
// retrieval pack expresses the combination of a capped incremental-accrual
// reservoir and a minimum-spacing floor, so this is a small hand-rolled
// primitive — see DESIGN.md.
type tokenBucket struct {
	mu          sync.Mutex
	burst       int
	minSpacing  time.Duration
	tokens      int
	lastRefill  time.Time
	lastAcquire time.Time
}

func newTokenBucket(burst int, rps float64) *tokenBucket {
	if burst <= 0 {
		burst = 1
	}
	minSpacing := time.Duration(0)
	if rps > 0 {
		minSpacing = time.Duration(1000/rps) * time.Millisecond
	}
	return &tokenBucket{
		burst:      burst,
		minSpacing: minSpacing,
		tokens:     burst,
		lastRefill: time.Now(),
	}
}

// acquire blocks until a token is available, ctx is cancelled, or the
// deadline carried by ctx elapses. It returns ctx.Err() on cancellation.
func (b *tokenBucket) acquire(ctx context.Context) error {
	for {
		wait, ok := b.tryAcquire()
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAcquire attempts to take one token. On failure it returns how long
// the caller should wait before trying again.
func (b *tokenBucket) tryAcquire() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.minSpacing <= 0 {
		// rps <= 0 means no configured limit: never block.
		return 0, true
	}

	now := time.Now()
	if b.tokens < b.burst {
		if accrued := int(now.Sub(b.lastRefill) / b.minSpacing); accrued > 0 {
			b.tokens += accrued
			if b.tokens > b.burst {
				b.tokens = b.burst
			}
			b.lastRefill = b.lastRefill.Add(time.Duration(accrued) * b.minSpacing)
		}
	}

	if b.tokens <= 0 {
		return b.minSpacing, false
	}

	if !b.lastAcquire.IsZero() {
		elapsed := now.Sub(b.lastAcquire)
		if elapsed < b.minSpacing {
			return b.minSpacing - elapsed, false
		}
	}

	b.tokens--
	b.lastAcquire = now
	return 0, true
}
