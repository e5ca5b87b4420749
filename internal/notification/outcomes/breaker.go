package outcomes

import (
	"sync"
	"time"
)

// Breaker stops publishing while the broker is failing so broadcasts do not
// each wait out a produce timeout. While open, records are dropped.
//
// After the cooldown a single trial call is let through (half-open). A failed
// trial reopens the breaker at once; a successful one closes it.
type Breaker struct {
	mu sync.Mutex

	threshold int
	cooldown  time.Duration
	now       func() time.Time

	failures  int
	openUntil time.Time
	open      bool
	trialing  bool
}

// NewBreaker opens after threshold consecutive failures and admits a trial
// call once cooldown has elapsed.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow reports whether a publish may be attempted. Once the cooldown has
// elapsed exactly one caller gets through until that trial is recorded.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return true
	}
	if b.trialing || !b.now().After(b.openUntil) {
		return false
	}
	b.trialing = true
	return true
}

// RecordSuccess closes the breaker and reports whether it was open before.
func (b *Breaker) RecordSuccess() (closed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	closed = b.open
	b.failures = 0
	b.open = false
	b.trialing = false
	return closed
}

// RecordFailure counts a failure and reports whether it opened the breaker.
// A failed trial reopens it for another cooldown.
func (b *Breaker) RecordFailure() (opened bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.trialing {
		b.trialing = false
		b.openUntil = b.now().Add(b.cooldown)
		return true
	}
	if b.failures >= b.threshold && !b.open {
		b.open = true
		b.openUntil = b.now().Add(b.cooldown)
		return true
	}
	return false
}

// IsOpen reports whether the breaker is open or half-open.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}
