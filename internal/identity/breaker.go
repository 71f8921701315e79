package identity

import (
	"sync"
	"time"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// breaker is a small circuit breaker guarding identity-provider calls.
// After failThreshold consecutive failures it opens for openFor, then lets a
// single probe through before closing again.
type breaker struct {
	mu               sync.Mutex
	st               breakerState
	consecutiveFails int
	failThreshold    int
	openFor          time.Duration
	nextTryAt        time.Time
	probeInFlight    bool
}

func newBreaker(threshold int, openFor time.Duration) *breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if openFor <= 0 {
		openFor = 10 * time.Second
	}
	return &breaker{failThreshold: threshold, openFor: openFor}
}

func (b *breaker) tryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	switch b.st {
	case breakerClosed:
		return true
	case breakerOpen:
		if now.After(b.nextTryAt) && !b.probeInFlight {
			b.st = breakerHalfOpen
			b.probeInFlight = true
			return true
		}
		return false
	case breakerHalfOpen:
		if !b.probeInFlight {
			b.probeInFlight = true
			return true
		}
		return false
	default:
		return true
	}
}

func (b *breaker) onSuccess() {
	b.mu.Lock()
	b.consecutiveFails = 0
	b.st = breakerClosed
	b.probeInFlight = false
	b.mu.Unlock()
}

func (b *breaker) onFailure() {
	b.mu.Lock()
	if b.st == breakerHalfOpen {
		b.st = breakerOpen
		b.nextTryAt = time.Now().Add(b.openFor)
		b.probeInFlight = false
		b.mu.Unlock()
		return
	}

	b.consecutiveFails++
	if b.consecutiveFails >= b.failThreshold {
		b.st = breakerOpen
		b.nextTryAt = time.Now().Add(b.openFor)
	}

	b.mu.Unlock()
}
