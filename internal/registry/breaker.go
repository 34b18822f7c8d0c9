package registry

import (
	"errors"
	"sync"
	"time"
)

// BreakerState is one of the three circuit states guarding repeated
// reconnect attempts to a flapping serial device.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned by Call while the breaker is tripped.
var ErrBreakerOpen = errors.New("registry: reconnect circuit open")

// breaker guards Connect calls for one device path: after a run of
// consecutive failures it stops trying for a cooldown window, then
// allows one probe attempt before fully closing again.
type breaker struct {
	mu            sync.Mutex
	state         BreakerState
	failureCount  int
	lastFailTime  time.Time
	lastStateTime time.Time

	threshold int
	cooldown  time.Duration
}

const (
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 30 * time.Second
)

func newBreaker() *breaker {
	return &breaker{
		state:         BreakerClosed,
		threshold:     defaultBreakerThreshold,
		cooldown:      defaultBreakerCooldown,
		lastStateTime: time.Now(),
	}
}

// Call runs fn if the breaker allows it, recording the outcome.
func (b *breaker) Call(fn func() error) error {
	if err := b.beforeCall(); err != nil {
		return err
	}
	err := fn()
	b.afterCall(err)
	return err
}

func (b *breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if time.Since(b.lastFailTime) > b.cooldown {
			b.transitionTo(BreakerHalfOpen)
			return nil
		}
		return ErrBreakerOpen
	default:
		return nil
	}
}

func (b *breaker) afterCall(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failureCount++
		b.lastFailTime = time.Now()
		if b.state == BreakerHalfOpen || b.failureCount >= b.threshold {
			b.transitionTo(BreakerOpen)
		}
		return
	}
	b.failureCount = 0
	b.transitionTo(BreakerClosed)
}

func (b *breaker) transitionTo(s BreakerState) {
	if b.state == s {
		return
	}
	b.state = s
	b.lastStateTime = time.Now()
}

func (b *breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
