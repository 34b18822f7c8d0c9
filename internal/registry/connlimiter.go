package registry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// connLimiter bounds how many serial devices the registry holds open
// at once, guarding the host's USB/UART resources against a noisy
// endpoint enumerator that keeps discovering new paths.
type connLimiter struct {
	sem           chan struct{}
	timeout       time.Duration
	maxConn       int
	activeCount   atomic.Int64
	rejectedCount atomic.Int64
}

const (
	defaultMaxConnections = 64
	defaultAcquireTimeout = 5 * time.Second
)

func newConnLimiter(maxConn int) *connLimiter {
	if maxConn <= 0 {
		maxConn = defaultMaxConnections
	}
	return &connLimiter{
		sem:     make(chan struct{}, maxConn),
		timeout: defaultAcquireTimeout,
		maxConn: maxConn,
	}
}

// Acquire reserves one connection slot, failing if none is available
// within the limiter's timeout.
func (l *connLimiter) Acquire(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	select {
	case l.sem <- struct{}{}:
		l.activeCount.Add(1)
		return nil
	case <-ctx.Done():
		l.rejectedCount.Add(1)
		return fmt.Errorf("registry: connection limit exceeded: max=%d", l.maxConn)
	}
}

// Release returns a connection slot to the pool.
func (l *connLimiter) Release() {
	select {
	case <-l.sem:
		l.activeCount.Add(-1)
	default:
	}
}

func (l *connLimiter) Current() int { return int(l.activeCount.Load()) }

func (l *connLimiter) Stats() ConnLimiterStats {
	return ConnLimiterStats{
		MaxConnections:    l.maxConn,
		ActiveConnections: l.Current(),
		RejectedTotal:     l.rejectedCount.Load(),
	}
}

// ConnLimiterStats reports the registry-wide concurrent connection cap.
type ConnLimiterStats struct {
	MaxConnections    int   `json:"max_connections"`
	ActiveConnections int   `json:"active_connections"`
	RejectedTotal     int64 `json:"rejected_total"`
}
