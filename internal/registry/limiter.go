package registry

import (
	"sync/atomic"

	"golang.org/x/time/rate"
)

// pathLimiter throttles Execute calls against one device path so a
// runaway caller cannot saturate a single slow serial link.
type pathLimiter struct {
	limiter       *rate.Limiter
	allowedCount  atomic.Int64
	rejectedCount atomic.Int64
}

const (
	defaultRatePerSecond = 20
	defaultBurst         = 40
)

func newPathLimiter() *pathLimiter {
	return &pathLimiter{limiter: rate.NewLimiter(rate.Limit(defaultRatePerSecond), defaultBurst)}
}

func (l *pathLimiter) Allow() bool {
	if l.limiter.Allow() {
		l.allowedCount.Add(1)
		return true
	}
	l.rejectedCount.Add(1)
	return false
}
