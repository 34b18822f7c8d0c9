package health

import (
	"context"
	"fmt"
	"time"

	"github.com/tsnbridge/veloctl/internal/storage/eventlog"
)

// EventLogChecker reports on the optional Postgres audit trail.
type EventLogChecker struct {
	store *eventlog.Store
}

func NewEventLogChecker(store *eventlog.Store) *EventLogChecker {
	return &EventLogChecker{store: store}
}

func (c *EventLogChecker) Name() string { return "eventlog" }

func (c *EventLogChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	if err := c.store.Ping(ctx); err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("ping failed: %v", err),
			Latency: time.Since(start),
		}
	}
	return CheckResult{Status: StatusHealthy, Message: "ok", Latency: time.Since(start)}
}
