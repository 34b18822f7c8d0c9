package health

import (
	"context"
	"fmt"
	"time"

	"github.com/tsnbridge/veloctl/internal/eventbus"
)

// EventBusChecker reports on the optional Redis pub/sub fan-out.
type EventBusChecker struct {
	client *eventbus.Client
}

func NewEventBusChecker(client *eventbus.Client) *EventBusChecker {
	return &EventBusChecker{client: client}
}

func (c *EventBusChecker) Name() string { return "eventbus" }

func (c *EventBusChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	if err := c.client.HealthCheck(ctx); err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("ping failed: %v", err),
			Latency: time.Since(start),
		}
	}

	stats := c.client.Stats()
	utilization := 0.0
	if stats.TotalConns > 0 {
		utilization = float64(stats.TotalConns-stats.IdleConns) / float64(stats.TotalConns)
	}

	status := StatusHealthy
	message := "ok"
	if utilization > 0.9 {
		status = StatusDegraded
		message = "connection pool near limit"
	}

	return CheckResult{
		Status:  status,
		Message: message,
		Details: map[string]interface{}{
			"total_conns": stats.TotalConns,
			"idle_conns":  stats.IdleConns,
			"hits":        stats.Hits,
			"misses":      stats.Misses,
		},
		Latency: time.Since(start),
	}
}
