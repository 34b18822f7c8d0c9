package health

import (
	"context"
	"time"

	"github.com/tsnbridge/veloctl/internal/registry"
)

// RegistryChecker reports on the Device Registry: how many serial
// paths are currently tracked.
type RegistryChecker struct {
	reg *registry.Registry
}

func NewRegistryChecker(reg *registry.Registry) *RegistryChecker {
	return &RegistryChecker{reg: reg}
}

func (c *RegistryChecker) Name() string { return "registry" }

func (c *RegistryChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	count := len(c.reg.All())

	return CheckResult{
		Status:  StatusHealthy,
		Message: "ok",
		Details: map[string]interface{}{
			"connected_devices": count,
		},
		Latency: time.Since(start),
	}
}
