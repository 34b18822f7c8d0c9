package health

import "sync/atomic"

// Readiness aggregates whether the registry's autoscan has completed
// at least once, independent of whether any device is currently
// connected.
type Readiness struct {
	registryReady atomic.Bool
}

func New() *Readiness { return &Readiness{} }

func (r *Readiness) SetRegistryReady(v bool) { r.registryReady.Store(v) }

// Ready reports overall readiness.
func (r *Readiness) Ready() bool {
	return r.registryReady.Load()
}
