// Package registry owns the process-wide mapping from serial path to
// Device Connection: discovery, connect/disconnect lifecycle, and the
// query facility the HTTP layer calls into.
package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tsnbridge/veloctl/internal/device"
	"github.com/tsnbridge/veloctl/internal/enumerate"
	"github.com/tsnbridge/veloctl/internal/metrics"
)

// ErrDeviceNotFound is returned by Get and Execute for a path with no
// live Device Connection.
var ErrDeviceNotFound = errors.New("registry: device not found")

// ErrRateLimited is returned by Execute when a path's token bucket is
// exhausted.
var ErrRateLimited = errors.New("registry: rate limit exceeded")

const defaultScanInterval = 5 * time.Second

type entry struct {
	conn    *device.Connection
	breaker *breaker
	limiter *pathLimiter
}

// Registry is the process-wide path→Device Connection map.
type Registry struct {
	mu   sync.Mutex
	devs map[string]*entry

	enumerator  enumerate.Enumerator
	logger      *zap.Logger
	sink        EventSink
	baudRate    int
	connLimiter *connLimiter
	metrics     *metrics.AppMetrics
	aliases     *AliasMap

	scanMu   sync.Mutex
	scanStop chan struct{}
	scanWG   sync.WaitGroup
}

// Option configures a Registry at construction.
type Option func(*Registry)

func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

func WithEventSink(s EventSink) Option {
	return func(r *Registry) {
		if s != nil {
			r.sink = s
		}
	}
}

func WithEnumerator(e enumerate.Enumerator) Option {
	return func(r *Registry) {
		if e != nil {
			r.enumerator = e
		}
	}
}

func WithBaudRate(baud int) Option {
	return func(r *Registry) { r.baudRate = baud }
}

// WithMaxConnections caps how many devices the registry will hold
// open simultaneously; Connect beyond the cap returns an error instead
// of opening another serial handle.
func WithMaxConnections(max int) Option {
	return func(r *Registry) { r.connLimiter = newConnLimiter(max) }
}

// WithMetrics attaches process-wide metrics; every Device Connection
// the registry creates afterward is instrumented with it.
func WithMetrics(m *metrics.AppMetrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithAliasMap attaches an operator-assigned path→label table; every
// Device Connection the registry creates afterward has its Label set
// from it, falling back to the bare path when the path has no entry.
func WithAliasMap(m *AliasMap) Option {
	return func(r *Registry) {
		if m != nil {
			r.aliases = m
		}
	}
}

func New(opts ...Option) *Registry {
	r := &Registry{
		devs:        make(map[string]*entry),
		enumerator:  enumerate.DefaultDir(),
		sink:        NopEventSink(),
		connLimiter: newConnLimiter(0),
		aliases:     DefaultAliasMap(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Scan enumerates endpoints and reconciles the device map: new paths
// get connected, paths no longer listed get disconnected. Concurrent
// scans never create duplicate connections — membership is checked
// under the registry lock before any connect is spawned.
func (r *Registry) Scan() error {
	paths, err := r.enumerator.Enumerate()
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		seen[p] = true
	}

	var toConnect []string
	var toDisconnect []string

	r.mu.Lock()
	for _, p := range paths {
		if _, exists := r.devs[p]; !exists {
			toConnect = append(toConnect, p)
		}
	}
	for p := range r.devs {
		if !seen[p] {
			toDisconnect = append(toDisconnect, p)
		}
	}
	r.mu.Unlock()

	for _, p := range toConnect {
		r.sink.Publish(Event{Path: p, Kind: EventDiscovered, At: time.Now()})
		if err := r.Connect(p, r.baudRate); err != nil && r.logger != nil {
			r.logger.Warn("auto-connect failed", zap.String("path", p), zap.Error(err))
		}
	}
	for _, p := range toDisconnect {
		_ = r.Disconnect(p)
	}
	return nil
}

// Connect opens a Device Connection for path if one doesn't already
// exist, guarded by a per-path circuit breaker so a flapping device
// doesn't burn reconnect attempts indefinitely.
func (r *Registry) Connect(path string, baud int) error {
	r.mu.Lock()
	if _, exists := r.devs[path]; exists {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	if err := r.connLimiter.Acquire(context.Background()); err != nil {
		r.sink.Publish(Event{Path: path, Kind: EventError, At: time.Now(), Err: err.Error()})
		return err
	}

	r.mu.Lock()
	if _, exists := r.devs[path]; exists {
		r.mu.Unlock()
		r.connLimiter.Release()
		return nil
	}
	conn := device.New(path, baud, r.logger)
	if r.metrics != nil {
		conn.SetMetrics(r.metrics)
	}
	if label, ok := r.aliases.Label(path); ok {
		conn.SetLabel(label)
	}
	e := &entry{
		conn:    conn,
		breaker: newBreaker(),
		limiter: newPathLimiter(),
	}
	r.devs[path] = e
	r.mu.Unlock()

	r.sink.Publish(Event{Path: path, Kind: EventConnecting, At: time.Now()})

	if r.metrics != nil {
		r.metrics.ReconnectTotal.Inc()
	}

	err := e.breaker.Call(e.conn.Connect)
	if err != nil {
		r.mu.Lock()
		delete(r.devs, path)
		r.mu.Unlock()
		r.connLimiter.Release()
		r.sink.Publish(Event{Path: path, Kind: EventError, At: time.Now(), Err: err.Error()})
		return err
	}

	if r.metrics != nil {
		r.metrics.OnlineDeviceGauge.Set(float64(len(r.All())))
	}
	r.sink.Publish(Event{Path: path, Kind: EventConnected, At: time.Now()})
	return nil
}

// Disconnect closes the Device Connection for path, if any, draining
// its pending requests.
func (r *Registry) Disconnect(path string) error {
	r.mu.Lock()
	e, exists := r.devs[path]
	if !exists {
		r.mu.Unlock()
		return nil
	}
	delete(r.devs, path)
	r.mu.Unlock()

	err := e.conn.Disconnect()
	r.connLimiter.Release()
	if r.metrics != nil {
		r.metrics.OnlineDeviceGauge.Set(float64(len(r.All())))
	}
	r.sink.Publish(Event{Path: path, Kind: EventDisconnected, At: time.Now()})
	return err
}

// Get returns the Device Connection for path.
func (r *Registry) Get(path string) (*device.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, exists := r.devs[path]
	if !exists {
		return nil, ErrDeviceNotFound
	}
	return e.conn, nil
}

// ConnectionStats reports the registry-wide concurrent connection cap
// and its current utilization.
func (r *Registry) ConnectionStats() ConnLimiterStats {
	return r.connLimiter.Stats()
}

// All returns every currently tracked Device Connection.
func (r *Registry) All() []*device.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := make([]*device.Connection, 0, len(r.devs))
	for _, e := range r.devs {
		conns = append(conns, e.conn)
	}
	return conns
}

// Execute issues a request against path's Device Connection, subject
// to that path's rate limiter. The registry never swallows an error
// from the underlying request.
func (r *Registry) Execute(path string, method byte, uri string, payload []byte, timeout time.Duration) ([]byte, error) {
	r.mu.Lock()
	e, exists := r.devs[path]
	r.mu.Unlock()
	if !exists {
		return nil, ErrDeviceNotFound
	}
	if !e.limiter.Allow() {
		return nil, ErrRateLimited
	}
	return e.conn.Request(method, uri, payload, timeout)
}

// StartAutoScan cancels any prior periodic scan, performs an
// immediate scan, and schedules scans every interval (default 5s).
func (r *Registry) StartAutoScan(interval time.Duration) {
	if interval <= 0 {
		interval = defaultScanInterval
	}
	r.StopAutoScan()

	r.scanMu.Lock()
	stop := make(chan struct{})
	r.scanStop = stop
	r.scanMu.Unlock()

	if err := r.Scan(); err != nil && r.logger != nil {
		r.logger.Warn("initial scan failed", zap.Error(err))
	}

	r.scanWG.Add(1)
	go func() {
		defer r.scanWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := r.Scan(); err != nil && r.logger != nil {
					r.logger.Warn("periodic scan failed", zap.Error(err))
				}
			}
		}
	}()
}

// StopAutoScan cancels any running periodic scan; it is safe to call
// when no scan is running.
func (r *Registry) StopAutoScan() {
	r.scanMu.Lock()
	stop := r.scanStop
	r.scanStop = nil
	r.scanMu.Unlock()

	if stop != nil {
		close(stop)
		r.scanWG.Wait()
	}
}

// Shutdown stops the scanner and disconnects every device, ensuring
// every outstanding waiter is rejected and every serial handle closed.
func (r *Registry) Shutdown() {
	r.StopAutoScan()

	r.mu.Lock()
	paths := make([]string, 0, len(r.devs))
	for p := range r.devs {
		paths = append(paths, p)
	}
	r.mu.Unlock()

	for _, p := range paths {
		_ = r.Disconnect(p)
	}
}
