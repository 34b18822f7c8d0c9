// Package reqtracker correlates outbound CoAP requests with their
// responses by message ID, one tracker per Device Connection.
package reqtracker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tsnbridge/veloctl/internal/coap"
)

var (
	// ErrDisconnected is delivered to every pending waiter when the
	// owning connection goes down.
	ErrDisconnected = errors.New("reqtracker: connection disconnected")
	// ErrMessageIDInUse means the ID generator could not find a free
	// slot within one full wrap of the ID space — practically
	// unreachable at realistic in-flight counts, but checked anyway.
	ErrMessageIDInUse = errors.New("reqtracker: no free message id")
)

// RequestTimeoutError is returned to a waiter whose response never
// arrived within its deadline.
type RequestTimeoutError struct {
	Method    byte
	URI       string
	ElapsedMS int64
}

func (e *RequestTimeoutError) Error() string {
	return fmt.Sprintf("reqtracker: request timed out after %dms (uri=%s)", e.ElapsedMS, e.URI)
}

// Observer receives lifecycle notifications for metrics/logging,
// mirroring the Record(operation, status) shape used elsewhere in
// this codebase for session bookkeeping.
type Observer interface {
	Record(operation, status string)
}

type ObserverFunc func(operation, status string)

func (f ObserverFunc) Record(operation, status string) {
	if f != nil {
		f(operation, status)
	}
}

func NopObserver() Observer { return ObserverFunc(func(string, string) {}) }

// Result is what a waiter ultimately receives: exactly one of Payload
// or Err is meaningful.
type Result struct {
	Payload []byte
	Err     error
}

type pendingEntry struct {
	method  byte
	uri     string
	sentAt  time.Time
	timer   *time.Timer
	waiter  chan Result
	settled bool
}

// Tracker owns the pending-request map for one Device Connection. It
// is not safe for concurrent use from multiple goroutines except via
// the Send/OnResponse/OnTimeout/OnDisconnect entry points, which each
// take the internal lock.
type Tracker struct {
	mu       sync.Mutex
	pending  map[uint16]*pendingEntry
	ids      *coap.IDGenerator
	observer Observer

	defaultTimeout time.Duration
}

const defaultRequestTimeout = 15 * time.Second

// Option configures a Tracker at construction.
type Option func(*Tracker)

func WithObserver(o Observer) Option {
	return func(t *Tracker) {
		if o != nil {
			t.observer = o
		}
	}
}

func WithDefaultTimeout(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.defaultTimeout = d
		}
	}
}

func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		pending:        make(map[uint16]*pendingEntry),
		ids:            coap.NewIDGenerator(),
		observer:       NopObserver(),
		defaultTimeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Sender writes framed bytes to the serial handle; Device Connection
// supplies this so the tracker never touches the transport directly.
type Sender func(frame []byte) error

// Send builds and sends a CoAP request, returning a channel that
// receives exactly one Result. timeout of zero uses the tracker's
// default (15s per the wire's own convention).
func (t *Tracker) Send(method byte, uri string, timeout time.Duration, build func(mid uint16) ([]byte, error), send Sender) (<-chan Result, error) {
	if timeout <= 0 {
		timeout = t.defaultTimeout
	}

	t.mu.Lock()
	mid, err := t.allocateIDLocked()
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}

	entry := &pendingEntry{
		method: method,
		uri:    uri,
		sentAt: time.Now(),
		waiter: make(chan Result, 1),
	}
	t.pending[mid] = entry
	t.mu.Unlock()

	frame, err := build(mid)
	if err != nil {
		t.mu.Lock()
		delete(t.pending, mid)
		t.mu.Unlock()
		return nil, err
	}

	if err := send(frame); err != nil {
		t.mu.Lock()
		delete(t.pending, mid)
		t.mu.Unlock()
		return nil, err
	}

	entry.timer = time.AfterFunc(timeout, func() { t.OnTimeout(mid) })
	t.observer.Record("request_sent", uri)
	return entry.waiter, nil
}

// allocateIDLocked finds a message ID not already pending, skipping
// forward on collision and never issuing 0x0000.
func (t *Tracker) allocateIDLocked() (uint16, error) {
	for i := 0; i < 0xFFFF; i++ {
		id := t.ids.Next()
		if _, inUse := t.pending[id]; !inUse {
			return id, nil
		}
	}
	return 0, ErrMessageIDInUse
}

// OnResponse matches msg.MessageID against the pending map and
// settles the corresponding waiter exactly once. Unmatched responses
// are logged via the observer and dropped.
func (t *Tracker) OnResponse(msg coap.Message) {
	t.mu.Lock()
	entry, ok := t.pending[msg.MessageID]
	if !ok {
		t.mu.Unlock()
		t.observer.Record("response_unmatched", fmt.Sprintf("mid=0x%04X", msg.MessageID))
		return
	}
	delete(t.pending, msg.MessageID)
	t.mu.Unlock()

	entry.timer.Stop()

	if msg.CodeClass == 2 {
		t.settle(entry, Result{Payload: msg.Payload})
		t.observer.Record("response_ok", entry.uri)
		return
	}
	respErr := coap.AsError(msg)
	if respErr == nil {
		// AsError only covers 4.xx/5.xx; any other non-2.xx class is
		// still a failed request.
		respErr = &coap.ResponseError{Code: msg.Code, CodeName: msg.CodeName, Payload: msg.Payload}
	}
	t.settle(entry, Result{Err: respErr})
	t.observer.Record("response_error", entry.uri)
}

// OnTimeout fires from the entry's timer. If the entry is still
// pending it is removed and rejected with RequestTimeoutError; a
// response that raced the timer and already settled it is a no-op.
func (t *Tracker) OnTimeout(mid uint16) {
	t.mu.Lock()
	entry, ok := t.pending[mid]
	if !ok {
		t.mu.Unlock()
		return
	}
	delete(t.pending, mid)
	t.mu.Unlock()

	elapsed := time.Since(entry.sentAt).Milliseconds()
	t.settle(entry, Result{Err: &RequestTimeoutError{Method: entry.method, URI: entry.uri, ElapsedMS: elapsed}})
	t.observer.Record("request_timeout", entry.uri)
}

// OnDisconnect rejects every pending waiter with ErrDisconnected and
// clears the map; no waiter survives a disconnect.
func (t *Tracker) OnDisconnect() {
	t.mu.Lock()
	entries := make([]*pendingEntry, 0, len(t.pending))
	for mid, entry := range t.pending {
		entries = append(entries, entry)
		delete(t.pending, mid)
	}
	t.mu.Unlock()

	for _, entry := range entries {
		entry.timer.Stop()
		t.settle(entry, Result{Err: ErrDisconnected})
	}
	t.observer.Record("disconnect_drain", fmt.Sprintf("count=%d", len(entries)))
}

// settle delivers result exactly once; a double-settle is a
// programming error the channel's buffer-of-1 would otherwise mask as
// a silent drop, so callers must only reach settle via one of the
// three exported entry points above, each of which removes the entry
// from the map before calling it.
func (t *Tracker) settle(entry *pendingEntry, result Result) {
	if entry.settled {
		return
	}
	entry.settled = true
	entry.waiter <- result
}

// Pending returns the count of outstanding requests, for tests and
// health reporting.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
