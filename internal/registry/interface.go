package registry

import "time"

// EventKind identifies one connection lifecycle transition, recorded
// for the optional audit trail and live event bus.
type EventKind string

const (
	EventDiscovered   EventKind = "discovered"
	EventConnecting   EventKind = "connecting"
	EventConnected    EventKind = "connected"
	EventDisconnected EventKind = "disconnected"
	EventError        EventKind = "error"
)

// Event is one connection lifecycle transition.
type Event struct {
	Path string
	Kind EventKind
	At   time.Time
	Err  string
}

// EventSink receives lifecycle events as they happen. Publish runs
// synchronously on the registry's calling goroutine; the eventlog and
// eventbus sinks each bound their write with a 2-second timeout.
type EventSink interface {
	Publish(Event)
}

// EventSinkFunc adapts a plain function to EventSink.
type EventSinkFunc func(Event)

func (f EventSinkFunc) Publish(e Event) { f(e) }

// NopEventSink discards every event.
func NopEventSink() EventSink { return EventSinkFunc(func(Event) {}) }

// MultiSink fans a single event out to every sink in order.
func MultiSink(sinks ...EventSink) EventSink {
	return EventSinkFunc(func(e Event) {
		for _, s := range sinks {
			if s != nil {
				s.Publish(e)
			}
		}
	})
}
