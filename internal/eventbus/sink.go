package eventbus

import (
	"context"
	"time"

	"github.com/tsnbridge/veloctl/internal/registry"
)

// Sink adapts a Client into a registry.EventSink. Publish errors are
// swallowed — the event bus is an observability side channel, not a
// correctness dependency, matching the core's rule that frame- and
// reassembler-layer faults are logged and absorbed rather than
// propagated.
type Sink struct {
	client *Client
	onErr  func(error)
}

func NewSink(client *Client, onErr func(error)) *Sink {
	return &Sink{client: client, onErr: onErr}
}

func (s *Sink) Publish(e registry.Event) {
	if s.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.client.Publish(ctx, Message{Kind: string(e.Kind), Path: e.Path, At: e.At, Err: e.Err})
	if err != nil && s.onErr != nil {
		s.onErr(err)
	}
}
