// Package eventbus fans out connection lifecycle events to other
// processes over Redis pub/sub. Announcement, trace, pong and system
// frames are not published here; the device connection only logs
// them. It is optional — a nil *Client or a disabled config simply
// skips publishing.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	cfgpkg "github.com/tsnbridge/veloctl/internal/config"
)

// Client wraps a go-redis client bound to one pub/sub channel.
type Client struct {
	*redis.Client
	channel string
}

// NewClient dials Redis per cfg and verifies connectivity with a
// bounded ping, mirroring the connect-then-ping pattern used for
// other optional backing stores in this codebase.
func NewClient(cfg cfgpkg.EventBusConfig) (*Client, error) {
	if !cfg.Enable {
		return nil, fmt.Errorf("eventbus is not enabled")
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("eventbus ping failed: %w", err)
	}

	channel := cfg.Channel
	if channel == "" {
		channel = "veloctl.events"
	}
	return &Client{Client: rdb, channel: channel}, nil
}

func (c *Client) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

// HealthCheck pings the broker.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Stats returns the underlying connection pool statistics.
func (c *Client) Stats() *redis.PoolStats {
	return c.PoolStats()
}

// Message is the wire shape published on the channel.
type Message struct {
	Kind string    `json:"kind"`
	Path string    `json:"path"`
	At   time.Time `json:"at"`
	Err  string    `json:"err,omitempty"`
}

// Publish serializes msg and publishes it on the configured channel.
func (c *Client) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return c.Client.Publish(ctx, c.channel, data).Err()
}
