package device

import (
	"testing"
	"time"

	"github.com/tsnbridge/veloctl/internal/cbor"
)

func TestRequestFailsFastWhenNotConnected(t *testing.T) {
	c := New("/dev/ttyACM0", 0, nil)
	if c.State() != Closed {
		t.Fatalf("initial state = %v, want Closed", c.State())
	}
	if _, err := c.Request(1, "c?d=a", nil, time.Second); err != ErrNotConnected {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestDisconnectOnClosedIsNoop(t *testing.T) {
	c := New("/dev/ttyACM0", 0, nil)
	if err := c.Disconnect(); err != nil {
		t.Fatalf("Disconnect on Closed: %v", err)
	}
	if c.State() != Closed {
		t.Fatalf("state after no-op disconnect = %v", c.State())
	}
}

func TestDefaultBaudRate(t *testing.T) {
	c := New("/dev/ttyACM0", 0, nil)
	if c.baudRate != 115200 {
		t.Fatalf("baudRate = %d, want 115200", c.baudRate)
	}
}

func TestApplyInfoTreeToleratesMissingKeys(t *testing.T) {
	c := New("/dev/ttyACM0", 0, nil)
	c.info.Model = "existing-model"

	v, err := cbor.Decode(mustMarshal(t, map[string]any{
		"ietf-interfaces:interfaces": map[string]any{
			"interface": []any{
				map[string]any{"name": "eth0", "type": "ethernetCsmacd", "enabled": true, "oper-status": "up"},
				map[string]any{"name": "eth1", "type": "ethernetCsmacd", "enabled": false, "oper-status": "down"},
			},
		},
	}))
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	c.applyInfoTree(v)

	snap := c.Snapshot()
	if snap.Model != "existing-model" {
		t.Fatalf("Model = %q, want unchanged existing-model", snap.Model)
	}
	if len(snap.Interfaces) != 2 {
		t.Fatalf("Interfaces = %v", snap.Interfaces)
	}
	if snap.Interfaces[0] != (Interface{Name: "eth0", Type: "ethernetCsmacd", Enabled: true, OperStatus: "up"}) {
		t.Fatalf("Interfaces[0] = %+v", snap.Interfaces[0])
	}
	if snap.Interfaces[1] != (Interface{Name: "eth1", Type: "ethernetCsmacd", Enabled: false, OperStatus: "down"}) {
		t.Fatalf("Interfaces[1] = %+v", snap.Interfaces[1])
	}
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := cbor.Encode(v)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return b
}
