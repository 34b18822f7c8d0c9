package eventbus

import (
	"encoding/json"
	"testing"
	"time"

	cfgpkg "github.com/tsnbridge/veloctl/internal/config"
)

func TestMessageRoundTripsThroughJSON(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := Message{Kind: "connected", Path: "/dev/ttyACM0", At: at}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != msg {
		t.Fatalf("got %+v, want %+v", got, msg)
	}
}

func TestMessageOmitsEmptyErr(t *testing.T) {
	msg := Message{Kind: "connected", Path: "/dev/ttyACM0", At: time.Now()}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["err"]; ok {
		t.Fatal("expected err field to be omitted when empty")
	}
}

func TestNewClientRejectsDisabledConfig(t *testing.T) {
	_, err := NewClient(cfgpkg.EventBusConfig{Enable: false})
	if err == nil {
		t.Fatal("expected disabled config to fail")
	}
}
