package coap

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func TestParseResponse(t *testing.T) {
	payload, err := cbor.Marshal(map[string]any{
		"ietf-interfaces:interfaces": map[string]any{
			"interface": []any{
				map[string]any{"name": "eth0"},
			},
		},
	})
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}

	raw := []byte{0x60, 0x45, 0x12, 0x34, 0xFF}
	raw = append(raw, payload...)

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if msg.CodeClass != 2 {
		t.Fatalf("CodeClass = %d, want 2", msg.CodeClass)
	}
	if msg.CodeName != "2.05" {
		t.Fatalf("CodeName = %q, want 2.05", msg.CodeName)
	}
	if msg.MessageID != 0x1234 {
		t.Fatalf("MessageID = %04X, want 1234", msg.MessageID)
	}

	v, ok := DecodedPayload(msg)
	if !ok {
		t.Fatal("DecodedPayload: expected ok")
	}
	ifaces, ok := v.Field("ietf-interfaces:interfaces")
	if !ok {
		t.Fatal("missing ietf-interfaces:interfaces key")
	}
	ifaceList, ok := ifaces.Field("interface")
	if !ok {
		t.Fatal("missing interface key")
	}
	list := ifaceList.AsList()
	if len(list) != 1 {
		t.Fatalf("interface list len = %d, want 1", len(list))
	}
	name, ok := list[0].Field("name")
	if !ok || name.AsText() != "eth0" {
		t.Fatalf("name = %+v, want eth0", name)
	}
}

// TestParseSkipsNonZeroTokenBeforeOptions checks a response with a
// 2-byte token doesn't have its token bytes misread as an option TLV
// header.
func TestParseSkipsNonZeroTokenBeforeOptions(t *testing.T) {
	// header: version=1, type=ACK, TKL=2; code=2.05; MID=0x1234
	raw := []byte{0x62, 0x45, 0x12, 0x34, 0xAB, 0xCD}
	// Uri-Path option "c": delta=11, len=1
	raw = append(raw, byte(11<<4|1), 'c')

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if string(msg.Token) != "\xAB\xCD" {
		t.Fatalf("Token = % X, want AB CD", msg.Token)
	}
	if len(msg.Options) != 1 || msg.Options[0].Number != 11 || string(msg.Options[0].Value) != "c" {
		t.Fatalf("Options = %+v", msg.Options)
	}
}

func TestParseTooShort(t *testing.T) {
	if _, err := Parse([]byte{0x60, 0x45}); err != ErrMessageTooShort {
		t.Fatalf("err = %v, want ErrMessageTooShort", err)
	}
}

func TestAsErrorOnClientError(t *testing.T) {
	msg, err := Parse([]byte{0x60, 0x84, 0x00, 0x01}) // 4.04 Not Found
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	respErr := AsError(msg)
	if respErr == nil {
		t.Fatal("expected non-nil error for 4.xx response")
	}
	re, ok := respErr.(*ResponseError)
	if !ok || re.CodeName != "4.04" {
		t.Fatalf("respErr = %+v", respErr)
	}
}
