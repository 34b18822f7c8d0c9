package reassemble

import (
	"testing"

	"github.com/tsnbridge/veloctl/internal/mup1"
)

type recordingSink struct {
	coap    [][]byte
	dropped []string
	pongs   int
}

func (s *recordingSink) OnCoAP(payload []byte)   { s.coap = append(s.coap, payload) }
func (s *recordingSink) OnAnnounce(string)       {}
func (s *recordingSink) OnTrace(string)          {}
func (s *recordingSink) OnPong()                 { s.pongs++ }
func (s *recordingSink) OnSystem(string)         {}
func (s *recordingSink) OnFrameDropped(r string) { s.dropped = append(s.dropped, r) }

func mustEncode(t *testing.T, typ byte, payload []byte) []byte {
	t.Helper()
	b, err := mup1.Encode(typ, payload)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return b
}

func TestFeedWholeFrame(t *testing.T) {
	payload := []byte{0x60, 0x45, 0x12, 0x34}
	frame := mustEncode(t, mup1.TypeCoAP, payload)

	sink := &recordingSink{}
	r := New(sink)
	r.Feed(frame)

	if len(sink.coap) != 1 {
		t.Fatalf("coap dispatches = %d, want 1", len(sink.coap))
	}
	if string(sink.coap[0]) != string(payload) {
		t.Fatalf("payload = % X, want % X", sink.coap[0], payload)
	}
}

// TestScenarioS6ArbitraryChunking splits a valid CoAP-bearing frame
// into chunks of sizes (1, 7, 20, remaining) and checks the dispatched
// bytes match feeding the whole frame at once.
func TestScenarioS6ArbitraryChunking(t *testing.T) {
	payload := make([]byte, 50)
	for i := range payload {
		payload[i] = byte(i)
	}
	frame := mustEncode(t, mup1.TypeCoAP, payload)

	whole := &recordingSink{}
	New(whole).Feed(frame)
	if len(whole.coap) != 1 {
		t.Fatalf("whole-frame dispatches = %d, want 1", len(whole.coap))
	}

	chunked := &recordingSink{}
	r := New(chunked)
	sizes := []int{1, 7, 20}
	off := 0
	for _, n := range sizes {
		r.Feed(frame[off : off+n])
		off += n
	}
	r.Feed(frame[off:])

	if len(chunked.coap) != 1 {
		t.Fatalf("chunked dispatches = %d, want 1", len(chunked.coap))
	}
	if string(chunked.coap[0]) != string(whole.coap[0]) {
		t.Fatalf("chunked payload = % X, want % X", chunked.coap[0], whole.coap[0])
	}
}

func TestFeedByteAtATime(t *testing.T) {
	frame := mustEncode(t, mup1.TypePing, []byte("hi"))
	sink := &recordingSink{}
	r := New(sink)
	for _, b := range frame {
		r.Feed([]byte{b})
	}
	if sink.pongs != 1 {
		t.Fatalf("pongs = %d, want 1", sink.pongs)
	}
}

func TestGarbageBeforeSofDiscarded(t *testing.T) {
	frame := mustEncode(t, mup1.TypeAnnounce, []byte("hello"))
	garbage := []byte{0x01, 0x02, 0x03}

	sink := &recordingSink{}
	r := New(sink)
	r.Feed(append(garbage, frame...))

	if len(sink.dropped) != 0 {
		t.Fatalf("unexpected drops: %v", sink.dropped)
	}
}

// TestEscapedTerminatorByteNotMistakenForEOF feeds a chunked stream
// whose payload contains raw 0x3C/0x3E/0x5C bytes, each wire-escaped
// by Encode. A raw byte scan for 0x3C would stop at the escaped
// marker instead of the real terminator; this checks the reassembler
// recovers the exact payload regardless.
func TestEscapedTerminatorByteNotMistakenForEOF(t *testing.T) {
	payload := []byte{0x3C, 0x41, 0x3E, 0x42, 0x5C, 0x43}
	frame := mustEncode(t, mup1.TypeCoAP, payload)

	whole := &recordingSink{}
	New(whole).Feed(frame)
	if len(whole.coap) != 1 {
		t.Fatalf("whole-frame dispatches = %d, want 1", len(whole.coap))
	}
	if string(whole.coap[0]) != string(payload) {
		t.Fatalf("whole payload = % X, want % X", whole.coap[0], payload)
	}

	chunked := &recordingSink{}
	r := New(chunked)
	for _, b := range frame {
		r.Feed([]byte{b})
	}
	if len(chunked.coap) != 1 {
		t.Fatalf("chunked dispatches = %d, want 1", len(chunked.coap))
	}
	if string(chunked.coap[0]) != string(payload) {
		t.Fatalf("chunked payload = % X, want % X", chunked.coap[0], payload)
	}
	if len(chunked.dropped) != 0 {
		t.Fatalf("unexpected drops: %v", chunked.dropped)
	}
}

func TestCorruptedChecksumDroppedButStreamContinues(t *testing.T) {
	good := mustEncode(t, mup1.TypeTrace, []byte("ok"))
	bad := mustEncode(t, mup1.TypeTrace, []byte("bad"))
	bad[len(bad)-1] ^= 0xFF // corrupt one checksum hex digit

	sink := &recordingSink{}
	r := New(sink)
	r.Feed(bad)
	r.Feed(good)

	if len(sink.dropped) != 1 {
		t.Fatalf("dropped = %d, want 1", len(sink.dropped))
	}
}
