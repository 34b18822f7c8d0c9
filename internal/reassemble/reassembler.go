// Package reassemble turns arbitrarily-chunked serial bytes into a
// sequence of complete MUP1 frames, mirroring the scratch-buffer
// stream decoders elsewhere in this codebase.
package reassemble

import (
	"bytes"

	"github.com/tsnbridge/veloctl/internal/mup1"
)

// defaultMaxScratch bounds unbounded accumulation when no SOF is ever
// found; the buffer is dropped and reset past this size.
const defaultMaxScratch = 64*1024 + 4096

// Sink receives dispatched events as frames complete. Announcement,
// trace, pong, and system events are observable side channels; CoAP
// carries the request/response correlation payload.
type Sink interface {
	OnCoAP(payload []byte)
	OnAnnounce(text string)
	OnTrace(text string)
	OnPong()
	OnSystem(text string)
	OnFrameDropped(reason string)
}

// Reassembler holds the append-only scratch buffer for one serial
// connection. It is not safe for concurrent use; callers own a single
// reader goroutine per connection per the one-actor-per-device model.
type Reassembler struct {
	scratch    []byte
	maxScratch int
	sink       Sink
}

// New constructs a Reassembler delivering decoded frames to sink.
func New(sink Sink) *Reassembler {
	return &Reassembler{maxScratch: defaultMaxScratch, sink: sink}
}

// Feed appends chunk to the scratch buffer and dispatches every
// complete frame it can extract. It never returns an error — framing
// failures are reported to the sink and otherwise absorbed, per the
// core's rule that reassembly faults must not kill the connection.
func (r *Reassembler) Feed(chunk []byte) {
	r.scratch = append(r.scratch, chunk...)

	for {
		sofAt := bytes.IndexByte(r.scratch, 0x3E)
		if sofAt < 0 {
			if len(r.scratch) > r.maxScratch {
				r.sink.OnFrameDropped("scratch buffer exceeded cap with no SOF")
				r.scratch = r.scratch[:0]
			}
			return
		}
		if sofAt > 0 {
			r.scratch = r.scratch[sofAt:]
		}

		if len(r.scratch) < 8 {
			return
		}

		eofAt := findEOF(r.scratch, 2)
		if eofAt < 0 {
			if len(r.scratch) > r.maxScratch {
				r.sink.OnFrameDropped("scratch buffer exceeded cap with no EOF")
				r.scratch = r.scratch[:0]
			}
			return
		}

		checksumStart := eofAt + 1
		if checksumStart < len(r.scratch) && r.scratch[checksumStart] == 0x3C {
			checksumStart++
		} else if checksumStart >= len(r.scratch) {
			return
		}
		frameEnd := checksumStart + 4
		if len(r.scratch) < frameEnd {
			return
		}

		candidate := r.scratch[:frameEnd]
		r.scratch = r.scratch[frameEnd:]
		r.dispatch(candidate)
	}
}

// findEOF returns the index of the first unescaped 0x3C at or after
// from, or -1 if none is present yet. It walks escape sequences the
// same way mup1.Decode does: an 0x5C marker always consumes the byte
// after it, so an escaped 0x3C (wire sequence 0x5C 0x3C) never counts
// as the frame terminator. A trailing 0x5C with no following byte yet
// means the buffer is incomplete, so that also reports -1 rather than
// treating the marker itself as data.
func findEOF(b []byte, from int) int {
	i := from
	for i < len(b) {
		c := b[i]
		if c == 0x5C {
			if i+1 >= len(b) {
				return -1
			}
			i += 2
			continue
		}
		if c == 0x3C {
			return i
		}
		i++
	}
	return -1
}

func (r *Reassembler) dispatch(candidate []byte) {
	frame, err := mup1.Decode(candidate)
	if err != nil {
		r.sink.OnFrameDropped(err.Error())
		return
	}
	if !frame.ChecksumValid {
		r.sink.OnFrameDropped("checksum mismatch")
		return
	}

	switch frame.Type {
	case mup1.TypeCoAP:
		r.sink.OnCoAP(frame.Payload)
	case mup1.TypeAnnounce:
		r.sink.OnAnnounce(string(frame.Payload))
	case mup1.TypeTrace:
		r.sink.OnTrace(string(frame.Payload))
	case mup1.TypePing:
		r.sink.OnPong()
	case mup1.TypeSystem:
		r.sink.OnSystem(string(frame.Payload))
	}
}
