package coap

import "github.com/tsnbridge/veloctl/internal/cbor"

// Parse decodes a raw CoAP datagram (the payload already extracted
// from its MUP1 frame) into a Message. The header's TKL nibble (RFC
// 7252 §3) gives the token length in 0-8 bytes; those bytes are
// consumed before options begin, though this core never reads Token
// for correlation (message IDs are the sole correlation key). Payload
// holds the raw bytes after the 0xFF marker; Parse does not decode
// them — DecodedPayload does that on demand and reports ok=false
// instead of failing when they are not valid CBOR.
func Parse(b []byte) (Message, error) {
	if len(b) < 4 {
		return Message{}, ErrMessageTooShort
	}

	tkl := int(b[0] & 0x0F)
	if 4+tkl > len(b) {
		return Message{}, ErrMessageTooShort
	}

	msg := Message{
		Version:   b[0] >> 6,
		Type:      (b[0] >> 4) & 0x3,
		Code:      b[1],
		MessageID: uint16(b[2])<<8 | uint16(b[3]),
	}
	if tkl > 0 {
		msg.Token = b[4 : 4+tkl]
	}
	msg.CodeClass = msg.Code >> 5
	msg.CodeName = codeName(msg.Code)

	opts, off := decodeOptions(b, 4+tkl)
	msg.Options = opts

	if off < len(b) && b[off] == 0xFF {
		off++
	}
	if off < len(b) {
		msg.Payload = b[off:]
	}
	return msg, nil
}

// DecodedPayload returns the CBOR-decoded form of msg.Payload, or
// ok=false if the payload is empty or does not parse as CBOR — callers
// fall back to the raw bytes in that case rather than treating it as
// fatal.
func DecodedPayload(msg Message) (cbor.Value, bool) {
	if len(msg.Payload) == 0 {
		return cbor.Value{}, false
	}
	v, err := cbor.Decode(msg.Payload)
	if err != nil {
		return cbor.Value{}, false
	}
	return v, true
}

// AsError returns a *ResponseError if msg's code class indicates a
// client (4.xx) or server (5.xx) error response, else nil.
func AsError(msg Message) error {
	if msg.CodeClass < 4 {
		return nil
	}
	var payload any
	if v, ok := DecodedPayload(msg); ok {
		payload = v
	} else {
		payload = msg.Payload
	}
	return &ResponseError{Code: msg.Code, CodeName: msg.CodeName, Payload: payload}
}
