package coap

import "errors"

var (
	// ErrMessageTooShort means the candidate datagram is shorter than
	// the fixed 4-byte header.
	ErrMessageTooShort = errors.New("coap: message too short")
	// ErrCborDecodeFailed is never returned by Parse itself — Parse
	// tolerates undecodable payloads by falling back to raw bytes. It
	// is exported for callers that want to distinguish "decoded" from
	// "carried opaque" after the fact.
	ErrCborDecodeFailed = errors.New("coap: cbor decode failed")
)

// ResponseError wraps a non-2.xx CoAP response so callers can branch
// on CodeClass without re-deriving it from the raw code byte.
type ResponseError struct {
	Code     byte
	CodeName string
	Payload  any
}

func (e *ResponseError) Error() string {
	return "coap: response " + e.CodeName
}
