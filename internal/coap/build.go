package coap

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMethod is a caller error: the requested method code is
// not one this core knows how to build. It surfaces synchronously at
// send time, never to a waiter.
var ErrUnknownMethod = errors.New("coap: unknown method")

var validMethods = map[byte]bool{
	MethodGET:    true,
	MethodPOST:   true,
	MethodPUT:    true,
	MethodDELETE: true,
	MethodFETCH:  true,
	MethodPATCH:  true,
	MethodIPATCH: true,
}

// BuildRequest is the shape Build consumes.
type BuildRequest struct {
	Method    byte
	URI       string
	Payload   []byte // already-serialized bytes (e.g. CBOR-encoded), or nil
	MessageID uint16
}

// Build serializes req into a Confirmable, no-token CoAP request.
// uri is split into slash-separated path segments (Uri-Path, option
// 11, repeated) and an optional '?'-delimited, '&'-separated query
// (Uri-Query, option 15, repeated); empty segments are discarded.
// Every request also carries Content-Format=260 (YANG-Data+CBOR),
// regardless of method or payload presence. Options are emitted in
// non-decreasing option-number order (repeated options share a
// number): all Uri-Path segments, then Content-Format, then all
// Uri-Query items.
func Build(req BuildRequest) ([]byte, error) {
	if !validMethods[req.Method] {
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownMethod, req.Method)
	}

	path, query := splitURI(req.URI)

	buf := make([]byte, 4, 4+len(req.Payload)+32)
	buf[0] = 1<<6 | TypeConfirmable<<4 | 0 // version=1, type=CON, TKL=0
	buf[1] = req.Method
	buf[2] = byte(req.MessageID >> 8)
	buf[3] = byte(req.MessageID)

	prevNum := 0
	for _, seg := range path {
		buf = encodeOption(buf, OptionUriPath-prevNum, []byte(seg))
		prevNum = OptionUriPath
	}

	buf = encodeOption(buf, OptionContentFormat-prevNum, []byte{ContentFormatYANGCBOR >> 8, ContentFormatYANGCBOR & 0xFF})
	prevNum = OptionContentFormat

	for _, q := range query {
		buf = encodeOption(buf, OptionUriQuery-prevNum, []byte(q))
		prevNum = OptionUriQuery
	}

	if req.Payload != nil {
		buf = append(buf, 0xFF)
		buf = append(buf, req.Payload...)
	}
	return buf, nil
}

// splitURI splits a URI of the form "path/segments?query&items" into
// non-empty path segments and non-empty query items.
func splitURI(uri string) (path []string, query []string) {
	p, q, hasQuery := strings.Cut(uri, "?")
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			path = append(path, seg)
		}
	}
	if hasQuery {
		for _, item := range strings.Split(q, "&") {
			if item != "" {
				query = append(query, item)
			}
		}
	}
	return path, query
}
