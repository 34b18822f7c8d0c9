// Package cbor wraps github.com/fxamacker/cbor/v2 behind a small,
// dynamically-typed Value tree so callers that only know YANG paths
// and not Go types can walk CORECONF payloads without reflection.
package cbor

import (
	"github.com/fxamacker/cbor/v2"
)

// Kind identifies which variant of Value is populated.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindText
	KindBytes
	KindList
	KindMap
)

// Value is a tagged variant representing a decoded CBOR item:
// Null, Bool, Int, Float, Text, Bytes, List, or Map. Exactly one of
// the typed fields is meaningful, selected by Kind. Map keys are text
// only: Decode drops map entries whose key is not a text string, and
// items of any other type (tags, for example) decode as Null.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Text  string
	Bytes []byte
	List  []Value
	Map   map[string]Value
}

// Encode serializes v via CBOR, the content format CORECONF carries
// over CoAP (RFC 9254 / RFC 8949). It is the one external black-box
// dependency this module assumes per the core's scope.
func Encode(v any) ([]byte, error) {
	return cbor.Marshal(v)
}

// Decode parses raw CBOR bytes into the dynamically-typed Value tree.
func Decode(b []byte) (Value, error) {
	var raw any
	if err := cbor.Unmarshal(b, &raw); err != nil {
		return Value{}, err
	}
	return fromAny(raw), nil
}

func fromAny(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Value{Kind: KindNull}
	case bool:
		return Value{Kind: KindBool, Bool: t}
	case uint64:
		return Value{Kind: KindInt, Int: int64(t)}
	case int64:
		return Value{Kind: KindInt, Int: t}
	case float32:
		return Value{Kind: KindFloat, Float: float64(t)}
	case float64:
		return Value{Kind: KindFloat, Float: t}
	case string:
		return Value{Kind: KindText, Text: t}
	case []byte:
		return Value{Kind: KindBytes, Bytes: t}
	case []any:
		list := make([]Value, len(t))
		for i, item := range t {
			list[i] = fromAny(item)
		}
		return Value{Kind: KindList, List: list}
	case map[any]any:
		m := make(map[string]Value, len(t))
		for k, v := range t {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			m[ks] = fromAny(v)
		}
		return Value{Kind: KindMap, Map: m}
	default:
		return Value{Kind: KindNull}
	}
}

// Field looks up a key in a map Value, returning ok=false if v is not
// a map or the key is absent — the tolerate-missing-keys behavior
// spec.md requires of YANG extraction.
func (v Value) Field(key string) (Value, bool) {
	if v.Kind != KindMap {
		return Value{}, false
	}
	fv, ok := v.Map[key]
	return fv, ok
}

// AsText returns the text value, or "" if v is not text.
func (v Value) AsText() string {
	if v.Kind != KindText {
		return ""
	}
	return v.Text
}

// AsList returns the list items, or nil if v is not a list.
func (v Value) AsList() []Value {
	if v.Kind != KindList {
		return nil
	}
	return v.List
}

// AsBool returns the bool value, or false if v is not a bool.
func (v Value) AsBool() bool {
	if v.Kind != KindBool {
		return false
	}
	return v.Bool
}
