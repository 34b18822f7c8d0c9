package coap

// encodeOption appends one option's TLV header and value to buf,
// given the delta from the previously emitted option number. Base
// nibble values 0-12 are literal; 13 and 14 use one or two trailing
// extension bytes (value-13 and value-269 respectively) per RFC 7252
// §3.1.
func encodeOption(buf []byte, delta int, value []byte) []byte {
	deltaNibble, deltaExt := splitExtended(delta)
	lenNibble, lenExt := splitExtended(len(value))

	buf = append(buf, byte(deltaNibble<<4|lenNibble))
	buf = append(buf, deltaExt...)
	buf = append(buf, lenExt...)
	buf = append(buf, value...)
	return buf
}

// splitExtended returns the 4-bit nibble to emit for n (delta or
// length) and any extension bytes that must follow it.
func splitExtended(n int) (nibble int, ext []byte) {
	switch {
	case n < 13:
		return n, nil
	case n < 269:
		return 13, []byte{byte(n - 13)}
	default:
		v := n - 269
		return 14, []byte{byte(v >> 8), byte(v)}
	}
}

// decodeOptions parses the option sequence starting at b[off], up to
// (but not including) the payload marker or end of b. It returns the
// options found and the offset of the first byte after the last
// option (i.e. the payload marker position, or len(b)).
func decodeOptions(b []byte, off int) ([]Option, int) {
	var opts []Option
	num := 0
	for off < len(b) {
		if b[off] == 0xFF {
			break
		}
		header := b[off]
		off++
		deltaNibble := int(header >> 4)
		lenNibble := int(header & 0x0F)

		delta, off2, ok := readExtended(b, off, deltaNibble)
		if !ok {
			break
		}
		off = off2
		length, off3, ok := readExtended(b, off, lenNibble)
		if !ok {
			break
		}
		off = off3

		if off+length > len(b) {
			break
		}
		num += delta
		opts = append(opts, Option{Number: uint16(num), Value: b[off : off+length]})
		off += length
	}
	return opts, off
}

// readExtended resolves a base/13/14 nibble into its actual value,
// consuming 0, 1, or 2 extension bytes from b starting at off.
func readExtended(b []byte, off int, nibble int) (value int, newOff int, ok bool) {
	switch nibble {
	case 13:
		if off >= len(b) {
			return 0, off, false
		}
		return int(b[off]) + 13, off + 1, true
	case 14:
		if off+1 >= len(b) {
			return 0, off, false
		}
		return (int(b[off])<<8 | int(b[off+1])) + 269, off + 2, true
	default:
		return nibble, off, true
	}
}

// findOption returns the value of the first option with the given
// number, or nil, false if absent.
func findOption(opts []Option, number uint16) ([]byte, bool) {
	for _, o := range opts {
		if o.Number == number {
			return o.Value, true
		}
	}
	return nil, false
}
