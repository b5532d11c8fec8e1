package mobi

// EncodeVWI encodes a non-negative integer as a variable-width integer:
// base-128 digits in big-endian order, with the high bit (0x80) set on the
// final byte only. Zero encodes as a single 0x80.
func EncodeVWI(n int) []byte {
	if n <= 0 {
		return []byte{0x80}
	}
	var out []byte
	for n > 0 {
		out = append(out, byte(n&0x7F))
		n >>= 7
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	out[len(out)-1] |= 0x80
	return out
}

// DecodeVWI decodes a variable-width integer from the front of b and
// returns the value and the number of bytes consumed. Consumed is 0 when b
// holds no terminated VWI.
func DecodeVWI(b []byte) (value, consumed int) {
	for i, c := range b {
		value = value<<7 | int(c&0x7F)
		if c&0x80 != 0 {
			return value, i + 1
		}
	}
	return 0, 0
}
