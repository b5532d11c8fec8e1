package mobi

import (
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeVWI(t *testing.T) {
	t.Parallel()
	tests := []struct {
		n    int
		want []byte
	}{
		{0, []byte{0x80}},
		{1, []byte{0x81}},
		{127, []byte{0xFF}},
		{128, []byte{0x01, 0x80}},
		{300, []byte{0x02, 0xAC}},
		{16384, []byte{0x01, 0x00, 0x80}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EncodeVWI(tt.n), "n=%d", tt.n)
	}
}

func TestVWIRoundTrip(t *testing.T) {
	t.Parallel()
	for _, n := range []int{0, 1, 5, 127, 128, 255, 4096, 65535, 1 << 20, 1<<28 - 1} {
		enc := EncodeVWI(n)

		// High bit only on the final byte.
		for i, b := range enc[:len(enc)-1] {
			assert.Zero(t, b&0x80, "n=%d byte %d", n, i)
		}
		assert.NotZero(t, enc[len(enc)-1]&0x80, "n=%d last byte", n)

		// Width law: one base-128 digit per 7 bits.
		want := (bits.Len(uint(n)) + 6) / 7
		if want < 1 {
			want = 1
		}
		assert.Len(t, enc, want, "n=%d", n)

		dec, consumed := DecodeVWI(enc)
		require.Equal(t, len(enc), consumed, "n=%d", n)
		assert.Equal(t, n, dec, "n=%d", n)
	}
}

func TestDecodeVWIUnterminated(t *testing.T) {
	t.Parallel()
	_, consumed := DecodeVWI([]byte{0x01, 0x02})
	assert.Zero(t, consumed)
}
