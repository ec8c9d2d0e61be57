// Package sourcemap implements the Source Map v3 mapping engine: the Base64
// VLQ codec, the segment codec with its delta state, and the mapping table
// used to build, decode and serialize maps.
//
// The format is described at https://sourcemaps.info/spec.html
package sourcemap

import (
	"math"
	"strings"
)

// Base64 alphabet used for VLQ encoding in source maps
const base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// base64Values is a lookup table for decoding base64 characters
var base64Values [256]int8

func init() {
	for i := range base64Values {
		base64Values[i] = -1
	}
	for i := 0; i < len(base64Alphabet); i++ {
		base64Values[base64Alphabet[i]] = int8(i)
	}
}

// VLQ constants
const (
	vlqBaseShift       = 5
	vlqBase            = 1 << vlqBaseShift // 32
	vlqBaseMask        = vlqBase - 1       // 31 (0x1F)
	vlqContinuationBit = vlqBase           // 32 (0x20)
	vlqSignBit         = 1

	// Seven digits carry 35 bits, enough for any 32-bit payload.
	vlqMaxShift = 7 * vlqBaseShift
)

// Range of values a VLQ may carry: a 32-bit magnitude plus the sign bit.
const (
	MaxVLQ = 1<<31 - 1
	MinVLQ = -MaxVLQ
)

// CheckVLQ reports an ErrInvalidEncoding error when value cannot be carried
// by a VLQ.
func CheckVLQ(value int) error {
	if value > MaxVLQ || value < MinVLQ {
		return newError(CodeInvalidEncoding, -1, "%d does not fit in a 32-bit VLQ", value)
	}
	return nil
}

// IsBase64Digit reports whether c belongs to the VLQ alphabet.
func IsBase64Digit(c byte) bool {
	return base64Values[c] >= 0
}

// EncodeVLQ encodes a signed integer as a VLQ base64 string.
func EncodeVLQ(value int) string {
	var buf [12]byte
	return string(AppendVLQ(buf[:0], value))
}

// AppendVLQ appends the VLQ encoding of value to dst. Values outside
// [MinVLQ, MaxVLQ] are clamped; use CheckVLQ to reject them instead.
func AppendVLQ(dst []byte, value int) []byte {
	switch {
	case value == 0:
		return append(dst, 'A')
	case value == 1:
		return append(dst, 'C')
	case value > MaxVLQ:
		value = MaxVLQ
	case value < MinVLQ:
		value = MinVLQ
	}

	// Sign goes to bit 0:
	// - Positive numbers: value << 1
	// - Negative numbers: ((-value) << 1) | 1
	var vlq uint64
	if value < 0 {
		vlq = uint64(-value)<<1 | vlqSignBit
	} else {
		vlq = uint64(value) << 1
	}

	for {
		digit := vlq & vlqBaseMask
		vlq >>= vlqBaseShift
		if vlq > 0 {
			digit |= vlqContinuationBit
		}
		dst = append(dst, base64Alphabet[digit])
		if vlq == 0 {
			return dst
		}
	}
}

// DecodeVLQ decodes one VLQ value from s starting at start. It returns the
// value and the index immediately after the consumed digits.
func DecodeVLQ(s string, start int) (value, next int, err error) {
	if start < 0 || start >= len(s) {
		return 0, start, newError(CodeInvalidEncoding, start, "unexpected end of VLQ data")
	}

	var vlq uint64
	var shift uint
	for i := start; i < len(s); i++ {
		digit := base64Values[s[i]]
		if digit < 0 {
			return 0, i, newError(CodeInvalidEncoding, i, "invalid base64 character %q", s[i])
		}
		if shift >= vlqMaxShift {
			return 0, i, newError(CodeInvalidEncoding, i, "VLQ value exceeds 32 bits")
		}

		vlq |= uint64(digit&vlqBaseMask) << shift
		shift += vlqBaseShift

		if digit&vlqContinuationBit == 0 {
			if vlq > math.MaxUint32 {
				return 0, i, newError(CodeInvalidEncoding, start, "VLQ value exceeds 32 bits")
			}
			negative := vlq&vlqSignBit != 0
			vlq >>= 1
			if negative {
				return -int(vlq), i + 1, nil
			}
			return int(vlq), i + 1, nil
		}
	}

	// Continuation bit set on the last digit.
	return 0, len(s), newError(CodeInvalidEncoding, len(s), "truncated VLQ value")
}

// EncodeVLQSequence encodes multiple values as a VLQ sequence. Like
// AppendVLQ it clamps values out of range.
func EncodeVLQSequence(values []int) string {
	var buf strings.Builder
	var scratch [12]byte
	for _, v := range values {
		buf.Write(AppendVLQ(scratch[:0], v))
	}
	return buf.String()
}

// DecodeVLQSequence decodes a VLQ sequence expecting exactly n values.
func DecodeVLQSequence(input string, n int) ([]int, error) {
	values := make([]int, 0, n)
	pos := 0
	for i := 0; i < n; i++ {
		value, next, err := DecodeVLQ(input, pos)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
		pos = next
	}
	if pos != len(input) {
		return nil, newError(CodeInvalidEncoding, pos, "trailing data after %d VLQ values", n)
	}
	return values, nil
}
