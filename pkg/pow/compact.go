// Package pow implements proof-of-work target and work arithmetic.
package pow

import (
	"errors"
	"fmt"
)

// Compact target errors.
var (
	ErrNegativeCompact = errors.New("compact target encodes a negative value")
	ErrCompactOverflow = errors.New("compact target overflows 256 bits")
)

// CompactTarget is the 32-bit floating-point-like encoding of a 256-bit
// proof-of-work target: an 8-bit exponent, a sign bit, and a 23-bit
// mantissa. The exponent is the byte length of the full value; the
// mantissa holds its three most significant bytes.
type CompactTarget uint32

// MaxCompact is the largest valid compact target on the main network,
// corresponding to the genesis difficulty.
const MaxCompact CompactTarget = 0x1d00ffff

// Expand decodes the compact form into a full 256-bit target.
//
// It fails when the sign bit is set with a nonzero mantissa, when the
// exponent exceeds 34, or when the mantissa carries bits that would shift
// beyond 256 bits for the given exponent.
func (c CompactTarget) Expand() (Target, error) {
	exponent := uint32(c >> 24)
	mantissa := uint32(c) & 0x007fffff

	if mantissa != 0 && uint32(c)&0x00800000 != 0 {
		return Target{}, fmt.Errorf("%w: %08x", ErrNegativeCompact, uint32(c))
	}
	if exponent > 34 {
		return Target{}, fmt.Errorf("%w: %08x", ErrCompactOverflow, uint32(c))
	}
	if mantissa != 0 {
		if (exponent == 34 && mantissa > 0xff) ||
			(exponent == 33 && mantissa > 0xffff) {
			return Target{}, fmt.Errorf("%w: %08x", ErrCompactOverflow, uint32(c))
		}
	}

	var t Target
	if exponent <= 3 {
		t.v.SetUint64(uint64(mantissa >> (8 * (3 - exponent))))
		return t, nil
	}
	t.v.SetUint64(uint64(mantissa))
	t.v.Lsh(&t.v, uint(8*(exponent-3)))
	return t, nil
}

// Compress encodes a full 256-bit target into compact form. The
// round-trip Compress(Expand(c)) == c holds for every valid c in the
// normalized form Compress itself produces; a valid but non-normalized
// encoding (0x04001234, or a zero mantissa with a nonzero exponent) comes
// back normalized (0x03123400, or 0).
func Compress(t Target) CompactTarget {
	size := uint32((t.v.BitLen() + 7) / 8)

	var compact uint32
	if size <= 3 {
		compact = uint32(t.v.Uint64() << (8 * (3 - size)))
	} else {
		var shifted Target
		shifted.v.Rsh(&t.v, uint(8*(size-3)))
		compact = uint32(shifted.v.Uint64())
	}

	// The mantissa is signed; if the high bit is set, shift down one byte
	// and bump the exponent.
	if compact&0x00800000 != 0 {
		compact >>= 8
		size++
	}
	return CompactTarget(compact | size<<24)
}
