package pow

import (
	"github.com/holiman/uint256"

	"github.com/tobysharp/hornet/pkg/types"
)

// Target is a 256-bit unsigned proof-of-work target. A header satisfies
// proof of work when its hash, read as a 256-bit integer, is at most the
// target.
type Target struct {
	v uint256.Int
}

// TargetFromUint64 builds a target from a small integer. Test helper and
// retarget intermediate.
func TargetFromUint64(u uint64) Target {
	var t Target
	t.v.SetUint64(u)
	return t
}

// hashToInt interprets a hash (internal little-endian order) as a 256-bit
// big integer.
func hashToInt(h types.Hash) *uint256.Int {
	var be [types.HashSize]byte
	for i, b := range h {
		be[types.HashSize-1-i] = b
	}
	return new(uint256.Int).SetBytes(be[:])
}

// MetBy reports whether the given hash satisfies this target.
func (t Target) MetBy(h types.Hash) bool {
	return hashToInt(h).Cmp(&t.v) <= 0
}

// Cmp compares two targets. Returns -1, 0, or 1.
func (t Target) Cmp(other Target) int {
	return t.v.Cmp(&other.v)
}

// IsZero returns true for the zero target, which only the all-zero hash
// meets.
func (t Target) IsZero() bool {
	return t.v.IsZero()
}

// MulDivClamp returns t*mul/div, capped at limit. Used by the retarget
// computation; the product of a sub-limit target and a clamped timespan
// cannot overflow 256 bits.
func (t Target) MulDivClamp(mul, div uint64, limit Target) Target {
	var out Target
	out.v.Mul(&t.v, uint256.NewInt(mul))
	out.v.Div(&out.v, uint256.NewInt(div))
	if out.v.Cmp(&limit.v) > 0 {
		out = limit
	}
	return out
}

// Hex returns the target as a 64-digit hex string.
func (t Target) Hex() string {
	var buf [types.HashSize]byte
	t.v.WriteToArray32(&buf)
	const digits = "0123456789abcdef"
	out := make([]byte, 2*types.HashSize)
	for i, b := range buf {
		out[2*i] = digits[b>>4]
		out[2*i+1] = digits[b&0x0f]
	}
	return string(out)
}
