package pow

import "github.com/holiman/uint256"

// Work is cumulative proof of work: the expected number of hashes needed
// to produce a chain, summed per block.
type Work struct {
	v uint256.Int
}

var one = uint256.NewInt(1)

// CalcWork returns the work represented by one block at the given target:
// 2^256 / (target + 1).
//
// 2^256 does not fit in 256 bits, so the division is computed as
// (~target)/(target+1) + 1, which is algebraically identical.
func CalcWork(t Target) Work {
	var denom uint256.Int
	if _, overflow := denom.AddOverflow(&t.v, one); overflow {
		// target == 2^256 - 1: every hash qualifies.
		var w Work
		w.v.SetOne()
		return w
	}
	var w Work
	w.v.Not(&t.v)
	w.v.Div(&w.v, &denom)
	w.v.Add(&w.v, one)
	return w
}

// WorkFromUint64 builds a work value from a small integer.
func WorkFromUint64(u uint64) Work {
	var w Work
	w.v.SetUint64(u)
	return w
}

// WorkFromBits is CalcWork over a compact target. Invalid bits carry zero
// work.
func WorkFromBits(bits CompactTarget) Work {
	t, err := bits.Expand()
	if err != nil {
		return Work{}
	}
	return CalcWork(t)
}

// Add returns w + other.
func (w Work) Add(other Work) Work {
	var out Work
	out.v.Add(&w.v, &other.v)
	return out
}

// Sub returns w - other. The result saturates at zero rather than
// wrapping; cumulative work along a branch is monotonic so underflow is a
// caller bug.
func (w Work) Sub(other Work) Work {
	if w.v.Cmp(&other.v) < 0 {
		return Work{}
	}
	var out Work
	out.v.Sub(&w.v, &other.v)
	return out
}

// Cmp compares two cumulative work values. Returns -1, 0, or 1.
func (w Work) Cmp(other Work) int {
	return w.v.Cmp(&other.v)
}

// IsZero returns true for zero work.
func (w Work) IsZero() bool {
	return w.v.IsZero()
}

// Uint64 returns the work as a uint64, saturating at the maximum. For
// logging and tests.
func (w Work) Uint64() uint64 {
	if !w.v.IsUint64() {
		return ^uint64(0)
	}
	return w.v.Uint64()
}

// String formats the work as a decimal string.
func (w Work) String() string {
	return w.v.Dec()
}
