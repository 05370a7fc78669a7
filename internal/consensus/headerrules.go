package consensus

import (
	"fmt"

	"github.com/tobysharp/hornet/config"
	"github.com/tobysharp/hornet/pkg/block"
	"github.com/tobysharp/hornet/pkg/pow"
	"github.com/tobysharp/hornet/pkg/types"
)

// MaxFutureBlockTime is how far ahead of wall-clock time a header
// timestamp may run.
const MaxFutureBlockTime = 2 * 60 * 60

// HeaderValidationContext carries everything a header rule may inspect:
// the candidate, its resolved parent, an ancestry view, and the wall
// clock.
type HeaderValidationContext struct {
	Header          *block.Header
	Height          int32
	ParentHash      types.Hash
	ParentBits      pow.CompactTarget
	ParentTimestamp uint32
	View            HeaderAncestryView
	Now             int64
	Params          *config.Params
}

// HeaderRule is one ordered entry of the header ruleset. A rule with a
// deployment attached is skipped until that deployment activates at the
// candidate height.
type HeaderRule struct {
	Name  string
	BIP   BIP
	Check func(*HeaderValidationContext) error
}

// HeaderRules returns the fixed, ordered header ruleset. Evaluation
// short-circuits at the first failure.
func HeaderRules() []HeaderRule {
	return []HeaderRule{
		{Name: "previous-hash", Check: checkPreviousHash},
		{Name: "proof-of-work", Check: checkProofOfWork},
		{Name: "difficulty-transition", Check: checkDifficultyTransition},
		{Name: "median-time-past", Check: checkMedianTimePast},
		{Name: "timestamp-current", Check: checkTimestampCurrent},
		{Name: "version-bip34", BIP: BIP34, Check: versionFloor(2)},
		{Name: "version-bip66", BIP: BIP66, Check: versionFloor(3)},
		{Name: "version-bip65", BIP: BIP65, Check: versionFloor(4)},
	}
}

// ValidateHeader runs the header ruleset in order, skipping rules whose
// deployment is not active at the candidate height.
func ValidateHeader(hctx *HeaderValidationContext) error {
	for _, rule := range HeaderRules() {
		if rule.BIP != BIPNone && !Enabled(hctx.Params, rule.BIP, hctx.Height) {
			continue
		}
		if err := rule.Check(hctx); err != nil {
			return err
		}
	}
	return nil
}

func checkPreviousHash(hctx *HeaderValidationContext) error {
	if hctx.Header.PrevBlock != hctx.ParentHash {
		return fmt.Errorf("%w: header links %s, resolved parent %s",
			ErrParentNotFound, hctx.Header.PrevBlock, hctx.ParentHash)
	}
	return nil
}

func checkProofOfWork(hctx *HeaderValidationContext) error {
	target, err := hctx.Header.Bits.Expand()
	if err != nil {
		return fmt.Errorf("%w: bits %08x: %v", ErrInvalidProofOfWork, uint32(hctx.Header.Bits), err)
	}
	if target.IsZero() || target.Cmp(hctx.Params.PowLimit()) > 0 {
		return fmt.Errorf("%w: target outside valid range", ErrInvalidProofOfWork)
	}
	if !target.MetBy(hctx.Header.Hash()) {
		return fmt.Errorf("%w: hash %s above target", ErrInvalidProofOfWork, hctx.Header.Hash())
	}
	return nil
}

func checkDifficultyTransition(hctx *HeaderValidationContext) error {
	want, err := RequiredBits(hctx.Params, hctx.Height, hctx.ParentBits,
		hctx.ParentTimestamp, hctx.Header.Timestamp, hctx.View)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadDifficultyTransition, err)
	}
	if hctx.Header.Bits != want {
		return fmt.Errorf("%w: declared %08x, want %08x",
			ErrBadDifficultyTransition, uint32(hctx.Header.Bits), uint32(want))
	}
	return nil
}

func checkMedianTimePast(hctx *HeaderValidationContext) error {
	mtp := MedianTimePast(hctx.View)
	if hctx.Header.Timestamp <= mtp {
		return fmt.Errorf("%w: timestamp %d, median time past %d",
			ErrTimestampTooEarly, hctx.Header.Timestamp, mtp)
	}
	return nil
}

func checkTimestampCurrent(hctx *HeaderValidationContext) error {
	limit := hctx.Now + MaxFutureBlockTime
	if int64(hctx.Header.Timestamp) > limit {
		return fmt.Errorf("%w: timestamp %d, limit %d",
			ErrTimestampTooLate, hctx.Header.Timestamp, limit)
	}
	return nil
}

// versionFloor retires all versions below min once the attached
// deployment activates.
func versionFloor(min int32) func(*HeaderValidationContext) error {
	return func(hctx *HeaderValidationContext) error {
		if hctx.Header.Version < min {
			return fmt.Errorf("%w: version %d below %d at height %d",
				ErrBadVersion, hctx.Header.Version, min, hctx.Height)
		}
		return nil
	}
}
