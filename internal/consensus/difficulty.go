package consensus

import (
	"fmt"
	"time"

	"github.com/tobysharp/hornet/config"
	"github.com/tobysharp/hornet/pkg/pow"
)

// RequiredBits computes the compact target a header at the given height
// must declare.
//
// Away from a retarget boundary the parent's bits carry forward, except
// on networks with the min-difficulty concession where a block mined
// after a long gap may declare the proof-of-work limit. At a boundary
// the new target is parent_target x period/timespan with the measured
// period clamped to [timespan/4, timespan*4] and the result capped at
// the proof-of-work limit.
func RequiredBits(p *config.Params, height int32, parentBits pow.CompactTarget,
	parentTimestamp, headerTimestamp uint32, view HeaderAncestryView) (pow.CompactTarget, error) {

	if p.NoRetargeting {
		return parentBits, nil
	}

	if !p.IsRetargetHeight(height) {
		// Min-difficulty concession: a header arriving more than two
		// spacing intervals after its parent may use the limit. The
		// full difficulty resumes with the next header. Never active on
		// the main network.
		if Enabled(p, BIP94, height) {
			gap := uint32(2 * p.TargetSpacing / time.Second)
			if headerTimestamp > parentTimestamp+gap {
				return p.PowLimitBits, nil
			}
		}
		return parentBits, nil
	}

	firstTimestamp, ok := view.TimestampAt(height - p.RetargetInterval)
	if !ok {
		return 0, fmt.Errorf("retarget at height %d: ancestor %d not visible",
			height, height-p.RetargetInterval)
	}

	timespan := int64(p.TargetTimespan / time.Second)
	period := int64(parentTimestamp) - int64(firstTimestamp)
	if period < timespan/4 {
		period = timespan / 4
	}
	if period > timespan*4 {
		period = timespan * 4
	}

	parentTarget, err := parentBits.Expand()
	if err != nil {
		return 0, fmt.Errorf("parent bits %08x: %w", uint32(parentBits), err)
	}
	next := parentTarget.MulDivClamp(uint64(period), uint64(timespan), p.PowLimit())
	return pow.Compress(next), nil
}
