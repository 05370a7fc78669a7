// Package timechain maintains the block-header tree: a chaintree
// specialized for headers, a set of structurally mirrored sidecars, and
// the ancestry views consumed by the consensus rules.
package timechain

import (
	"github.com/tobysharp/hornet/internal/consensus"
	"github.com/tobysharp/hornet/pkg/block"
	"github.com/tobysharp/hornet/pkg/pow"
	"github.com/tobysharp/hornet/pkg/types"
)

// timestampWindow is the trailing-timestamp span kept per context, the
// same span the median-time-past rule inspects.
const timestampWindow = consensus.MedianTimestampWindow

// HeaderContext is the derived record kept alongside a header: its
// position, cumulative branch work, and the median time past of its
// ancestors.
type HeaderContext struct {
	Header *block.Header

	hash   types.Hash
	height int32
	work   pow.Work
	mtp    uint32

	// Trailing timestamps ending at this header, feeding the child's
	// median-time-past computation.
	window    [timestampWindow]uint32
	windowLen int
}

// GenesisContext builds the height-zero context for a genesis header.
func GenesisContext(genesis *block.Header) *HeaderContext {
	ctx := &HeaderContext{
		Header: genesis,
		hash:   genesis.Hash(),
		work:   pow.WorkFromBits(genesis.Bits),
	}
	ctx.window[0] = genesis.Timestamp
	ctx.windowLen = 1
	return ctx
}

// Height returns the header height.
func (c *HeaderContext) Height() int32 { return c.height }

// Hash returns the header hash.
func (c *HeaderContext) Hash() types.Hash { return c.hash }

// Work returns the cumulative work of the branch ending here.
func (c *HeaderContext) Work() pow.Work { return c.work }

// MedianTimePast returns the median timestamp of this header's trailing
// ancestors.
func (c *HeaderContext) MedianTimePast() uint32 { return c.mtp }

// Bits returns the header's compact target.
func (c *HeaderContext) Bits() pow.CompactTarget { return c.Header.Bits }

// Timestamp returns the header timestamp.
func (c *HeaderContext) Timestamp() uint32 { return c.Header.Timestamp }

// headerPolicy rebuilds header contexts as entries move between the
// chain and the forest.
type headerPolicy struct{}

// Extend derives a child context: height advances, the child's block
// work accumulates, and the parent's trailing window supplies the
// child's median time past.
func (headerPolicy) Extend(parent *HeaderContext, hdr *block.Header, hash types.Hash) *HeaderContext {
	child := &HeaderContext{
		Header: hdr,
		hash:   hash,
		height: parent.height + 1,
		work:   parent.work.Add(pow.WorkFromBits(hdr.Bits)),
		mtp:    consensus.CalcMedianTime(parent.window[:parent.windowLen]),
	}
	if parent.windowLen < timestampWindow {
		copy(child.window[:], parent.window[:parent.windowLen])
		child.window[parent.windowLen] = hdr.Timestamp
		child.windowLen = parent.windowLen + 1
	} else {
		copy(child.window[:], parent.window[1:])
		child.window[timestampWindow-1] = hdr.Timestamp
		child.windowLen = timestampWindow
	}
	return child
}

// Rewind derives the parent context from a child during demotion. The
// trailing window shrinks by one: the entry that fell out of the child's
// window is no longer reachable from the child alone, so a context that
// is demoted and later re-extended carries a shorter window until it
// refills. Validation reads timestamps through ancestry views over the
// actual data, so this does not affect rule outcomes.
func (headerPolicy) Rewind(child *HeaderContext, parentData *block.Header, parentHash types.Hash) *HeaderContext {
	parent := &HeaderContext{
		Header: parentData,
		hash:   parentHash,
		height: child.height - 1,
		work:   child.work.Sub(pow.WorkFromBits(child.Header.Bits)),
	}
	if child.windowLen > 1 {
		parent.windowLen = child.windowLen - 1
		copy(parent.window[:], child.window[:parent.windowLen])
		parent.mtp = consensus.CalcMedianTime(parent.window[:parent.windowLen-1])
	} else {
		parent.window[0] = parentData.Timestamp
		parent.windowLen = 1
	}
	return parent
}
