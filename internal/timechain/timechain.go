package timechain

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tobysharp/hornet/config"
	"github.com/tobysharp/hornet/internal/chaintree"
	"github.com/tobysharp/hornet/internal/conc"
	"github.com/tobysharp/hornet/internal/consensus"
	"github.com/tobysharp/hornet/internal/log"
	"github.com/tobysharp/hornet/pkg/block"
	"github.com/tobysharp/hornet/pkg/types"
)

// maxForkKeepDepth is how far below the tip competing forks are retained
// before the forest is pruned.
const maxForkKeepDepth = 1000

// headerTree is the chaintree specialization used throughout the
// package.
type headerTree = chaintree.Tree[*block.Header, *HeaderContext]

type headerIterator = chaintree.Iterator[*block.Header, *HeaderContext]

// StructuralUpdate describes one mutation of the timechain, in terms
// valid against the structure as it was before the mutation. Sidecars
// replay updates to stay bit-identical.
type StructuralUpdate struct {
	Parent      chaintree.Locator
	ChildHash   types.Hash
	ChildHeight int32
	Moved       []types.Hash
}

// Timechain is the block-header tree plus its registered sidecars.
// Structure is guarded by a writer-preferring shared mutex: reads take
// shared access, extension and reorgs take exclusive access. A reader
// always observes the tree either fully before or fully after an
// extension, including its sidecar fan-out.
type Timechain struct {
	mu     conc.SharedMutex
	params *config.Params
	tree   *headerTree

	// Registration order is fan-out order.
	sidecars []erasedSidecar

	// tip is a lock-free snapshot of the canonical tip, republished
	// after every structural mutation for readers that must not block
	// behind the structural lock.
	tip *conc.SingleWriter[types.Key]

	logger zerolog.Logger
}

// New creates a timechain preloaded with the network's genesis header.
func New(params *config.Params) *Timechain {
	genesis := params.GenesisHeader
	return &Timechain{
		params: params,
		tree:   chaintree.New(genesis, GenesisContext(genesis), headerPolicy{}),
		tip:    conc.NewSingleWriter(types.Key{Height: 0, Hash: genesis.Hash()}),
		logger: log.Chain,
	}
}

// Params returns the network parameters the timechain validates against.
func (tc *Timechain) Params() *config.Params { return tc.params }

// Height returns the canonical tip height.
func (tc *Timechain) Height() int32 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.tree.ChainTipHeight()
}

// TipKey returns the canonical tip's stable locator from the lock-free
// snapshot.
func (tc *Timechain) TipKey() types.Key {
	return *tc.tip.Snapshot()
}

// TipContext returns the canonical tip context.
func (tc *Timechain) TipContext() *HeaderContext {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	ctx, _ := tc.tree.ChainTipContext()
	return ctx
}

// Header returns the header at the given stable key, on any known
// branch.
func (tc *Timechain) Header(height int32, hash types.Hash) (*block.Header, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	it, ok := tc.findStable(height, hash)
	if !ok {
		return nil, false
	}
	return it.Data(), true
}

// HashAtHeight returns the canonical chain hash at the given height.
func (tc *Timechain) HashAtHeight(height int32) (types.Hash, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.tree.HashAt(height)
}

// HeightOf resolves a header hash anywhere in the tree to its height.
func (tc *Timechain) HeightOf(hash types.Hash) (int32, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	it, ok := tc.tree.FindHash(hash)
	if !ok {
		return 0, false
	}
	return it.Height(), true
}

// HeaderAtHeight returns the canonical header at the given height.
func (tc *Timechain) HeaderAtHeight(height int32) (*block.Header, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.tree.DataAt(height)
}

// FindStable reports whether the (height, hash) pair names a known
// block. The pair stays valid across reorgs as long as the entry is not
// pruned; the returned header is a snapshot safe to keep.
func (tc *Timechain) FindStable(height int32, hash types.Hash) (*block.Header, bool) {
	return tc.Header(height, hash)
}

// findStable resolves a stable key under a held lock.
func (tc *Timechain) findStable(height int32, hash types.Hash) (headerIterator, bool) {
	if chainHash, ok := tc.tree.HashAt(height); ok && chainHash == hash {
		it, ok := tc.tree.Find(chaintree.ChainLocator(height))
		return it, ok
	}
	it, ok := tc.tree.Find(chaintree.ForkLocator(hash))
	if !ok || it.Height() != height {
		return headerIterator{}, false
	}
	return it, true
}

// ExtendBatch validates and appends a contiguous run of headers whose
// first entry links to prevHash. Each header runs the full header
// ruleset against its own ancestry before insertion; sidecars mirror
// every structural change before the lock is released.
//
// Returns how many headers were appended. On failure the returned error
// is the consensus error of headers[added]; earlier headers remain in
// the chain. A prevHash that does not resolve fails with
// consensus.ErrParentNotFound before any header is touched.
func (tc *Timechain) ExtendBatch(prevHash types.Hash, headers []*block.Header, now int64) (int, error) {
	if len(headers) == 0 {
		return 0, nil
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()

	parentIt, ok := tc.tree.FindHash(prevHash)
	if !ok {
		return 0, fmt.Errorf("%w: %s", consensus.ErrParentNotFound, prevHash)
	}
	parentCtx, ok := tc.tree.ContextAt(parentIt.Locator())
	if !ok {
		return 0, fmt.Errorf("%w: %s", consensus.ErrParentNotFound, prevHash)
	}

	for i, hdr := range headers {
		hctx := &consensus.HeaderValidationContext{
			Header:          hdr,
			Height:          parentCtx.Height() + 1,
			ParentHash:      parentCtx.Hash(),
			ParentBits:      parentCtx.Bits(),
			ParentTimestamp: parentCtx.Timestamp(),
			View:            &ancestryView{parent: parentIt, height: parentCtx.Height() + 1},
			Now:             now,
			Params:          tc.params,
		}
		if err := consensus.ValidateHeader(hctx); err != nil {
			return i, err
		}

		ctx := headerPolicy{}.Extend(parentCtx, hdr, hdr.Hash())
		if err := tc.add(parentIt.Locator(), hdr, ctx); err != nil {
			return i, err
		}

		next, ok := tc.tree.FindHash(hdr.Hash())
		if !ok {
			// The entry was just inserted; losing it is a programmer
			// error.
			tc.logger.Fatal().Stringer("hash", hdr.Hash()).Msg("inserted header not resolvable")
		}
		parentIt, parentCtx = next, ctx
	}
	return len(headers), nil
}

// add inserts one header and fans the structural update out to every
// sidecar, in registration order, under the already-held exclusive
// lock.
func (tc *Timechain) add(parent chaintree.Locator, hdr *block.Header, ctx *HeaderContext) error {
	_, moved, err := tc.tree.Add(parent, hdr, ctx)
	if err != nil {
		return err
	}

	update := StructuralUpdate{
		Parent:      parent,
		ChildHash:   ctx.Hash(),
		ChildHeight: ctx.Height(),
		Moved:       moved,
	}
	for _, sc := range tc.sidecars {
		sc.addSync(update)
	}

	if len(moved) > 0 {
		tc.logger.Info().
			Int("depth", len(moved)).
			Int32("height", ctx.Height()).
			Stringer("tip", ctx.Hash()).
			Msg("chain reorganized")
	}

	tc.pruneForest()

	tipKey := types.Key{Height: tc.tree.ChainTipHeight(), Hash: tc.tree.ChainTipHash()}
	tc.tip.Edit(func(k *types.Key) { *k = tipKey })
	return nil
}

// pruneForest drops stale forks from the tree and every sidecar.
func (tc *Timechain) pruneForest() {
	tc.tree.PruneForest(maxForkKeepDepth)
	for _, sc := range tc.sidecars {
		sc.prune(maxForkKeepDepth)
	}
}

// registerSidecar replays the complete existing structure into the
// sidecar, then adds it to the fan-out list.
func (tc *Timechain) registerSidecar(sc erasedSidecar) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	sc.replayFrom(tc.tree)
	tc.sidecars = append(tc.sidecars, sc)
}

// LocatorHashes builds a block-locator list from the canonical tip:
// dense for the last ten entries, then doubling strides back to
// genesis. Header sync anchors getheaders requests with it.
func (tc *Timechain) LocatorHashes() []types.Hash {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	var locator []types.Hash
	step := int32(1)
	for height := tc.tree.ChainTipHeight(); height > 0; height -= step {
		hash, _ := tc.tree.HashAt(height)
		locator = append(locator, hash)
		if len(locator) > 10 {
			step *= 2
		}
	}
	genesisHash, _ := tc.tree.HashAt(0)
	return append(locator, genesisHash)
}

// SnapshotView captures a static ancestry view rooted at the parent
// resolved by prevHash, for use outside the structural lock. The view
// answers Len, the trailing timestamp window, and TimestampAt for
// heights inside that window.
func (tc *Timechain) SnapshotView(prevHash types.Hash) (consensus.HeaderAncestryView, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	parentIt, ok := tc.tree.FindHash(prevHash)
	if !ok {
		return nil, false
	}
	height := parentIt.Height() + 1
	live := &ancestryView{parent: parentIt, height: height}
	window := live.LastTimestamps(consensus.MedianTimestampWindow)
	return &staticView{height: height, window: window}, true
}
