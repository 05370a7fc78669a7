package timechain

import (
	"sync"

	"github.com/tobysharp/hornet/internal/chaintree"
	"github.com/tobysharp/hornet/internal/log"
	"github.com/tobysharp/hornet/pkg/block"
	"github.com/tobysharp/hornet/pkg/pow"
	"github.com/tobysharp/hornet/pkg/types"
)

// erasedSidecar is the type-erased face a sidecar presents to the
// timechain: structural mirroring only, no value access. The concrete
// element type is recovered through the typed handle returned at
// registration.
type erasedSidecar interface {
	addSync(u StructuralUpdate)
	replayFrom(master *headerTree)
	prune(maxKeepDepth int32)
}

// MetaContext is the minimal context a sidecar tree carries: identity
// and position. It reports zero work, so sidecar insertion never
// auto-promotes; promotion is forced by the master's update.
type MetaContext struct {
	hash   types.Hash
	height int32
}

// Height returns the entry height.
func (c *MetaContext) Height() int32 { return c.height }

// Hash returns the entry hash.
func (c *MetaContext) Hash() types.Hash { return c.hash }

// Work returns zero: sidecars carry no fork-choice weight.
func (c *MetaContext) Work() pow.Work { return pow.Work{} }

// metaPolicy rebuilds sidecar contexts during forced promotion; values
// travel with their entries, so only identity and position move.
type metaPolicy[T any] struct{}

func (metaPolicy[T]) Extend(parent *MetaContext, _ T, hash types.Hash) *MetaContext {
	return &MetaContext{hash: hash, height: parent.height + 1}
}

func (metaPolicy[T]) Rewind(child *MetaContext, _ T, parentHash types.Hash) *MetaContext {
	return &MetaContext{hash: parentHash, height: child.height - 1}
}

// Sidecar carries one value of type T per timechain entry, structurally
// bit-identical to its master. Values default to the registration
// default and are read and written through the handle.
//
// Lock order: the timechain's structural lock is always taken before
// the sidecar's metadata lock.
type Sidecar[T any] struct {
	tc  *Timechain
	def T

	metaMu sync.RWMutex
	tree   *chaintree.Tree[T, *MetaContext]
}

// RegisterSidecar attaches a new sidecar to the timechain, replaying
// the complete existing structure into it, and returns the typed
// handle. Registration order fixes fan-out order.
func RegisterSidecar[T any](tc *Timechain, def T) *Sidecar[T] {
	s := &Sidecar[T]{tc: tc, def: def}
	tc.registerSidecar(s)
	return s
}

// replayFrom mirrors the master's full structure: the canonical chain
// in height order, then each forest branch from its root down.
func (s *Sidecar[T]) replayFrom(master *headerTree) {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()

	master.Walk(
		func(height int32, hash types.Hash, _ *block.Header) {
			if height == 0 {
				s.tree = chaintree.New(s.def, &MetaContext{hash: hash}, metaPolicy[T]{})
				return
			}
			ctx := &MetaContext{hash: hash, height: height}
			if _, _, err := s.tree.Add(chaintree.ChainLocator(height-1), s.def, ctx); err != nil {
				log.Chain.Fatal().Err(err).Int32("height", height).Msg("sidecar replay diverged from master chain")
			}
		},
		func(parent chaintree.Locator, hash types.Hash, height int32, _ *block.Header) {
			ctx := &MetaContext{hash: hash, height: height}
			if _, _, err := s.tree.Add(parent, s.def, ctx); err != nil {
				log.Chain.Fatal().Err(err).Int32("height", height).Msg("sidecar replay diverged from master forest")
			}
		},
	)
}

// addSync mirrors one structural update. The update's parent locator is
// valid against the sidecar's current structure because master and
// sidecar were identical before the mutation. A resolution failure is a
// broken mirror: a programmer error, not a recoverable condition.
func (s *Sidecar[T]) addSync(u StructuralUpdate) {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()

	ctx := &MetaContext{hash: u.ChildHash, height: u.ChildHeight}
	it, _, err := s.tree.Add(u.Parent, s.def, ctx)
	if err != nil {
		log.Chain.Fatal().Err(err).Stringer("hash", u.ChildHash).Msg("sidecar lost structural sync")
	}
	if len(u.Moved) > 0 {
		if _, err := s.tree.PromoteBranch(it); err != nil {
			log.Chain.Fatal().Err(err).Stringer("hash", u.ChildHash).Msg("sidecar promote failed")
		}
	}
}

// prune mirrors forest pruning.
func (s *Sidecar[T]) prune(maxKeepDepth int32) {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	s.tree.PruneForest(maxKeepDepth)
}

// locate resolves a stable (height, hash) key in the sidecar's tree.
func (s *Sidecar[T]) locate(height int32, hash types.Hash) (chaintree.Iterator[T, *MetaContext], bool) {
	if chainHash, ok := s.tree.HashAt(height); ok && chainHash == hash {
		return s.tree.Find(chaintree.ChainLocator(height))
	}
	it, ok := s.tree.Find(chaintree.ForkLocator(hash))
	if !ok || it.Height() != height {
		return chaintree.Iterator[T, *MetaContext]{}, false
	}
	return it, true
}

// Get returns the value stored for the given entry.
func (s *Sidecar[T]) Get(height int32, hash types.Hash) (T, bool) {
	s.tc.mu.RLock()
	defer s.tc.mu.RUnlock()
	s.metaMu.RLock()
	defer s.metaMu.RUnlock()

	var zero T
	it, ok := s.locate(height, hash)
	if !ok {
		return zero, false
	}
	return it.Data(), true
}

// Set stores a value for the given entry. Returns false when the entry
// is unknown.
func (s *Sidecar[T]) Set(height int32, hash types.Hash, v T) bool {
	s.tc.mu.RLock()
	defer s.tc.mu.RUnlock()
	s.metaMu.Lock()
	defer s.metaMu.Unlock()

	it, ok := s.locate(height, hash)
	if !ok {
		return false
	}
	return s.tree.SetData(it, v)
}
