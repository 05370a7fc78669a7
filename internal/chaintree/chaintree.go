package chaintree

import (
	"errors"

	"github.com/tobysharp/hornet/pkg/pow"
	"github.com/tobysharp/hornet/pkg/types"
)

// Tree errors.
var (
	ErrParentNotFound = errors.New("parent locator does not resolve")
	ErrHeightMismatch = errors.New("context height is not parent height + 1")
	ErrDuplicateHash  = errors.New("hash already present in tree")
	ErrNotForest      = errors.New("iterator does not reference a forest node")
)

// Context is the derived per-entry record a tree keeps alongside its
// data: position, identity, and the branch weight used for fork choice.
type Context interface {
	Height() int32
	Hash() types.Hash
	Work() pow.Work
}

// Policy rebuilds contexts when chain entries move between the chain and
// the forest during a reorg. Both directions are infallible for valid
// trees: a failure is a programmer error.
type Policy[D any, C Context] interface {
	// Extend derives the context of a child from its parent's context.
	Extend(parent C, data D, hash types.Hash) C
	// Rewind derives the parent context from a child's context and the
	// parent's own data.
	Rewind(child C, parentData D, parentHash types.Hash) C
}

// chainEntry is one canonical chain element.
type chainEntry[D any] struct {
	data D
	hash types.Hash
}

// node is one forest element. Children are owned by their parent; the
// parent link is a non-owning back-pointer. rootHeight is the chain
// height the node's branch forked from, shared by every node in the
// branch and used for lazy pruning.
type node[D any, C Context] struct {
	data       D
	ctx        C
	hash       types.Hash
	parentHash types.Hash
	parent     *node[D, C]
	children   []*node[D, C]
	rootHeight int32
}

// Tree is the hybrid chain-plus-forest container. It is not internally
// synchronized; the owner serializes access.
type Tree[D any, C Context] struct {
	policy Policy[D, C]

	chain      []chainEntry[D]
	chainIndex map[types.Hash]int32
	tipCtx     C

	forest        map[types.Hash]*node[D, C]
	roots         map[types.Hash]*node[D, C]
	minRootHeight int32
}

// New creates a tree seeded with its genesis entry. The genesis context
// must have height zero.
func New[D any, C Context](genesisData D, genesisCtx C, policy Policy[D, C]) *Tree[D, C] {
	if genesisCtx.Height() != 0 {
		panic("chaintree: genesis context height must be 0")
	}
	t := &Tree[D, C]{
		policy:     policy,
		chain:      []chainEntry[D]{{data: genesisData, hash: genesisCtx.Hash()}},
		chainIndex: map[types.Hash]int32{genesisCtx.Hash(): 0},
		tipCtx:     genesisCtx,
		forest:     make(map[types.Hash]*node[D, C]),
		roots:      make(map[types.Hash]*node[D, C]),
	}
	return t
}

// Empty reports whether the tree holds no entries.
func (t *Tree[D, C]) Empty() bool { return len(t.chain) == 0 }

// ChainLength returns the number of canonical chain entries.
func (t *Tree[D, C]) ChainLength() int32 { return int32(len(t.chain)) }

// ChainTipHeight returns the height of the canonical tip.
func (t *Tree[D, C]) ChainTipHeight() int32 { return int32(len(t.chain)) - 1 }

// ChainTipContext returns the context of the canonical tip.
func (t *Tree[D, C]) ChainTipContext() (C, bool) {
	var zero C
	if t.Empty() {
		return zero, false
	}
	return t.tipCtx, true
}

// ChainTipHash returns the hash of the canonical tip.
func (t *Tree[D, C]) ChainTipHash() types.Hash {
	return t.chain[len(t.chain)-1].hash
}

// ForestSize returns the number of forest nodes.
func (t *Tree[D, C]) ForestSize() int { return len(t.forest) }

// DataAt returns the canonical chain data at the given height.
func (t *Tree[D, C]) DataAt(height int32) (D, bool) {
	var zero D
	if height < 0 || height >= int32(len(t.chain)) {
		return zero, false
	}
	return t.chain[height].data, true
}

// HashAt returns the canonical chain hash at the given height.
func (t *Tree[D, C]) HashAt(height int32) (types.Hash, bool) {
	if height < 0 || height >= int32(len(t.chain)) {
		return types.Hash{}, false
	}
	return t.chain[height].hash, true
}

// Find resolves a locator to an iterator. Chain lookups index the array;
// fork lookups go through the forest hash index.
func (t *Tree[D, C]) Find(loc Locator) (Iterator[D, C], bool) {
	if loc.chain {
		if loc.height < 0 || loc.height >= int32(len(t.chain)) {
			return Iterator[D, C]{}, false
		}
		return Iterator[D, C]{tree: t, height: loc.height}, true
	}
	n, ok := t.forest[loc.hash]
	if !ok {
		return Iterator[D, C]{}, false
	}
	return Iterator[D, C]{tree: t, node: n, height: n.ctx.Height()}, true
}

// FindHash resolves a hash anywhere in the tree.
func (t *Tree[D, C]) FindHash(hash types.Hash) (Iterator[D, C], bool) {
	if h, ok := t.chainIndex[hash]; ok {
		return Iterator[D, C]{tree: t, height: h}, true
	}
	return t.Find(ForkLocator(hash))
}

// FindTipOrFork returns the canonical tip when the hash matches it, or a
// forest node match, together with the known context.
func (t *Tree[D, C]) FindTipOrFork(hash types.Hash) (Iterator[D, C], C, bool) {
	var zero C
	if hash == t.ChainTipHash() {
		return Iterator[D, C]{tree: t, height: t.ChainTipHeight()}, t.tipCtx, true
	}
	if n, ok := t.forest[hash]; ok {
		return Iterator[D, C]{tree: t, node: n, height: n.ctx.Height()}, n.ctx, true
	}
	return Iterator[D, C]{}, zero, false
}

// ContextAt rebuilds the context of any resolvable position. Forest
// nodes and the chain tip are O(1); interior chain entries rewind from
// the tip, so cost is proportional to depth below the tip.
func (t *Tree[D, C]) ContextAt(loc Locator) (C, bool) {
	var zero C
	if !loc.chain {
		n, ok := t.forest[loc.hash]
		if !ok {
			return zero, false
		}
		return n.ctx, true
	}
	if loc.height < 0 || loc.height >= int32(len(t.chain)) {
		return zero, false
	}
	ctx := t.tipCtx
	for h := t.ChainTipHeight(); h > loc.height; h-- {
		parent := t.chain[h-1]
		ctx = t.policy.Rewind(ctx, parent.data, parent.hash)
	}
	return ctx, true
}

// Add inserts a new entry under the resolved parent. A child of the
// current tip extends the chain directly; any other parent produces a
// forest node, and when the new node's cumulative work exceeds the
// canonical tip's, its branch is promoted. The returned hashes are the
// old chain-tail entries that moved into the forest (ascending height
// order, empty when no reorg occurred). Ties keep the current chain.
func (t *Tree[D, C]) Add(parent Locator, data D, ctx C) (Iterator[D, C], []types.Hash, error) {
	hash := ctx.Hash()
	if _, dup := t.chainIndex[hash]; dup {
		return Iterator[D, C]{}, nil, ErrDuplicateHash
	}
	if _, dup := t.forest[hash]; dup {
		return Iterator[D, C]{}, nil, ErrDuplicateHash
	}

	var parentHeight int32
	var parentHash types.Hash
	var parentNode *node[D, C]
	if parent.chain {
		if parent.height < 0 || parent.height >= int32(len(t.chain)) {
			return Iterator[D, C]{}, nil, ErrParentNotFound
		}
		parentHeight = parent.height
		parentHash = t.chain[parent.height].hash
	} else {
		n, ok := t.forest[parent.hash]
		if !ok {
			return Iterator[D, C]{}, nil, ErrParentNotFound
		}
		parentNode = n
		parentHeight = n.ctx.Height()
		parentHash = n.hash
	}
	if ctx.Height() != parentHeight+1 {
		return Iterator[D, C]{}, nil, ErrHeightMismatch
	}

	// Fast path: extend the canonical tip.
	if parent.chain && parent.height == t.ChainTipHeight() {
		t.chain = append(t.chain, chainEntry[D]{data: data, hash: hash})
		t.chainIndex[hash] = ctx.Height()
		t.tipCtx = ctx
		return Iterator[D, C]{tree: t, height: ctx.Height()}, nil, nil
	}

	n := &node[D, C]{
		data:       data,
		ctx:        ctx,
		hash:       hash,
		parentHash: parentHash,
		parent:     parentNode,
	}
	if parentNode != nil {
		n.rootHeight = parentNode.rootHeight
		parentNode.children = append(parentNode.children, n)
	} else {
		n.rootHeight = parentHeight
		t.roots[hash] = n
	}
	t.forest[hash] = n
	if len(t.forest) == 1 || n.rootHeight < t.minRootHeight {
		t.minRootHeight = n.rootHeight
	}

	it := Iterator[D, C]{tree: t, node: n, height: ctx.Height()}
	if ctx.Work().Cmp(t.tipCtx.Work()) > 0 {
		moved, err := t.PromoteBranch(it)
		if err != nil {
			return Iterator[D, C]{}, nil, err
		}
		// The promoted leaf is now the chain tip.
		return Iterator[D, C]{tree: t, height: ctx.Height()}, moved, nil
	}
	return it, nil, nil
}

// PromoteBranch makes the branch ending at the given forest node the
// canonical chain. The displaced chain tail is rebuilt as a forest
// branch (contexts restored through the policy) and its hashes are
// returned in ascending height order.
func (t *Tree[D, C]) PromoteBranch(leaf Iterator[D, C]) ([]types.Hash, error) {
	if leaf.node == nil || leaf.tree != t {
		return nil, ErrNotForest
	}

	// Collect the branch path, leaf up to its root.
	var path []*node[D, C]
	for n := leaf.node; n != nil; n = n.parent {
		path = append(path, n)
	}
	forkHeight := path[len(path)-1].rootHeight
	oldTip := t.ChainTipHeight()

	// Rebuild contexts for the chain tail being displaced, walking down
	// from the tip context through the known linear data.
	numDemoted := oldTip - forkHeight
	demotedCtx := make([]C, numDemoted) // index 0 = height forkHeight+1
	ctx := t.tipCtx
	for h := oldTip; h > forkHeight; h-- {
		demotedCtx[h-forkHeight-1] = ctx
		if h-1 > forkHeight {
			parent := t.chain[h-1]
			ctx = t.policy.Rewind(ctx, parent.data, parent.hash)
		}
	}

	// Displace the tail into the forest as a single branch.
	moved := make([]types.Hash, 0, numDemoted)
	var prev *node[D, C]
	for h := forkHeight + 1; h <= oldTip; h++ {
		entry := t.chain[h]
		dn := &node[D, C]{
			data:       entry.data,
			ctx:        demotedCtx[h-forkHeight-1],
			hash:       entry.hash,
			parentHash: t.chain[h-1].hash,
			parent:     prev,
			rootHeight: forkHeight,
		}
		if prev == nil {
			t.roots[dn.hash] = dn
		} else {
			prev.children = append(prev.children, dn)
		}
		t.forest[dn.hash] = dn
		delete(t.chainIndex, dn.hash)
		moved = append(moved, dn.hash)

		// Forest roots that hung off this displaced entry become
		// interior children of the rebuilt branch.
		for rh, root := range t.roots {
			if root.parentHash == dn.hash && root.parent == nil && root != dn {
				root.parent = dn
				dn.children = append(dn.children, root)
				delete(t.roots, rh)
				setSubtreeRootHeight(root, forkHeight)
			}
		}
		prev = dn
	}
	t.chain = t.chain[:forkHeight+1]

	// Splice the promoted path into the chain, root first.
	for i := len(path) - 1; i >= 0; i-- {
		n := path[i]
		t.chain = append(t.chain, chainEntry[D]{data: n.data, hash: n.hash})
		t.chainIndex[n.hash] = n.ctx.Height()
		delete(t.forest, n.hash)
		delete(t.roots, n.hash)

		var promotedChild *node[D, C]
		if i > 0 {
			promotedChild = path[i-1]
		}
		for _, child := range n.children {
			if child == promotedChild {
				continue
			}
			// Left-behind siblings become forest roots anchored on the
			// newly canonical entry.
			child.parent = nil
			t.roots[child.hash] = child
			setSubtreeRootHeight(child, n.ctx.Height())
		}
		n.children = nil
	}
	t.tipCtx = leaf.node.ctx
	t.recomputeMinRootHeight()
	return moved, nil
}

// PruneForest erases every forest branch that forked more than
// maxKeepDepth blocks below the canonical tip. Tracking the minimum fork
// height makes the common call a single comparison.
func (t *Tree[D, C]) PruneForest(maxKeepDepth int32) {
	if len(t.forest) == 0 {
		return
	}
	threshold := t.ChainTipHeight() - maxKeepDepth
	if t.minRootHeight >= threshold {
		return
	}
	for hash, root := range t.roots {
		if root.rootHeight < threshold {
			t.deleteSubtree(root)
			delete(t.roots, hash)
		}
	}
	t.recomputeMinRootHeight()
}

func (t *Tree[D, C]) deleteSubtree(n *node[D, C]) {
	delete(t.forest, n.hash)
	for _, child := range n.children {
		t.deleteSubtree(child)
	}
	n.children = nil
	n.parent = nil
}

func (t *Tree[D, C]) recomputeMinRootHeight() {
	t.minRootHeight = 0
	first := true
	for _, root := range t.roots {
		if first || root.rootHeight < t.minRootHeight {
			t.minRootHeight = root.rootHeight
			first = false
		}
	}
}

func setSubtreeRootHeight[D any, C Context](n *node[D, C], rootHeight int32) {
	n.rootHeight = rootHeight
	for _, child := range n.children {
		setSubtreeRootHeight(child, rootHeight)
	}
}

// SetData replaces the data stored at the iterator's position. Used by
// sidecars, whose per-node values are mutable metadata.
func (t *Tree[D, C]) SetData(it Iterator[D, C], data D) bool {
	if it.tree != t {
		return false
	}
	if it.node != nil {
		it.node.data = data
		return true
	}
	if it.height < 0 || it.height >= int32(len(t.chain)) {
		return false
	}
	t.chain[it.height].data = data
	return true
}

// Walk visits every entry: first the canonical chain in ascending height
// order, then each forest branch from its root down. Used for sidecar
// registration replay.
func (t *Tree[D, C]) Walk(chainFn func(height int32, hash types.Hash, data D), forestFn func(parent Locator, hash types.Hash, height int32, data D)) {
	for h := range t.chain {
		chainFn(int32(h), t.chain[h].hash, t.chain[h].data)
	}
	var visit func(n *node[D, C], parent Locator)
	visit = func(n *node[D, C], parent Locator) {
		forestFn(parent, n.hash, n.ctx.Height(), n.data)
		self := ForkLocator(n.hash)
		for _, child := range n.children {
			visit(child, self)
		}
	}
	for _, root := range t.roots {
		visit(root, ChainLocator(root.rootHeight))
	}
}
