package chaintree

import "github.com/tobysharp/hornet/pkg/types"

// Iterator references one entry of a tree: either a canonical chain
// height or a forest node. It is valid only while the tree is unchanged;
// holders of a structural read lock may keep it across reads.
type Iterator[D any, C Context] struct {
	tree   *Tree[D, C]
	node   *node[D, C]
	height int32
}

// Valid reports whether the iterator references an entry.
func (it Iterator[D, C]) Valid() bool {
	if it.tree == nil {
		return false
	}
	if it.node != nil {
		return true
	}
	return it.height >= 0 && it.height < int32(len(it.tree.chain))
}

// Height returns the entry height.
func (it Iterator[D, C]) Height() int32 { return it.height }

// Hash returns the entry hash.
func (it Iterator[D, C]) Hash() types.Hash {
	if it.node != nil {
		return it.node.hash
	}
	return it.tree.chain[it.height].hash
}

// Data returns the entry data.
func (it Iterator[D, C]) Data() D {
	if it.node != nil {
		return it.node.data
	}
	return it.tree.chain[it.height].data
}

// InChain reports whether the entry is on the canonical chain.
func (it Iterator[D, C]) InChain() bool { return it.node == nil }

// Locator returns the locator addressing this entry.
func (it Iterator[D, C]) Locator() Locator {
	if it.node != nil {
		return ForkLocator(it.node.hash)
	}
	return ChainLocator(it.height)
}

// Context returns the entry context when one is stored: forest nodes
// carry their own, and the chain tip carries the tree's tip context.
func (it Iterator[D, C]) Context() (C, bool) {
	var zero C
	if it.node != nil {
		return it.node.ctx, true
	}
	if it.tree != nil && it.height == it.tree.ChainTipHeight() {
		return it.tree.tipCtx, true
	}
	return zero, false
}

// AncestorAtHeight returns the ancestor of this entry at the given
// height, following the entry's own branch. Walks parent pointers while
// in the forest and indexes the chain array once the branch's fork point
// is crossed.
func (it Iterator[D, C]) AncestorAtHeight(height int32) (D, bool) {
	var zero D
	if !it.Valid() || height < 0 || height > it.height {
		return zero, false
	}
	n := it.node
	for n != nil {
		if n.ctx.Height() == height {
			return n.data, true
		}
		if n.parent == nil {
			// Crossed into the chain below the fork point.
			if height > n.rootHeight {
				return zero, false
			}
			break
		}
		n = n.parent
	}
	return it.tree.chain[height].data, true
}

// AncestorsToHeight returns a forward iterator over this entry's
// ancestry: it yields the entry itself, then each ancestor one step
// closer to genesis, stopping before endHeight. The iterator is finite
// and cannot be restarted.
func (it Iterator[D, C]) AncestorsToHeight(endHeight int32) AncestorIter[D, C] {
	ai := AncestorIter[D, C]{tree: it.tree, node: it.node, height: it.height, end: endHeight}
	if !it.Valid() {
		ai.height = -1
	}
	return ai
}

// AncestorIter walks an ancestry path toward genesis. While in the
// forest it follows parent pointers; at a branch root it switches into
// the chain at the fork height; in the chain it decrements the height.
// The terminal sentinel is height -1.
type AncestorIter[D any, C Context] struct {
	tree   *Tree[D, C]
	node   *node[D, C]
	height int32
	end    int32
}

// Next yields the current entry's data and advances one ancestor.
// Returns false once the walk reaches endHeight or genesis is passed.
func (ai *AncestorIter[D, C]) Next() (D, bool) {
	var zero D
	if ai.height < 0 || ai.height <= ai.end {
		return zero, false
	}
	var data D
	if ai.node != nil {
		data = ai.node.data
		if ai.node.parent != nil {
			ai.node = ai.node.parent
			ai.height--
		} else {
			// Switch from the branch root into the canonical chain.
			ai.height = ai.node.rootHeight
			ai.node = nil
		}
	} else {
		data = ai.tree.chain[ai.height].data
		ai.height--
	}
	return data, true
}

// Height returns the height the iterator will yield next, or -1 when
// exhausted.
func (ai *AncestorIter[D, C]) Height() int32 { return ai.height }
