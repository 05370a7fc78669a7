// Package chaintree implements the hybrid linear-chain-plus-forest
// structure backing the header timechain and its sidecars. The heaviest
// branch is stored as a dense array indexed by height; competing
// near-tip branches live in a small forest of nodes linked by parent
// pointers.
package chaintree

import (
	"fmt"

	"github.com/tobysharp/hornet/pkg/types"
)

// Locator identifies a node in the tree: either a height on the
// canonical chain or the hash of a forest node.
type Locator struct {
	height int32
	hash   types.Hash
	chain  bool
}

// ChainLocator locates the canonical chain entry at the given height.
func ChainLocator(height int32) Locator {
	return Locator{height: height, chain: true}
}

// ForkLocator locates a forest node by hash.
func ForkLocator(hash types.Hash) Locator {
	return Locator{hash: hash}
}

// IsChain reports whether the locator names a canonical chain entry.
func (l Locator) IsChain() bool { return l.chain }

// Height returns the chain height for chain locators.
func (l Locator) Height() int32 { return l.height }

// Hash returns the node hash for fork locators.
func (l Locator) Hash() types.Hash { return l.hash }

// String formats the locator for logging.
func (l Locator) String() string {
	if l.chain {
		return fmt.Sprintf("chain(%d)", l.height)
	}
	return fmt.Sprintf("fork(%s)", l.hash)
}
