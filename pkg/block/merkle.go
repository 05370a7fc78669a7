package block

import (
	"github.com/tobysharp/hornet/pkg/crypto"
	"github.com/tobysharp/hornet/pkg/types"
)

// ComputeMerkleRoot calculates the merkle root of a list of hashes.
//
// Algorithm:
//   - 0 hashes: returns the zero hash
//   - 1 hash: returns that hash
//   - Otherwise: pairwise double-SHA256, duplicating the last element when
//     a layer has odd length, until one hash remains.
func ComputeMerkleRoot(hashes []types.Hash) types.Hash {
	if len(hashes) == 0 {
		return types.Hash{}
	}
	if len(hashes) == 1 {
		return hashes[0]
	}

	// Work on a copy so we don't mutate the caller's slice.
	level := make([]types.Hash, len(hashes))
	copy(level, hashes)

	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		next := make([]types.Hash, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = crypto.DoubleHashConcat(level[i], level[i+1])
		}
		level = next
	}
	return level[0]
}

// MerkleRoot returns the merkle root over the block's transaction IDs.
func (b *Block) MerkleRoot() types.Hash {
	return ComputeMerkleRoot(b.TxHashes())
}

// WitnessMerkleRoot returns the merkle root over the block's wtxids with
// the coinbase entry zeroed, as committed by BIP141.
func (b *Block) WitnessMerkleRoot() types.Hash {
	return ComputeMerkleRoot(b.WitnessHashes())
}
