// Package crypto provides the hash primitives used by consensus.
package crypto

import (
	"crypto/sha256"

	"github.com/tobysharp/hornet/pkg/types"
)

// Sum256 computes a single SHA-256 hash of the input data.
func Sum256(data []byte) types.Hash {
	return sha256.Sum256(data)
}

// DoubleHash computes SHA-256(SHA-256(data)), the hash used for block
// headers, transaction IDs, merkle nodes, and message checksums.
func DoubleHash(data []byte) types.Hash {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}

// DoubleHashConcat double-hashes the concatenation of two hashes.
// Used for building merkle trees.
func DoubleHashConcat(a, b types.Hash) types.Hash {
	var buf [2 * types.HashSize]byte
	copy(buf[:types.HashSize], a[:])
	copy(buf[types.HashSize:], b[:])
	return DoubleHash(buf[:])
}

// Checksum returns the first four bytes of DoubleHash(data), used by the
// wire message envelope.
func Checksum(data []byte) [4]byte {
	h := DoubleHash(data)
	var c [4]byte
	copy(c[:], h[:4])
	return c
}
