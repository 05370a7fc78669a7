// Package types defines core primitive types for the hornet node.
package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashSize is the length of a hash in bytes.
const HashSize = 32

// Hash represents a 256-bit hash value stored in internal (little-endian)
// byte order, as it appears on the wire. The printed form is byte-reversed,
// matching the convention used by block explorers.
type Hash [HashSize]byte

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String returns the hex-encoded hash in display (byte-reversed) order.
func (h Hash) String() string {
	var rev [HashSize]byte
	for i, b := range h {
		rev[HashSize-1-i] = b
	}
	return hex.EncodeToString(rev[:])
}

// Bytes returns a copy of the hash in internal byte order.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// Cmp compares two hashes as 256-bit unsigned integers in internal byte
// order (least-significant byte first). Returns -1, 0, or 1.
func (h Hash) Cmp(other Hash) int {
	for i := HashSize - 1; i >= 0; i-- {
		switch {
		case h[i] < other[i]:
			return -1
		case h[i] > other[i]:
			return 1
		}
	}
	return 0
}

// MarshalJSON encodes the hash as a display-order hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a display-order hex string into a hash.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*h = Hash{}
		return nil
	}
	decoded, err := NewHashFromStr(s)
	if err != nil {
		return err
	}
	*h = decoded
	return nil
}

// NewHashFromStr converts a display-order hex string to a Hash.
// Returns an error if the string is not exactly 64 hex characters.
func NewHashFromStr(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hash hex: %w", err)
	}
	if len(b) != HashSize {
		return Hash{}, fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(b))
	}
	var h Hash
	for i, v := range b {
		h[HashSize-1-i] = v
	}
	return h, nil
}

// MustHashFromStr converts a display-order hex string to a Hash and panics
// on malformed input. For package-level constants only.
func MustHashFromStr(s string) Hash {
	h, err := NewHashFromStr(s)
	if err != nil {
		panic(err)
	}
	return h
}

// Key locates a block across reorgs: the pair is stable even when the
// height is reused by a competing fork.
type Key struct {
	Height int32
	Hash   Hash
}

// String returns "height:hash" for logging.
func (k Key) String() string {
	return fmt.Sprintf("%d:%s", k.Height, k.Hash)
}
