package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tobysharp/hornet/pkg/block"
	"github.com/tobysharp/hornet/pkg/types"
)

// Key prefixes.
var (
	prefixHeader    = []byte("h") // h<hash>          -> 80-byte header
	prefixCanonical = []byte("c") // c<height BE>     -> hash
	keyTip          = []byte("T") // tip key: height + hash
)

// HeaderStore persists headers by hash plus the canonical chain index.
// The canonical index is rewritten as the chain reorganizes; headers
// themselves are append-only.
type HeaderStore struct {
	db DB
}

// NewHeaderStore wraps a database.
func NewHeaderStore(db DB) *HeaderStore {
	return &HeaderStore{db: db}
}

func headerKey(hash types.Hash) []byte {
	return append(append([]byte{}, prefixHeader...), hash[:]...)
}

func canonicalKey(height int32) []byte {
	key := append([]byte{}, prefixCanonical...)
	var h [4]byte
	binary.BigEndian.PutUint32(h[:], uint32(height))
	return append(key, h[:]...)
}

// PutHeader stores one header by hash.
func (s *HeaderStore) PutHeader(hdr *block.Header) error {
	if err := s.db.Put(headerKey(hdr.Hash()), hdr.SerializeBytes()); err != nil {
		return fmt.Errorf("store header %s: %w", hdr.Hash(), err)
	}
	return nil
}

// GetHeader loads one header by hash.
func (s *HeaderStore) GetHeader(hash types.Hash) (*block.Header, error) {
	raw, err := s.db.Get(headerKey(hash))
	if err != nil {
		return nil, fmt.Errorf("load header %s: %w", hash, err)
	}
	hdr := &block.Header{}
	if err := hdr.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("decode header %s: %w", hash, err)
	}
	return hdr, nil
}

// GetCanonical returns the persisted canonical hash at a height.
func (s *HeaderStore) GetCanonical(height int32) (types.Hash, error) {
	raw, err := s.db.Get(canonicalKey(height))
	if err != nil {
		return types.Hash{}, err
	}
	var hash types.Hash
	copy(hash[:], raw)
	return hash, nil
}

// SetCanonical records the canonical hash at a height.
func (s *HeaderStore) SetCanonical(height int32, hash types.Hash) error {
	if err := s.db.Put(canonicalKey(height), hash.Bytes()); err != nil {
		return fmt.Errorf("store canonical %d: %w", height, err)
	}
	return nil
}

// TruncateCanonical removes canonical entries above the given height.
// Called after a reorg shortens the persisted chain.
func (s *HeaderStore) TruncateCanonical(aboveHeight int32) error {
	var stale [][]byte
	err := s.db.ForEach(prefixCanonical, func(key, _ []byte) error {
		height := int32(binary.BigEndian.Uint32(key[len(prefixCanonical):]))
		if height > aboveHeight {
			stale = append(stale, key)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, key := range stale {
		if err := s.db.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// SetTip records the canonical tip.
func (s *HeaderStore) SetTip(tip types.Key) error {
	buf := make([]byte, 4+types.HashSize)
	binary.BigEndian.PutUint32(buf[:4], uint32(tip.Height))
	copy(buf[4:], tip.Hash[:])
	if err := s.db.Put(keyTip, buf); err != nil {
		return fmt.Errorf("store tip: %w", err)
	}
	return nil
}

// Tip returns the persisted canonical tip. ok is false for a fresh
// database.
func (s *HeaderStore) Tip() (types.Key, bool, error) {
	raw, err := s.db.Get(keyTip)
	if errors.Is(err, ErrNotFound) {
		return types.Key{}, false, nil
	}
	if err != nil {
		return types.Key{}, false, fmt.Errorf("load tip: %w", err)
	}
	if len(raw) != 4+types.HashSize {
		return types.Key{}, false, fmt.Errorf("tip record has %d bytes", len(raw))
	}
	var tip types.Key
	tip.Height = int32(binary.BigEndian.Uint32(raw[:4]))
	copy(tip.Hash[:], raw[4:])
	return tip, true, nil
}

// AppendCanonical persists a header and its canonical position plus the
// tip, in one logical step.
func (s *HeaderStore) AppendCanonical(hdr *block.Header, height int32) error {
	if err := s.PutHeader(hdr); err != nil {
		return err
	}
	if err := s.SetCanonical(height, hdr.Hash()); err != nil {
		return err
	}
	return s.SetTip(types.Key{Height: height, Hash: hdr.Hash()})
}

// WalkCanonical visits persisted canonical headers in ascending height
// order, starting after genesis.
func (s *HeaderStore) WalkCanonical(fn func(height int32, hdr *block.Header) error) error {
	return s.db.ForEach(prefixCanonical, func(key, value []byte) error {
		height := int32(binary.BigEndian.Uint32(key[len(prefixCanonical):]))
		if height == 0 {
			return nil // genesis is preloaded from params
		}
		var hash types.Hash
		copy(hash[:], value)
		hdr, err := s.GetHeader(hash)
		if err != nil {
			return err
		}
		return fn(height, hdr)
	})
}
