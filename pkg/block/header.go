package block

import (
	"bytes"
	"io"

	"github.com/tobysharp/hornet/pkg/crypto"
	"github.com/tobysharp/hornet/pkg/pow"
	"github.com/tobysharp/hornet/pkg/types"
	"github.com/tobysharp/hornet/pkg/wire"
)

// HeaderSize is the fixed serialized size of a block header.
const HeaderSize = 80

// Header contains block metadata. Headers are immutable once shared;
// the hash is computed when the header is decoded or constructed so that
// concurrent readers never race on a lazily filled cache.
type Header struct {
	Version    int32
	PrevBlock  types.Hash
	MerkleRoot types.Hash
	Timestamp  uint32
	Bits       pow.CompactTarget
	Nonce      uint32

	hash   types.Hash
	hashed bool
}

// NewHeader builds a header and precomputes its hash.
func NewHeader(version int32, prev, merkleRoot types.Hash, timestamp uint32, bits pow.CompactTarget, nonce uint32) *Header {
	h := &Header{
		Version:    version,
		PrevBlock:  prev,
		MerkleRoot: merkleRoot,
		Timestamp:  timestamp,
		Bits:       bits,
		Nonce:      nonce,
	}
	h.hash = h.computeHash()
	h.hashed = true
	return h
}

// Hash returns the header hash, cached at decode or construction time.
// A header assembled field-by-field (no constructor) is hashed on the
// fly without filling the cache; call Seal once the fields are final.
func (h *Header) Hash() types.Hash {
	if h.hashed {
		return h.hash
	}
	return h.computeHash()
}

// Seal fixes the header hash after field-level construction. Mutating a
// sealed header is a bug.
func (h *Header) Seal() {
	h.hash = h.computeHash()
	h.hashed = true
}

func (h *Header) computeHash() types.Hash {
	var buf bytes.Buffer
	buf.Grow(HeaderSize)
	_ = h.Serialize(&buf)
	return crypto.DoubleHash(buf.Bytes())
}

// Serialize writes the 80-byte header:
// version | prev_block | merkle_root | timestamp | bits | nonce,
// integers little-endian.
func (h *Header) Serialize(w io.Writer) error {
	if err := wire.WriteInt32(w, h.Version); err != nil {
		return err
	}
	if err := wire.WriteHash(w, h.PrevBlock); err != nil {
		return err
	}
	if err := wire.WriteHash(w, h.MerkleRoot); err != nil {
		return err
	}
	if err := wire.WriteUint32(w, h.Timestamp); err != nil {
		return err
	}
	if err := wire.WriteUint32(w, uint32(h.Bits)); err != nil {
		return err
	}
	return wire.WriteUint32(w, h.Nonce)
}

// Deserialize reads an 80-byte header and caches its hash.
func (h *Header) Deserialize(r io.Reader) error {
	var raw [HeaderSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return err
	}
	rd := bytes.NewReader(raw[:])

	var err error
	if h.Version, err = wire.ReadInt32(rd); err != nil {
		return err
	}
	if h.PrevBlock, err = wire.ReadHash(rd); err != nil {
		return err
	}
	if h.MerkleRoot, err = wire.ReadHash(rd); err != nil {
		return err
	}
	if h.Timestamp, err = wire.ReadUint32(rd); err != nil {
		return err
	}
	bits, err := wire.ReadUint32(rd)
	if err != nil {
		return err
	}
	h.Bits = pow.CompactTarget(bits)
	if h.Nonce, err = wire.ReadUint32(rd); err != nil {
		return err
	}

	h.hash = crypto.DoubleHash(raw[:])
	h.hashed = true
	return nil
}

// SerializeBytes returns the 80-byte serialization.
func (h *Header) SerializeBytes() []byte {
	var buf bytes.Buffer
	buf.Grow(HeaderSize)
	_ = h.Serialize(&buf)
	return buf.Bytes()
}
