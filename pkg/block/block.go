// Package block defines block and header types, serialization, and the
// merkle commitments over their transactions.
package block

import (
	"bytes"
	"io"

	"github.com/tobysharp/hornet/pkg/tx"
	"github.com/tobysharp/hornet/pkg/types"
	"github.com/tobysharp/hornet/pkg/wire"
)

// Block is a header plus its transaction list.
type Block struct {
	Header       *Header
	Transactions []*tx.Transaction
}

// NewBlock creates a block with the given header and transactions.
func NewBlock(header *Header, txs []*tx.Transaction) *Block {
	return &Block{Header: header, Transactions: txs}
}

// Hash returns the block header hash.
func (b *Block) Hash() types.Hash {
	if b.Header == nil {
		return types.Hash{}
	}
	return b.Header.Hash()
}

// Serialize writes the header, a transaction count, and each transaction
// (witness serialization where present).
func (b *Block) Serialize(w io.Writer) error {
	if err := b.Header.Serialize(w); err != nil {
		return err
	}
	if err := wire.WriteVarInt(w, uint64(len(b.Transactions))); err != nil {
		return err
	}
	for _, t := range b.Transactions {
		if err := t.Serialize(w); err != nil {
			return err
		}
	}
	return nil
}

// Deserialize reads a full block.
func (b *Block) Deserialize(r io.Reader) error {
	b.Header = &Header{}
	if err := b.Header.Deserialize(r); err != nil {
		return err
	}
	count, err := wire.ReadVarInt(r)
	if err != nil {
		return err
	}
	// A block cannot hold more transactions than single-byte-sized ones
	// fitting the maximum payload.
	if count > wire.MaxMessagePayload {
		return wire.ErrPayloadTooLarge
	}
	b.Transactions = make([]*tx.Transaction, count)
	for i := range b.Transactions {
		b.Transactions[i] = &tx.Transaction{}
		if err := b.Transactions[i].Deserialize(r); err != nil {
			return err
		}
	}
	return nil
}

// BaseSize returns the serialized size excluding witness data.
func (b *Block) BaseSize() int {
	size := HeaderSize + wire.VarIntSerializeSize(uint64(len(b.Transactions)))
	for _, t := range b.Transactions {
		size += t.BaseSize()
	}
	return size
}

// TotalSize returns the full serialized size including witness data.
func (b *Block) TotalSize() int {
	size := HeaderSize + wire.VarIntSerializeSize(uint64(len(b.Transactions)))
	for _, t := range b.Transactions {
		size += t.SerializeSize()
	}
	return size
}

// Weight returns the block weight: 3 x base size + total size, which
// equals 4 x non-witness bytes + 1 x witness bytes.
func (b *Block) Weight() int {
	return 3*b.BaseSize() + b.TotalSize()
}

// TxHashes returns the transaction IDs in block order.
func (b *Block) TxHashes() []types.Hash {
	hashes := make([]types.Hash, len(b.Transactions))
	for i, t := range b.Transactions {
		hashes[i] = t.TxID()
	}
	return hashes
}

// WitnessHashes returns the wtxids in block order, with the coinbase
// entry fixed to the zero hash per BIP141.
func (b *Block) WitnessHashes() []types.Hash {
	hashes := make([]types.Hash, len(b.Transactions))
	for i, t := range b.Transactions {
		if i == 0 {
			continue
		}
		hashes[i] = t.WTxID()
	}
	return hashes
}

// Bytes returns the full serialization.
func (b *Block) Bytes() []byte {
	var buf bytes.Buffer
	_ = b.Serialize(&buf)
	return buf.Bytes()
}
