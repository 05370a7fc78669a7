// Package tx defines the transaction model and its wire serialization.
package tx

import (
	"bytes"

	"github.com/tobysharp/hornet/pkg/crypto"
	"github.com/tobysharp/hornet/pkg/types"
)

// Transaction is one transaction: inputs spending previous outpoints,
// outputs creating new ones, and an optional witness per input.
type Transaction struct {
	Version  int32
	Inputs   []Input
	Outputs  []Output
	LockTime uint32
}

// Input references a UTXO being spent.
type Input struct {
	PreviousOutpoint types.Outpoint
	SignatureScript  []byte
	Sequence         uint32
	Witness          [][]byte
}

// Output defines a new UTXO.
type Output struct {
	Value    int64
	PkScript []byte
}

// SequenceFinal disables lock-time checking for an input.
const SequenceFinal uint32 = 0xffffffff

// LockTimeThreshold separates height-based lock times (below) from
// Unix-time-based ones (at or above).
const LockTimeThreshold uint32 = 500_000_000

// TxID returns the transaction ID: the double-SHA256 of the serialization
// without witness data.
func (t *Transaction) TxID() types.Hash {
	var buf bytes.Buffer
	_ = t.SerializeNoWitness(&buf)
	return crypto.DoubleHash(buf.Bytes())
}

// WTxID returns the witness transaction ID: the double-SHA256 of the full
// serialization. Equal to TxID for transactions without witness data.
func (t *Transaction) WTxID() types.Hash {
	if !t.HasWitness() {
		return t.TxID()
	}
	var buf bytes.Buffer
	_ = t.Serialize(&buf)
	return crypto.DoubleHash(buf.Bytes())
}

// HasWitness returns true if any input carries witness items.
func (t *Transaction) HasWitness() bool {
	for i := range t.Inputs {
		if len(t.Inputs[i].Witness) > 0 {
			return true
		}
	}
	return false
}

// IsCoinbase returns true if the transaction has exactly one input whose
// previous outpoint is the distinguished null outpoint.
func (t *Transaction) IsCoinbase() bool {
	return len(t.Inputs) == 1 && t.Inputs[0].PreviousOutpoint.IsNull()
}

// IsFinal reports whether the transaction's lock time has passed at the
// given block height and time cutoff. A transaction whose inputs all use
// the final sequence is final regardless of lock time.
func (t *Transaction) IsFinal(height int32, timeCutoff int64) bool {
	if t.LockTime == 0 {
		return true
	}
	cutoff := int64(height)
	if t.LockTime >= LockTimeThreshold {
		cutoff = timeCutoff
	}
	if int64(t.LockTime) < cutoff {
		return true
	}
	for i := range t.Inputs {
		if t.Inputs[i].Sequence != SequenceFinal {
			return false
		}
	}
	return true
}
