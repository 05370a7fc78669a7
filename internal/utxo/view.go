// Package utxo defines the unspent-output view the block pipeline
// consumes, plus an in-memory implementation used by tests and
// single-process runs. Persistent storage lives behind the same
// interface in an external collaborator.
package utxo

import (
	"github.com/tobysharp/hornet/pkg/block"
	"github.com/tobysharp/hornet/pkg/tx"
)

// SpendRecord describes one input spend resolved against the unspent
// set.
type SpendRecord struct {
	// FundingHeight is the height of the block that created the output.
	FundingHeight int32
	// FundingCoinbase is true when the funding transaction was a
	// coinbase.
	FundingCoinbase bool
	// Amount is the output value in satoshis.
	Amount int64
	// PkScript is the output's locking script.
	PkScript []byte
	// Tx is the spending transaction.
	Tx *tx.Transaction
	// InputIndex is the index of the spending input within Tx.
	InputIndex int
}

// View is the sole channel through which block validation reads
// unspent-output data.
type View interface {
	// ForEachSpend resolves every input of every non-coinbase
	// transaction in the block and invokes fn with its spend record, in
	// block order. It returns the first error from fn, or a resolution
	// error for a missing output.
	ForEachSpend(blk *block.Block, fn func(SpendRecord) error) error
}
