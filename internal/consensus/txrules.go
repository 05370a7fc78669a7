package consensus

import (
	"fmt"

	"github.com/tobysharp/hornet/pkg/tx"
	"github.com/tobysharp/hornet/pkg/types"
)

// MaxMoney is the largest valid output value and output total, in
// satoshis.
const MaxMoney int64 = 21_0000_0000_0000_00

// MaxTxBaseSize is the largest allowed non-witness transaction
// serialization.
const MaxTxBaseSize = 1_000_000

// Coinbase signature script length bounds.
const (
	MinCoinbaseScriptLen = 2
	MaxCoinbaseScriptLen = 100
)

// txRules is the fixed, ordered transaction ruleset.
var txRules = []func(*tx.Transaction) error{
	checkTxInputCount,
	checkTxOutputCount,
	checkTxSize,
	checkTxOutputValues,
	checkTxDuplicateInputs,
	checkTxCoinbaseShape,
}

// ValidateTransaction runs the transaction ruleset in order,
// short-circuiting at the first failure.
func ValidateTransaction(t *tx.Transaction) error {
	for _, rule := range txRules {
		if err := rule(t); err != nil {
			return err
		}
	}
	return nil
}

func checkTxInputCount(t *tx.Transaction) error {
	if len(t.Inputs) == 0 {
		return ErrEmptyInputs
	}
	return nil
}

func checkTxOutputCount(t *tx.Transaction) error {
	if len(t.Outputs) == 0 {
		return ErrEmptyOutputs
	}
	return nil
}

func checkTxSize(t *tx.Transaction) error {
	if size := t.BaseSize(); size > MaxTxBaseSize {
		return fmt.Errorf("%w: %d bytes", ErrOversizedByteCount, size)
	}
	return nil
}

func checkTxOutputValues(t *tx.Transaction) error {
	var total int64
	for i := range t.Outputs {
		v := t.Outputs[i].Value
		if v < 0 {
			return fmt.Errorf("%w: output %d", ErrNegativeOutputValue, i)
		}
		if v > MaxMoney {
			return fmt.Errorf("%w: output %d value %d", ErrOversizedOutputValue, i, v)
		}
		total += v
		if total > MaxMoney {
			return fmt.Errorf("%w: running total %d", ErrOversizedTotalOutputValue, total)
		}
	}
	return nil
}

func checkTxDuplicateInputs(t *tx.Transaction) error {
	seen := make(map[types.Outpoint]struct{}, len(t.Inputs))
	for i := range t.Inputs {
		op := t.Inputs[i].PreviousOutpoint
		if _, dup := seen[op]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicatedInput, op)
		}
		seen[op] = struct{}{}
	}
	return nil
}

func checkTxCoinbaseShape(t *tx.Transaction) error {
	if t.IsCoinbase() {
		n := len(t.Inputs[0].SignatureScript)
		if n < MinCoinbaseScriptLen || n > MaxCoinbaseScriptLen {
			return fmt.Errorf("%w: %d bytes", ErrBadCoinbaseScriptSize, n)
		}
		return nil
	}
	for i := range t.Inputs {
		if t.Inputs[i].PreviousOutpoint.IsNull() {
			return fmt.Errorf("%w: input %d", ErrNullPreviousOutput, i)
		}
	}
	return nil
}
