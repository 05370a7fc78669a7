package utxo

import (
	"fmt"
	"sync"

	"github.com/tobysharp/hornet/pkg/block"
	"github.com/tobysharp/hornet/pkg/types"
)

// entry is one unspent output.
type entry struct {
	amount   int64
	pkScript []byte
	height   int32
	coinbase bool
}

// MemorySet is an in-memory unspent-output set.
type MemorySet struct {
	mu      sync.RWMutex
	entries map[types.Outpoint]entry
}

// NewMemorySet creates an empty set.
func NewMemorySet() *MemorySet {
	return &MemorySet{entries: make(map[types.Outpoint]entry)}
}

// ApplyBlock spends the block's inputs and adds its outputs. The block
// must already have passed structural validation.
func (m *MemorySet) ApplyBlock(blk *block.Block, height int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, t := range blk.Transactions {
		coinbase := i == 0
		if !coinbase {
			for j := range t.Inputs {
				op := t.Inputs[j].PreviousOutpoint
				if _, ok := m.entries[op]; !ok {
					return fmt.Errorf("spend of unknown output %s", op)
				}
				delete(m.entries, op)
			}
		}
		txid := t.TxID()
		for j := range t.Outputs {
			m.entries[types.Outpoint{TxID: txid, Index: uint32(j)}] = entry{
				amount:   t.Outputs[j].Value,
				pkScript: t.Outputs[j].PkScript,
				height:   height,
				coinbase: coinbase,
			}
		}
	}
	return nil
}

// HasOutputsFor reports whether every non-coinbase input of the block
// resolves. The pipeline uses it as its readiness probe.
func (m *MemorySet) HasOutputsFor(blk *block.Block) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i, t := range blk.Transactions {
		if i == 0 {
			continue
		}
		for j := range t.Inputs {
			if _, ok := m.entries[t.Inputs[j].PreviousOutpoint]; !ok {
				return false
			}
		}
	}
	return true
}

// ForEachSpend implements View.
func (m *MemorySet) ForEachSpend(blk *block.Block, fn func(SpendRecord) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, t := range blk.Transactions {
		if i == 0 {
			continue
		}
		for j := range t.Inputs {
			op := t.Inputs[j].PreviousOutpoint
			e, ok := m.entries[op]
			if !ok {
				return fmt.Errorf("input %d of tx %s spends unknown output %s", j, t.TxID(), op)
			}
			rec := SpendRecord{
				FundingHeight:   e.height,
				FundingCoinbase: e.coinbase,
				Amount:          e.amount,
				PkScript:        e.pkScript,
				Tx:              t,
				InputIndex:      j,
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

var _ View = (*MemorySet)(nil)
