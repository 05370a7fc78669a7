package utxo

import (
	"math"
	"testing"

	"github.com/tobysharp/hornet/pkg/block"
	"github.com/tobysharp/hornet/pkg/tx"
	"github.com/tobysharp/hornet/pkg/types"
)

func coinbase(value int64) *tx.Transaction {
	return &tx.Transaction{
		Version: 1,
		Inputs: []tx.Input{{
			PreviousOutpoint: types.Outpoint{Index: math.MaxUint32},
			SignatureScript:  []byte{0x51, 0x00},
		}},
		Outputs: []tx.Output{{Value: value, PkScript: []byte{0x51}}},
	}
}

func blockWith(txs ...*tx.Transaction) *block.Block {
	return block.NewBlock(&block.Header{Version: 4}, txs)
}

func TestApplyAndSpend(t *testing.T) {
	set := NewMemorySet()

	cb1 := coinbase(50)
	if err := set.ApplyBlock(blockWith(cb1), 1); err != nil {
		t.Fatalf("apply block 1: %v", err)
	}

	spend := &tx.Transaction{
		Version: 1,
		Inputs: []tx.Input{{
			PreviousOutpoint: types.Outpoint{TxID: cb1.TxID(), Index: 0},
		}},
		Outputs: []tx.Output{{Value: 49, PkScript: []byte{0x52}}},
	}
	blk2 := blockWith(coinbase(51), spend)

	if !set.HasOutputsFor(blk2) {
		t.Fatal("funding output not visible")
	}

	var records []SpendRecord
	err := set.ForEachSpend(blk2, func(rec SpendRecord) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		t.Fatalf("ForEachSpend: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.Amount != 50 || rec.FundingHeight != 1 || !rec.FundingCoinbase {
		t.Errorf("record = %+v", rec)
	}
	if rec.InputIndex != 0 || rec.Tx != spend {
		t.Errorf("record identifies the wrong input")
	}

	if err := set.ApplyBlock(blk2, 2); err != nil {
		t.Fatalf("apply block 2: %v", err)
	}
	// The spent output is gone.
	if set.HasOutputsFor(blk2) {
		t.Error("spent output still resolvable")
	}
}

func TestMissingOutput(t *testing.T) {
	set := NewMemorySet()
	spend := &tx.Transaction{
		Version: 1,
		Inputs: []tx.Input{{
			PreviousOutpoint: types.Outpoint{TxID: types.Hash{0x01}, Index: 0},
		}},
		Outputs: []tx.Output{{Value: 1, PkScript: []byte{0x51}}},
	}
	blk := blockWith(coinbase(50), spend)

	if set.HasOutputsFor(blk) {
		t.Error("unknown output reported available")
	}
	if err := set.ForEachSpend(blk, func(SpendRecord) error { return nil }); err == nil {
		t.Error("spend of unknown output resolved")
	}
	if err := set.ApplyBlock(blk, 1); err == nil {
		t.Error("apply with unknown output succeeded")
	}
}
