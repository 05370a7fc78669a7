package consensus

import (
	"fmt"

	"github.com/tobysharp/hornet/config"
	"github.com/tobysharp/hornet/pkg/block"
)

// BlockValidationContext carries a structurally valid block, its
// candidate height, and an ancestry view rooted at its parent.
type BlockValidationContext struct {
	Block  *block.Block
	Height int32
	View   HeaderAncestryView
	Params *config.Params
}

// BlockRule is one ordered entry of the contextual block ruleset.
type BlockRule struct {
	Name  string
	BIP   BIP
	Check func(*BlockValidationContext) error
}

// structuralBlockRules is the fixed, ordered context-free ruleset.
var structuralBlockRules = []func(*block.Block) error{
	checkTransactionCount,
	checkMerkleRoot,
	checkBlockSize,
	checkCoinbasePlacement,
	checkBlockTransactions,
	checkSigOpCount,
}

// BlockContextRules returns the fixed, ordered contextual ruleset.
func BlockContextRules() []BlockRule {
	return []BlockRule{
		{Name: "final-transactions", Check: checkFinalTransactions},
		{Name: "coinbase-height", BIP: BIP34, Check: checkCoinbaseHeight},
		{Name: "witness-commitment", BIP: BIP141, Check: checkWitnessCommitment},
		{Name: "block-weight", Check: checkBlockWeight},
	}
}

// ValidateBlockStructure runs the context-free ruleset in order.
func ValidateBlockStructure(blk *block.Block) error {
	for _, rule := range structuralBlockRules {
		if err := rule(blk); err != nil {
			return err
		}
	}
	return nil
}

// ValidateBlockContext runs the contextual ruleset in order, skipping
// rules whose deployment is not active at the block height.
func ValidateBlockContext(bctx *BlockValidationContext) error {
	for _, rule := range BlockContextRules() {
		if rule.BIP != BIPNone && !Enabled(bctx.Params, rule.BIP, bctx.Height) {
			continue
		}
		if err := rule.Check(bctx); err != nil {
			return err
		}
	}
	return nil
}

// ValidateBlock runs the structural then the contextual ruleset.
func ValidateBlock(bctx *BlockValidationContext) error {
	if err := ValidateBlockStructure(bctx.Block); err != nil {
		return err
	}
	return ValidateBlockContext(bctx)
}

func checkTransactionCount(blk *block.Block) error {
	if len(blk.Transactions) == 0 {
		return ErrBadTransactionCount
	}
	return nil
}

func checkMerkleRoot(blk *block.Block) error {
	computed := blk.MerkleRoot()
	if blk.Header.MerkleRoot != computed {
		return fmt.Errorf("%w: header %s, computed %s",
			ErrBadMerkleRoot, blk.Header.MerkleRoot, computed)
	}
	return nil
}

func checkBlockSize(blk *block.Block) error {
	if size := blk.BaseSize(); size > MaxTxBaseSize {
		return fmt.Errorf("%w: %d bytes", ErrBadSize, size)
	}
	return nil
}

func checkCoinbasePlacement(blk *block.Block) error {
	if !blk.Transactions[0].IsCoinbase() {
		return fmt.Errorf("%w: first transaction is not a coinbase", ErrBadCoinbase)
	}
	for i, t := range blk.Transactions[1:] {
		if t.IsCoinbase() {
			return fmt.Errorf("%w: extra coinbase at index %d", ErrBadCoinbase, i+1)
		}
	}
	return nil
}

func checkBlockTransactions(blk *block.Block) error {
	for i, t := range blk.Transactions {
		if err := ValidateTransaction(t); err != nil {
			return fmt.Errorf("%w: index %d: %w", ErrBadTransaction, i, err)
		}
	}
	return nil
}

func checkSigOpCount(blk *block.Block) error {
	cost := 0
	for _, t := range blk.Transactions {
		for i := range t.Inputs {
			cost += WitnessScaleFactor * CountScriptSigOps(t.Inputs[i].SignatureScript)
		}
		for i := range t.Outputs {
			cost += WitnessScaleFactor * CountScriptSigOps(t.Outputs[i].PkScript)
		}
	}
	if cost > MaxBlockSigOpsCost {
		return fmt.Errorf("%w: cost %d", ErrBadSigOpCount, cost)
	}
	return nil
}

func checkFinalTransactions(bctx *BlockValidationContext) error {
	// Time-based lock times compare against median time past, so a
	// miner cannot unlock transactions by inflating the header
	// timestamp.
	cutoff := int64(MedianTimePast(bctx.View))
	for i, t := range bctx.Block.Transactions {
		if !t.IsFinal(bctx.Height, cutoff) {
			return fmt.Errorf("%w: index %d", ErrNonFinalTransaction, i)
		}
	}
	return nil
}

func checkCoinbaseHeight(bctx *BlockValidationContext) error {
	want := BIP34HeightPush(bctx.Height)
	script := bctx.Block.Transactions[0].Inputs[0].SignatureScript
	if len(script) < len(want) {
		return fmt.Errorf("%w: script shorter than height push", ErrBadCoinbaseHeight)
	}
	for i := range want {
		if script[i] != want[i] {
			return fmt.Errorf("%w: height %d not committed", ErrBadCoinbaseHeight, bctx.Height)
		}
	}
	return nil
}

func checkBlockWeight(bctx *BlockValidationContext) error {
	if w := bctx.Block.Weight(); w > bctx.Params.MaxBlockWeight {
		return fmt.Errorf("%w: weight %d", ErrBadBlockWeight, w)
	}
	return nil
}

// BIP34HeightPush returns the script prefix a coinbase signature script
// must begin with: the minimal push of the block height.
func BIP34HeightPush(height int32) []byte {
	if height >= 1 && height <= 16 {
		// OP_1 through OP_16.
		return []byte{0x50 + byte(height)}
	}
	if height == 0 {
		return []byte{0x00}
	}
	// Minimal little-endian number push with a sign-padding byte when
	// the top bit is set.
	var num []byte
	for v := height; v > 0; v >>= 8 {
		num = append(num, byte(v&0xff))
	}
	if num[len(num)-1]&0x80 != 0 {
		num = append(num, 0x00)
	}
	return append([]byte{byte(len(num))}, num...)
}
