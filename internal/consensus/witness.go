package consensus

import (
	"bytes"
	"fmt"

	"github.com/tobysharp/hornet/pkg/crypto"
	"github.com/tobysharp/hornet/pkg/types"
)

// witnessCommitmentHeader prefixes the coinbase output carrying the
// witness commitment: OP_RETURN, a 36-byte push, and the BIP141 magic.
var witnessCommitmentHeader = []byte{0x6a, 0x24, 0xaa, 0x21, 0xa9, 0xed}

// witnessNonceSize is the required length of the coinbase witness item.
const witnessNonceSize = 32

// checkWitnessCommitment verifies the BIP141 coinbase commitment. Blocks
// without witness data need no commitment; blocks with any witness data
// must commit to the witness merkle root combined with the coinbase
// witness nonce.
func checkWitnessCommitment(bctx *BlockValidationContext) error {
	blk := bctx.Block
	coinbase := blk.Transactions[0]

	// The commitment is in the last output whose script starts with the
	// magic prefix.
	var commitment []byte
	for i := len(coinbase.Outputs) - 1; i >= 0; i-- {
		script := coinbase.Outputs[i].PkScript
		if len(script) >= len(witnessCommitmentHeader)+types.HashSize &&
			bytes.Equal(script[:len(witnessCommitmentHeader)], witnessCommitmentHeader) {
			commitment = script[len(witnessCommitmentHeader) : len(witnessCommitmentHeader)+types.HashSize]
			break
		}
	}

	if commitment == nil {
		for _, t := range blk.Transactions {
			if t.HasWitness() {
				return fmt.Errorf("%w: tx %s", ErrUnexpectedWitness, t.TxID())
			}
		}
		return nil
	}

	witness := coinbase.Inputs[0].Witness
	if len(witness) != 1 || len(witness[0]) != witnessNonceSize {
		return fmt.Errorf("%w: %d items", ErrBadWitnessNonce, len(witness))
	}

	root := blk.WitnessMerkleRoot()
	var buf [2 * types.HashSize]byte
	copy(buf[:types.HashSize], root[:])
	copy(buf[types.HashSize:], witness[0])
	computed := crypto.DoubleHash(buf[:])

	if !bytes.Equal(computed[:], commitment) {
		return fmt.Errorf("%w: committed %x, computed %s", ErrBadWitnessMerkle, commitment, computed)
	}
	return nil
}
