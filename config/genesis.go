package config

import (
	"math"

	"github.com/tobysharp/hornet/pkg/block"
	"github.com/tobysharp/hornet/pkg/tx"
	"github.com/tobysharp/hornet/pkg/types"
)

// GenesisCoinbaseTx is the single transaction of the genesis block. The
// signature script carries the well-known newspaper headline.
var GenesisCoinbaseTx = &tx.Transaction{
	Version: 1,
	Inputs: []tx.Input{{
		PreviousOutpoint: types.Outpoint{Index: math.MaxUint32},
		SignatureScript: []byte{
			0x04, 0xff, 0xff, 0x00, 0x1d, 0x01, 0x04, 0x45, // |.......E|
			0x54, 0x68, 0x65, 0x20, 0x54, 0x69, 0x6d, 0x65, // |The Time|
			0x73, 0x20, 0x30, 0x33, 0x2f, 0x4a, 0x61, 0x6e, // |s 03/Jan|
			0x2f, 0x32, 0x30, 0x30, 0x39, 0x20, 0x43, 0x68, // |/2009 Ch|
			0x61, 0x6e, 0x63, 0x65, 0x6c, 0x6c, 0x6f, 0x72, // |ancellor|
			0x20, 0x6f, 0x6e, 0x20, 0x62, 0x72, 0x69, 0x6e, // | on brin|
			0x6b, 0x20, 0x6f, 0x66, 0x20, 0x73, 0x65, 0x63, // |k of sec|
			0x6f, 0x6e, 0x64, 0x20, 0x62, 0x61, 0x69, 0x6c, // |ond bail|
			0x6f, 0x75, 0x74, 0x20, 0x66, 0x6f, 0x72, 0x20, // |out for |
			0x62, 0x61, 0x6e, 0x6b, 0x73, //                    |banks|
		},
		Sequence: tx.SequenceFinal,
	}},
	Outputs: []tx.Output{{
		Value: 50_0000_0000,
		PkScript: []byte{
			0x41, 0x04, 0x67, 0x8a, 0xfd, 0xb0, 0xfe, 0x55,
			0x48, 0x27, 0x19, 0x67, 0xf1, 0xa6, 0x71, 0x30,
			0xb7, 0x10, 0x5c, 0xd6, 0xa8, 0x28, 0xe0, 0x39,
			0x09, 0xa6, 0x79, 0x62, 0xe0, 0xea, 0x1f, 0x61,
			0xde, 0xb6, 0x49, 0xf6, 0xbc, 0x3f, 0x4c, 0xef,
			0x38, 0xc4, 0xf3, 0x55, 0x04, 0xe5, 0x1e, 0xc1,
			0x12, 0xde, 0x5c, 0x38, 0x4d, 0xf7, 0xba, 0x0b,
			0x8d, 0x57, 0x8a, 0x4c, 0x70, 0x2b, 0x6b, 0xf1,
			0x1d, 0x5f, 0xac,
		},
	}},
}

// genesisMerkleRoot is the ID of the genesis coinbase transaction.
var genesisMerkleRoot = types.MustHashFromStr(
	"4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b")

// GenesisHash is the main-network genesis block hash.
var GenesisHash = types.MustHashFromStr(
	"000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f")

// TestNetGenesisHash is the test-network genesis block hash.
var TestNetGenesisHash = types.MustHashFromStr(
	"000000000933ea01ad0ee984209779baaec3ced90fa3f408719526f8d77f4943")

// RegNetGenesisHash is the regression-network genesis block hash.
var RegNetGenesisHash = types.MustHashFromStr(
	"0f9188f13cb7b2c71f2a335e3a4fc328bf5beb436012afca590b1a11466e2206")

var genesisHeader = block.NewHeader(
	1, types.Hash{}, genesisMerkleRoot, 1231006505, 0x1d00ffff, 2083236893)

var testNetGenesisHeader = block.NewHeader(
	1, types.Hash{}, genesisMerkleRoot, 1296688602, 0x1d00ffff, 414098458)

var regNetGenesisHeader = block.NewHeader(
	1, types.Hash{}, genesisMerkleRoot, 1296688602, 0x207fffff, 2)

// GenesisBlock returns the genesis block for the given parameters.
func GenesisBlock(p *Params) *block.Block {
	return block.NewBlock(p.GenesisHeader, []*tx.Transaction{GenesisCoinbaseTx})
}
