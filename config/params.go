package config

import (
	"time"

	"github.com/tobysharp/hornet/pkg/block"
	"github.com/tobysharp/hornet/pkg/pow"
	"github.com/tobysharp/hornet/pkg/types"
	"github.com/tobysharp/hornet/pkg/wire"
)

// Params holds the consensus parameters of one network.
type Params struct {
	Name string
	Net  wire.BitcoinNet

	// Genesis.
	GenesisHeader *block.Header
	GenesisHash   types.Hash

	// Proof of work.
	PowLimitBits       pow.CompactTarget
	RetargetInterval   int32         // Blocks between difficulty adjustments.
	TargetTimespan     time.Duration // RetargetInterval x TargetSpacing.
	TargetSpacing      time.Duration
	AllowMinDifficulty bool // Testnet: allow pow-limit blocks after a gap.
	NoRetargeting      bool // Regtest: difficulty never adjusts.

	// BIP activation heights.
	BIP34Height  int32
	BIP66Height  int32
	BIP65Height  int32
	BIP141Height int32

	// Block limits.
	MaxBlockBaseSize   int
	MaxBlockWeight     int
	MaxBlockSigOpsCost int

	// Coinbase signature script length bounds.
	MinCoinbaseScriptLen int
	MaxCoinbaseScriptLen int
}

// IsRetargetHeight returns true when the difficulty adjusts at the given
// height.
func (p *Params) IsRetargetHeight(height int32) bool {
	return height%p.RetargetInterval == 0
}

// PowLimit returns the expanded proof-of-work limit target.
func (p *Params) PowLimit() pow.Target {
	t, err := p.PowLimitBits.Expand()
	if err != nil {
		panic("invalid pow limit bits: " + err.Error())
	}
	return t
}

// MainNetParams defines the main Bitcoin network.
var MainNetParams = Params{
	Name: "mainnet",
	Net:  wire.MainNet,

	GenesisHeader: genesisHeader,
	GenesisHash:   GenesisHash,

	PowLimitBits:     0x1d00ffff,
	RetargetInterval: 2016,
	TargetTimespan:   14 * 24 * time.Hour,
	TargetSpacing:    10 * time.Minute,

	BIP34Height:  227931,
	BIP66Height:  363725,
	BIP65Height:  388381,
	BIP141Height: 481824,

	MaxBlockBaseSize:   1_000_000,
	MaxBlockWeight:     4_000_000,
	MaxBlockSigOpsCost: 80_000,

	MinCoinbaseScriptLen: 2,
	MaxCoinbaseScriptLen: 100,
}

// TestNetParams defines the test network (version 3).
var TestNetParams = Params{
	Name: "testnet",
	Net:  wire.TestNet,

	GenesisHeader: testNetGenesisHeader,
	GenesisHash:   TestNetGenesisHash,

	PowLimitBits:       0x1d00ffff,
	RetargetInterval:   2016,
	TargetTimespan:     14 * 24 * time.Hour,
	TargetSpacing:      10 * time.Minute,
	AllowMinDifficulty: true,

	BIP34Height:  21111,
	BIP66Height:  330776,
	BIP65Height:  581885,
	BIP141Height: 834624,

	MaxBlockBaseSize:   1_000_000,
	MaxBlockWeight:     4_000_000,
	MaxBlockSigOpsCost: 80_000,

	MinCoinbaseScriptLen: 2,
	MaxCoinbaseScriptLen: 100,
}

// RegNetParams defines the local regression-test network: trivial
// difficulty, no retargeting, all BIPs active from the start.
var RegNetParams = Params{
	Name: "regnet",
	Net:  wire.RegNet,

	GenesisHeader: regNetGenesisHeader,
	GenesisHash:   RegNetGenesisHash,

	PowLimitBits:       0x207fffff,
	RetargetInterval:   2016,
	TargetTimespan:     14 * 24 * time.Hour,
	TargetSpacing:      10 * time.Minute,
	AllowMinDifficulty: true,
	NoRetargeting:      true,

	BIP34Height:  0,
	BIP66Height:  0,
	BIP65Height:  0,
	BIP141Height: 0,

	MaxBlockBaseSize:   1_000_000,
	MaxBlockWeight:     4_000_000,
	MaxBlockSigOpsCost: 80_000,

	MinCoinbaseScriptLen: 2,
	MaxCoinbaseScriptLen: 100,
}

// ParamsForNetwork maps a network name to its parameters.
func ParamsForNetwork(name string) (*Params, bool) {
	switch name {
	case "", "mainnet":
		return &MainNetParams, true
	case "testnet":
		return &TestNetParams, true
	case "regnet", "regtest":
		return &RegNetParams, true
	}
	return nil, false
}
