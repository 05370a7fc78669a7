package consensus

import "github.com/tobysharp/hornet/config"

// BIP names a height-gated consensus deployment.
type BIP int

// Deployments referenced by the rulesets.
const (
	BIPNone BIP = iota
	BIP34       // coinbase height commitment, v1 retirement
	BIP66       // strict DER, v2 retirement
	BIP65       // CLTV, v3 retirement
	BIP94       // testnet min-difficulty exception
	BIP141      // segregated witness
)

// String returns the deployment name.
func (b BIP) String() string {
	switch b {
	case BIP34:
		return "bip34"
	case BIP66:
		return "bip66"
	case BIP65:
		return "bip65"
	case BIP94:
		return "bip94"
	case BIP141:
		return "bip141"
	}
	return "none"
}

// Enabled reports whether a deployment is active at the given height on
// the given network.
func Enabled(p *config.Params, b BIP, height int32) bool {
	switch b {
	case BIPNone:
		return true
	case BIP34:
		return height >= p.BIP34Height
	case BIP66:
		return height >= p.BIP66Height
	case BIP65:
		return height >= p.BIP65Height
	case BIP94:
		return p.AllowMinDifficulty
	case BIP141:
		return height >= p.BIP141Height
	}
	return false
}
