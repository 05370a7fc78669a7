package types

import (
	"fmt"
	"math"
)

// Outpoint references an output of a previous transaction.
type Outpoint struct {
	TxID  Hash   `json:"txid"`
	Index uint32 `json:"index"`
}

// IsNull returns true for the distinguished coinbase previous outpoint:
// a zero hash with the maximum output index.
func (o Outpoint) IsNull() bool {
	return o.Index == math.MaxUint32 && o.TxID.IsZero()
}

// String returns "txid:index".
func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID, o.Index)
}
