package tx

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/tobysharp/hornet/pkg/types"
)

// witnessTx returns a one-in one-out transaction carrying witness data.
func witnessTx(t *testing.T) *Transaction {
	t.Helper()
	prev, err := types.NewHashFromStr(
		"1111111111111111111111111111111111111111111111111111111111111111")
	if err != nil {
		t.Fatalf("fixture hash: %v", err)
	}
	pkScript := append([]byte{0x00, 0x14}, bytes.Repeat([]byte{0x22}, 20)...)
	return &Transaction{
		Version: 2,
		Inputs: []Input{{
			PreviousOutpoint: types.Outpoint{TxID: prev, Index: 1},
			Sequence:         0xfffffffe,
			Witness:          [][]byte{{0xaa}, {0xbb, 0xcc}},
		}},
		Outputs: []Output{{Value: 50000, PkScript: pkScript}},
	}
}

func TestSerializeNoWitness(t *testing.T) {
	const want = "020000000111111111111111111111111111111111111111111111111111111111111111110100000000feffffff0150c3000000000000160014222222222222222222222222222222222222222200000000"

	var buf bytes.Buffer
	if err := witnessTx(t).SerializeNoWitness(&buf); err != nil {
		t.Fatalf("SerializeNoWitness: %v", err)
	}
	if got := hex.EncodeToString(buf.Bytes()); got != want {
		t.Errorf("legacy serialization =\n%s, want\n%s", got, want)
	}
}

func TestSerializeWitness(t *testing.T) {
	const want = "02000000000101111111111111111111111111111111111111111111111111111111111111111101" +
		"00000000feffffff0150c300000000000016001422222222222222222222222222222222222222220201aa02bbcc00000000"

	var buf bytes.Buffer
	if err := witnessTx(t).Serialize(&buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if got := hex.EncodeToString(buf.Bytes()); got != want {
		t.Errorf("witness serialization =\n%s, want\n%s", got, want)
	}
}

func TestTxIDAndWTxID(t *testing.T) {
	tr := witnessTx(t)

	const wantTxID = "53f2709c687b25fd81d5d8dcb76b89b0671522de79b8ada653bd03639997e2b7"
	const wantWTxID = "08e1098943969e7cdb3e4fbe6b57fe2c889db0aed88b767b69d906b6be848d03"

	if got := tr.TxID(); got.String() != wantTxID {
		t.Errorf("TxID = %s, want %s", got, wantTxID)
	}
	if got := tr.WTxID(); got.String() != wantWTxID {
		t.Errorf("WTxID = %s, want %s", got, wantWTxID)
	}
}

func TestDeserializeRoundTrip(t *testing.T) {
	orig := witnessTx(t)
	var buf bytes.Buffer
	if err := orig.Serialize(&buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	var decoded Transaction
	if err := decoded.Deserialize(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if decoded.TxID() != orig.TxID() {
		t.Errorf("txid changed across round trip")
	}
	if decoded.WTxID() != orig.WTxID() {
		t.Errorf("wtxid changed across round trip")
	}
	if len(decoded.Inputs[0].Witness) != 2 {
		t.Errorf("witness items = %d, want 2", len(decoded.Inputs[0].Witness))
	}
}

func TestDeserializeLegacy(t *testing.T) {
	orig := witnessTx(t)
	orig.Inputs[0].Witness = nil

	var buf bytes.Buffer
	if err := orig.Serialize(&buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	var decoded Transaction
	if err := decoded.Deserialize(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if decoded.HasWitness() {
		t.Error("legacy decode reports witness data")
	}
	if decoded.TxID() != orig.TxID() {
		t.Error("txid changed across legacy round trip")
	}
}

func TestDeserializeBadWitnessFlag(t *testing.T) {
	// version | marker 0x00 | flag 0x02 is invalid.
	raw := append([]byte{0x02, 0x00, 0x00, 0x00}, 0x00, 0x02)
	var decoded Transaction
	if err := decoded.Deserialize(bytes.NewReader(raw)); err == nil {
		t.Error("expected error for bad witness flag")
	}
}

func TestWeight(t *testing.T) {
	tr := witnessTx(t)
	base := tr.BaseSize()
	total := tr.SerializeSize()
	if total <= base {
		t.Fatalf("total %d should exceed base %d for a witness tx", total, base)
	}
	if got, want := tr.Weight(), 3*base+total; got != want {
		t.Errorf("Weight = %d, want %d", got, want)
	}
}

func TestIsCoinbase(t *testing.T) {
	cb := &Transaction{
		Version: 1,
		Inputs: []Input{{
			PreviousOutpoint: types.Outpoint{Index: 0xffffffff},
			SignatureScript:  []byte{0x51},
		}},
		Outputs: []Output{{Value: 50}},
	}
	if !cb.IsCoinbase() {
		t.Error("null-prevout single input should be coinbase")
	}
	if witnessTx(t).IsCoinbase() {
		t.Error("regular spend misidentified as coinbase")
	}
}

func TestIsFinal(t *testing.T) {
	tests := []struct {
		name     string
		lockTime uint32
		sequence uint32
		height   int32
		time     int64
		want     bool
	}{
		{"zero locktime", 0, 0, 100, 0, true},
		{"height lock passed", 90, 0, 100, 0, true},
		{"height lock active", 150, 0, 100, 0, false},
		{"height lock active but final seq", 150, SequenceFinal, 100, 0, true},
		{"time lock passed", 600_000_000, 0, 100, 600_000_001, true},
		{"time lock active", 600_000_000, 0, 100, 500_000_000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := witnessTx(t)
			tr.LockTime = tt.lockTime
			tr.Inputs[0].Sequence = tt.sequence
			if got := tr.IsFinal(tt.height, tt.time); got != tt.want {
				t.Errorf("IsFinal = %v, want %v", got, tt.want)
			}
		})
	}
}
