package tx

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/tobysharp/hornet/pkg/wire"
)

// Serialization limits. These bound allocation during decode; consensus
// size rules are enforced separately.
const (
	maxInputsPerTx   = 100_000
	maxOutputsPerTx  = 100_000
	maxScriptSize    = 1_000_000
	maxWitnessItems  = 100_000
	maxWitnessItemSz = 1_000_000
)

// ErrBadWitnessFlag is returned when decoding a witness-tagged
// transaction with a bad marker or flag byte.
var ErrBadWitnessFlag = errors.New("invalid witness marker or flag")

// Serialize writes the transaction, using the BIP141 witness-tagged format
// when any input has witness data and the legacy format otherwise.
func (t *Transaction) Serialize(w io.Writer) error {
	return t.serialize(w, t.HasWitness())
}

// SerializeNoWitness writes the legacy format regardless of witness data.
// This is the serialization hashed for the transaction ID.
func (t *Transaction) SerializeNoWitness(w io.Writer) error {
	return t.serialize(w, false)
}

func (t *Transaction) serialize(w io.Writer, witness bool) error {
	if err := wire.WriteInt32(w, t.Version); err != nil {
		return err
	}
	if witness {
		// Marker and flag distinguish the extended format from a
		// zero-input legacy transaction.
		if _, err := w.Write([]byte{0x00, 0x01}); err != nil {
			return err
		}
	}
	if err := wire.WriteVarInt(w, uint64(len(t.Inputs))); err != nil {
		return err
	}
	for i := range t.Inputs {
		in := &t.Inputs[i]
		if err := wire.WriteHash(w, in.PreviousOutpoint.TxID); err != nil {
			return err
		}
		if err := wire.WriteUint32(w, in.PreviousOutpoint.Index); err != nil {
			return err
		}
		if err := wire.WriteVarBytes(w, in.SignatureScript); err != nil {
			return err
		}
		if err := wire.WriteUint32(w, in.Sequence); err != nil {
			return err
		}
	}
	if err := wire.WriteVarInt(w, uint64(len(t.Outputs))); err != nil {
		return err
	}
	for i := range t.Outputs {
		out := &t.Outputs[i]
		if err := wire.WriteInt64(w, out.Value); err != nil {
			return err
		}
		if err := wire.WriteVarBytes(w, out.PkScript); err != nil {
			return err
		}
	}
	if witness {
		for i := range t.Inputs {
			items := t.Inputs[i].Witness
			if err := wire.WriteVarInt(w, uint64(len(items))); err != nil {
				return err
			}
			for _, item := range items {
				if err := wire.WriteVarBytes(w, item); err != nil {
					return err
				}
			}
		}
	}
	return wire.WriteUint32(w, t.LockTime)
}

// Deserialize reads a transaction in either the legacy or the
// witness-tagged format.
func (t *Transaction) Deserialize(r io.Reader) error {
	version, err := wire.ReadInt32(r)
	if err != nil {
		return err
	}
	t.Version = version

	count, err := wire.ReadVarInt(r)
	if err != nil {
		return err
	}

	witness := false
	if count == 0 {
		// Either a zero-input transaction or the BIP141 marker. The flag
		// byte decides.
		flag, err := wire.ReadVarInt(r)
		if err != nil {
			return err
		}
		if flag != 0x01 {
			return fmt.Errorf("%w: flag %#02x", ErrBadWitnessFlag, flag)
		}
		witness = true
		count, err = wire.ReadVarInt(r)
		if err != nil {
			return err
		}
	}
	if count > maxInputsPerTx {
		return fmt.Errorf("too many inputs: %d", count)
	}

	t.Inputs = make([]Input, count)
	for i := range t.Inputs {
		in := &t.Inputs[i]
		if in.PreviousOutpoint.TxID, err = wire.ReadHash(r); err != nil {
			return err
		}
		if in.PreviousOutpoint.Index, err = wire.ReadUint32(r); err != nil {
			return err
		}
		if in.SignatureScript, err = wire.ReadVarBytes(r, maxScriptSize); err != nil {
			return err
		}
		if in.Sequence, err = wire.ReadUint32(r); err != nil {
			return err
		}
	}

	outCount, err := wire.ReadVarInt(r)
	if err != nil {
		return err
	}
	if outCount > maxOutputsPerTx {
		return fmt.Errorf("too many outputs: %d", outCount)
	}
	t.Outputs = make([]Output, outCount)
	for i := range t.Outputs {
		out := &t.Outputs[i]
		if out.Value, err = wire.ReadInt64(r); err != nil {
			return err
		}
		if out.PkScript, err = wire.ReadVarBytes(r, maxScriptSize); err != nil {
			return err
		}
	}

	if witness {
		for i := range t.Inputs {
			items, err := wire.ReadVarInt(r)
			if err != nil {
				return err
			}
			if items > maxWitnessItems {
				return fmt.Errorf("too many witness items: %d", items)
			}
			if items == 0 {
				continue
			}
			t.Inputs[i].Witness = make([][]byte, items)
			for j := range t.Inputs[i].Witness {
				t.Inputs[i].Witness[j], err = wire.ReadVarBytes(r, maxWitnessItemSz)
				if err != nil {
					return err
				}
			}
		}
	}

	t.LockTime, err = wire.ReadUint32(r)
	return err
}

// SerializeSize returns the full serialized size in bytes, including
// witness data when present.
func (t *Transaction) SerializeSize() int {
	var buf bytes.Buffer
	_ = t.Serialize(&buf)
	return buf.Len()
}

// BaseSize returns the serialized size without witness data.
func (t *Transaction) BaseSize() int {
	var buf bytes.Buffer
	_ = t.SerializeNoWitness(&buf)
	return buf.Len()
}

// Weight returns the BIP141 transaction weight:
// 3 x base size + total size.
func (t *Transaction) Weight() int {
	return 3*t.BaseSize() + t.SerializeSize()
}
