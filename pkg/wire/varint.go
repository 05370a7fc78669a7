// Package wire implements the peer-to-peer message envelope and the
// primitive serialization helpers shared by the block and transaction
// codecs.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/tobysharp/hornet/pkg/types"
)

// ErrNonCanonicalVarInt is returned when a CompactSize value uses more
// bytes than necessary.
var ErrNonCanonicalVarInt = errors.New("non-canonical compact size")

// WriteVarInt serializes n using the CompactSize encoding.
func WriteVarInt(w io.Writer, n uint64) error {
	switch {
	case n < 0xfd:
		return writeByte(w, byte(n))
	case n <= 0xffff:
		if err := writeByte(w, 0xfd); err != nil {
			return err
		}
		return WriteUint16(w, uint16(n))
	case n <= 0xffffffff:
		if err := writeByte(w, 0xfe); err != nil {
			return err
		}
		return WriteUint32(w, uint32(n))
	default:
		if err := writeByte(w, 0xff); err != nil {
			return err
		}
		return WriteUint64(w, n)
	}
}

// ReadVarInt deserializes a CompactSize value, rejecting non-canonical
// encodings.
func ReadVarInt(r io.Reader) (uint64, error) {
	disc, err := readByte(r)
	if err != nil {
		return 0, err
	}
	switch disc {
	case 0xfd:
		v, err := ReadUint16(r)
		if err != nil {
			return 0, err
		}
		if v < 0xfd {
			return 0, fmt.Errorf("%w: %d encoded with 0xfd", ErrNonCanonicalVarInt, v)
		}
		return uint64(v), nil
	case 0xfe:
		v, err := ReadUint32(r)
		if err != nil {
			return 0, err
		}
		if v <= 0xffff {
			return 0, fmt.Errorf("%w: %d encoded with 0xfe", ErrNonCanonicalVarInt, v)
		}
		return uint64(v), nil
	case 0xff:
		v, err := ReadUint64(r)
		if err != nil {
			return 0, err
		}
		if v <= 0xffffffff {
			return 0, fmt.Errorf("%w: %d encoded with 0xff", ErrNonCanonicalVarInt, v)
		}
		return v, nil
	default:
		return uint64(disc), nil
	}
}

// VarIntSerializeSize returns the number of bytes WriteVarInt emits for n.
func VarIntSerializeSize(n uint64) int {
	switch {
	case n < 0xfd:
		return 1
	case n <= 0xffff:
		return 3
	case n <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func readByte(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// WriteUint16 writes a little-endian uint16.
func WriteUint16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// WriteUint32 writes a little-endian uint32.
func WriteUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// WriteUint64 writes a little-endian uint64.
func WriteUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// WriteInt32 writes a little-endian signed int32.
func WriteInt32(w io.Writer, v int32) error {
	return WriteUint32(w, uint32(v))
}

// WriteInt64 writes a little-endian signed int64.
func WriteInt64(w io.Writer, v int64) error {
	return WriteUint64(w, uint64(v))
}

// ReadUint16 reads a little-endian uint16.
func ReadUint16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

// ReadUint32 reads a little-endian uint32.
func ReadUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// ReadUint64 reads a little-endian uint64.
func ReadUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// ReadInt32 reads a little-endian signed int32.
func ReadInt32(r io.Reader) (int32, error) {
	v, err := ReadUint32(r)
	return int32(v), err
}

// ReadInt64 reads a little-endian signed int64.
func ReadInt64(r io.Reader) (int64, error) {
	v, err := ReadUint64(r)
	return int64(v), err
}

// WriteHash writes a hash in internal byte order.
func WriteHash(w io.Writer, h types.Hash) error {
	_, err := w.Write(h[:])
	return err
}

// ReadHash reads a hash in internal byte order.
func ReadHash(r io.Reader) (types.Hash, error) {
	var h types.Hash
	_, err := io.ReadFull(r, h[:])
	return h, err
}

// WriteVarBytes writes a length-prefixed byte slice.
func WriteVarBytes(w io.Writer, b []byte) error {
	if err := WriteVarInt(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadVarBytes reads a length-prefixed byte slice, rejecting lengths above
// maxAllowed.
func ReadVarBytes(r io.Reader, maxAllowed uint64) ([]byte, error) {
	n, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if n > maxAllowed {
		return nil, fmt.Errorf("variable length byte field of %d bytes exceeds limit %d", n, maxAllowed)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
