package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/tobysharp/hornet/pkg/crypto"
)

// Envelope errors.
var (
	ErrWrongNetwork    = errors.New("message from wrong network")
	ErrPayloadTooLarge = errors.New("message payload exceeds limit")
	ErrBadChecksum     = errors.New("message checksum mismatch")
	ErrMalformedHeader = errors.New("malformed message header")
)

// Envelope is one framed peer-to-peer message:
// magic | command (NUL-padded ASCII) | payload length | checksum | payload.
type Envelope struct {
	Command string
	Payload []byte
}

// WriteMessage frames and writes a single message.
func WriteMessage(w io.Writer, net BitcoinNet, command string, payload []byte) error {
	if len(command) > CommandSize {
		return fmt.Errorf("%w: command %q too long", ErrMalformedHeader, command)
	}
	if len(payload) > MaxMessagePayload {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	var cmd [CommandSize]byte
	copy(cmd[:], command)

	var buf bytes.Buffer
	if err := WriteUint32(&buf, uint32(net)); err != nil {
		return err
	}
	if _, err := buf.Write(cmd[:]); err != nil {
		return err
	}
	if err := WriteUint32(&buf, uint32(len(payload))); err != nil {
		return err
	}
	chk := crypto.Checksum(payload)
	if _, err := buf.Write(chk[:]); err != nil {
		return err
	}
	if _, err := buf.Write(payload); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// ReadMessage reads and verifies one framed message. The magic must match
// the expected network and the checksum must match the payload.
func ReadMessage(r io.Reader, net BitcoinNet) (*Envelope, error) {
	magic, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	if BitcoinNet(magic) != net {
		return nil, fmt.Errorf("%w: magic %08x, want %08x", ErrWrongNetwork, magic, uint32(net))
	}

	var cmd [CommandSize]byte
	if _, err := io.ReadFull(r, cmd[:]); err != nil {
		return nil, err
	}
	command := string(bytes.TrimRight(cmd[:], "\x00"))
	if nul := bytes.IndexByte(cmd[:], 0); nul != -1 {
		// Everything after the first NUL must also be NUL.
		for _, b := range cmd[nul:] {
			if b != 0 {
				return nil, fmt.Errorf("%w: command has bytes after NUL padding", ErrMalformedHeader)
			}
		}
	}

	payloadLen, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	if payloadLen > MaxMessagePayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, payloadLen)
	}

	var chk [4]byte
	if _, err := io.ReadFull(r, chk[:]); err != nil {
		return nil, err
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	if crypto.Checksum(payload) != chk {
		return nil, fmt.Errorf("%w: command %q", ErrBadChecksum, command)
	}
	return &Envelope{Command: command, Payload: payload}, nil
}
