package p2p

import (
	"bytes"
	"fmt"
	"io"

	"github.com/tobysharp/hornet/pkg/block"
	"github.com/tobysharp/hornet/pkg/types"
	"github.com/tobysharp/hornet/pkg/wire"
)

// Message is one decoded peer-to-peer message. The set of kinds is
// closed; dispatch is by concrete type, one EventHandler method per
// kind.
type Message interface {
	Command() string
	Encode(w io.Writer) error
	Decode(r io.Reader) error
}

// maxUserAgentLen bounds the version message user agent.
const maxUserAgentLen = 256

// MsgVersion announces a peer's protocol capabilities.
type MsgVersion struct {
	ProtocolVersion uint32
	Services        uint64
	Timestamp       int64
	Nonce           uint64
	UserAgent       string
	StartHeight     int32
}

func (m *MsgVersion) Command() string { return wire.CmdVersion }

func (m *MsgVersion) Encode(w io.Writer) error {
	if err := wire.WriteUint32(w, m.ProtocolVersion); err != nil {
		return err
	}
	if err := wire.WriteUint64(w, m.Services); err != nil {
		return err
	}
	if err := wire.WriteInt64(w, m.Timestamp); err != nil {
		return err
	}
	if err := wire.WriteUint64(w, m.Nonce); err != nil {
		return err
	}
	if err := wire.WriteVarBytes(w, []byte(m.UserAgent)); err != nil {
		return err
	}
	return wire.WriteInt32(w, m.StartHeight)
}

func (m *MsgVersion) Decode(r io.Reader) error {
	var err error
	if m.ProtocolVersion, err = wire.ReadUint32(r); err != nil {
		return err
	}
	if m.Services, err = wire.ReadUint64(r); err != nil {
		return err
	}
	if m.Timestamp, err = wire.ReadInt64(r); err != nil {
		return err
	}
	if m.Nonce, err = wire.ReadUint64(r); err != nil {
		return err
	}
	agent, err := wire.ReadVarBytes(r, maxUserAgentLen)
	if err != nil {
		return err
	}
	m.UserAgent = string(agent)
	m.StartHeight, err = wire.ReadInt32(r)
	return err
}

// MsgVerAck acknowledges a version message.
type MsgVerAck struct{}

func (m *MsgVerAck) Command() string           { return wire.CmdVerAck }
func (m *MsgVerAck) Encode(io.Writer) error    { return nil }
func (m *MsgVerAck) Decode(io.Reader) error    { return nil }

// MsgPing is a keepalive probe.
type MsgPing struct{ Nonce uint64 }

func (m *MsgPing) Command() string        { return wire.CmdPing }
func (m *MsgPing) Encode(w io.Writer) error { return wire.WriteUint64(w, m.Nonce) }
func (m *MsgPing) Decode(r io.Reader) error {
	var err error
	m.Nonce, err = wire.ReadUint64(r)
	return err
}

// MsgPong answers a ping.
type MsgPong struct{ Nonce uint64 }

func (m *MsgPong) Command() string        { return wire.CmdPong }
func (m *MsgPong) Encode(w io.Writer) error { return wire.WriteUint64(w, m.Nonce) }
func (m *MsgPong) Decode(r io.Reader) error {
	var err error
	m.Nonce, err = wire.ReadUint64(r)
	return err
}

// MsgGetHeaders requests headers after the first locator hash the
// responder recognizes, up to the stop hash or the per-message cap.
type MsgGetHeaders struct {
	ProtocolVersion uint32
	Locator         []types.Hash
	HashStop        types.Hash
}

func (m *MsgGetHeaders) Command() string { return wire.CmdGetHeaders }

func (m *MsgGetHeaders) Encode(w io.Writer) error {
	if err := wire.WriteUint32(w, m.ProtocolVersion); err != nil {
		return err
	}
	if err := wire.WriteVarInt(w, uint64(len(m.Locator))); err != nil {
		return err
	}
	for _, h := range m.Locator {
		if err := wire.WriteHash(w, h); err != nil {
			return err
		}
	}
	return wire.WriteHash(w, m.HashStop)
}

func (m *MsgGetHeaders) Decode(r io.Reader) error {
	var err error
	if m.ProtocolVersion, err = wire.ReadUint32(r); err != nil {
		return err
	}
	count, err := wire.ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > wire.MaxBlockLocatorHashes {
		return fmt.Errorf("too many locator hashes: %d", count)
	}
	m.Locator = make([]types.Hash, count)
	for i := range m.Locator {
		if m.Locator[i], err = wire.ReadHash(r); err != nil {
			return err
		}
	}
	m.HashStop, err = wire.ReadHash(r)
	return err
}

// MsgHeaders delivers a batch of headers. Each header is followed by a
// zero transaction count on the wire.
type MsgHeaders struct {
	Headers []*block.Header
}

func (m *MsgHeaders) Command() string { return wire.CmdHeaders }

func (m *MsgHeaders) Encode(w io.Writer) error {
	if err := wire.WriteVarInt(w, uint64(len(m.Headers))); err != nil {
		return err
	}
	for _, h := range m.Headers {
		if err := h.Serialize(w); err != nil {
			return err
		}
		if err := wire.WriteVarInt(w, 0); err != nil {
			return err
		}
	}
	return nil
}

func (m *MsgHeaders) Decode(r io.Reader) error {
	count, err := wire.ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > wire.MaxBlockHeadersPerMsg {
		return fmt.Errorf("too many headers: %d", count)
	}
	m.Headers = make([]*block.Header, count)
	for i := range m.Headers {
		m.Headers[i] = &block.Header{}
		if err := m.Headers[i].Deserialize(r); err != nil {
			return err
		}
		txCount, err := wire.ReadVarInt(r)
		if err != nil {
			return err
		}
		if txCount != 0 {
			return fmt.Errorf("headers entry %d carries %d transactions", i, txCount)
		}
	}
	return nil
}

// MsgBlock delivers one full block.
type MsgBlock struct {
	Block *block.Block
}

func (m *MsgBlock) Command() string { return wire.CmdBlock }

func (m *MsgBlock) Encode(w io.Writer) error { return m.Block.Serialize(w) }

func (m *MsgBlock) Decode(r io.Reader) error {
	m.Block = &block.Block{}
	return m.Block.Deserialize(r)
}

// MsgSendCmpct negotiates compact block relay.
type MsgSendCmpct struct {
	Announce bool
	Version  uint64
}

func (m *MsgSendCmpct) Command() string { return wire.CmdSendCmpct }

func (m *MsgSendCmpct) Encode(w io.Writer) error {
	b := byte(0)
	if m.Announce {
		b = 1
	}
	if _, err := w.Write([]byte{b}); err != nil {
		return err
	}
	return wire.WriteUint64(w, m.Version)
}

func (m *MsgSendCmpct) Decode(r io.Reader) error {
	var flag [1]byte
	if _, err := io.ReadFull(r, flag[:]); err != nil {
		return err
	}
	m.Announce = flag[0] != 0
	var err error
	m.Version, err = wire.ReadUint64(r)
	return err
}

// EncodeEnvelope frames a message for the wire.
func EncodeEnvelope(w io.Writer, net wire.BitcoinNet, msg Message) error {
	var payload bytes.Buffer
	if err := msg.Encode(&payload); err != nil {
		return err
	}
	return wire.WriteMessage(w, net, msg.Command(), payload.Bytes())
}

// DecodeEnvelope reads one framed message and decodes its payload into
// the matching concrete type. Unknown commands return (nil, nil) so the
// read loop can skip them, as Bitcoin nodes do.
func DecodeEnvelope(r io.Reader, net wire.BitcoinNet) (Message, error) {
	env, err := wire.ReadMessage(r, net)
	if err != nil {
		return nil, err
	}

	var msg Message
	switch env.Command {
	case wire.CmdVersion:
		msg = &MsgVersion{}
	case wire.CmdVerAck:
		msg = &MsgVerAck{}
	case wire.CmdPing:
		msg = &MsgPing{}
	case wire.CmdPong:
		msg = &MsgPong{}
	case wire.CmdGetHeaders:
		msg = &MsgGetHeaders{}
	case wire.CmdHeaders:
		msg = &MsgHeaders{}
	case wire.CmdBlock:
		msg = &MsgBlock{}
	case wire.CmdSendCmpct:
		msg = &MsgSendCmpct{}
	default:
		return nil, nil
	}
	if err := msg.Decode(bytes.NewReader(env.Payload)); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Command, err)
	}
	return msg, nil
}
