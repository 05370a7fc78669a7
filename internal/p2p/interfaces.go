// Package p2p implements peer-to-peer networking for hornet: the
// boundary interfaces the chain-state core consumes, and their libp2p
// implementation carrying the Bitcoin wire envelope over streams.
package p2p

import (
	"sync"
	"sync/atomic"

	libpeer "github.com/libp2p/go-libp2p/core/peer"
)

// PeerID identifies a connected peer. IDs are issued by the registry
// and never reused; equality is by value, never by pointer.
type PeerID uint64

// SharedPeer is the registry's view of one connection.
type SharedPeer struct {
	ID     PeerID
	Remote libpeer.ID
	Addr   string

	Handshake *Handshake

	sendMu sync.Mutex
	send   func(Message) error

	startHeight atomic.Int32
	version     atomic.Uint32
}

// Send writes one message to the peer. Writes are serialized per peer.
func (p *SharedPeer) Send(msg Message) error {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	return p.send(msg)
}

// Version returns the protocol version the peer announced, zero before
// its version message arrives.
func (p *SharedPeer) Version() uint32 { return p.version.Load() }

// StartHeight returns the chain height the peer announced.
func (p *SharedPeer) StartHeight() int32 { return p.startHeight.Load() }

// Broadcaster sends messages to one or all peers.
type Broadcaster interface {
	SendToOne(peer PeerID, msg Message) error
	SendToAll(msg Message)
}

// PeerRegistry resolves peer IDs to live peers.
type PeerRegistry interface {
	Lookup(peer PeerID) (*SharedPeer, bool)
	ForEach(fn func(*SharedPeer))
}

// EventHandler receives connection lifecycle and message events. One
// method per message kind; embed BaseHandler to implement only the
// events of interest.
type EventHandler interface {
	OnPeerConnect(peer PeerID)
	OnPeerDisconnect(peer PeerID)
	OnHandshakeComplete(peer PeerID)
	OnLoop()

	OnVersion(peer PeerID, msg *MsgVersion)
	OnVerAck(peer PeerID, msg *MsgVerAck)
	OnPing(peer PeerID, msg *MsgPing)
	OnPong(peer PeerID, msg *MsgPong)
	OnGetHeaders(peer PeerID, msg *MsgGetHeaders)
	OnHeaders(peer PeerID, msg *MsgHeaders)
	OnBlock(peer PeerID, msg *MsgBlock)
	OnSendCmpct(peer PeerID, msg *MsgSendCmpct)
}

// BaseHandler is a no-op EventHandler; every method forwards to
// OnUnhandled.
type BaseHandler struct{}

// OnUnhandled receives every event a derived handler does not override.
func (BaseHandler) OnUnhandled() {}

func (b BaseHandler) OnPeerConnect(PeerID)               { b.OnUnhandled() }
func (b BaseHandler) OnPeerDisconnect(PeerID)            { b.OnUnhandled() }
func (b BaseHandler) OnHandshakeComplete(PeerID)         { b.OnUnhandled() }
func (b BaseHandler) OnLoop()                            { b.OnUnhandled() }
func (b BaseHandler) OnVersion(PeerID, *MsgVersion)      { b.OnUnhandled() }
func (b BaseHandler) OnVerAck(PeerID, *MsgVerAck)        { b.OnUnhandled() }
func (b BaseHandler) OnPing(PeerID, *MsgPing)            { b.OnUnhandled() }
func (b BaseHandler) OnPong(PeerID, *MsgPong)            { b.OnUnhandled() }
func (b BaseHandler) OnGetHeaders(PeerID, *MsgGetHeaders) { b.OnUnhandled() }
func (b BaseHandler) OnHeaders(PeerID, *MsgHeaders)      { b.OnUnhandled() }
func (b BaseHandler) OnBlock(PeerID, *MsgBlock)          { b.OnUnhandled() }
func (b BaseHandler) OnSendCmpct(PeerID, *MsgSendCmpct)  { b.OnUnhandled() }
