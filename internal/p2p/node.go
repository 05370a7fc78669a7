package p2p

import (
	"bufio"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	libpeer "github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/multiformats/go-multiaddr"
	"github.com/rs/zerolog"

	"github.com/tobysharp/hornet/config"
	"github.com/tobysharp/hornet/internal/log"
)

// WireProtocol is the libp2p protocol ID carrying the Bitcoin message
// envelope.
const WireProtocol = protocol.ID("/hornet/wire/1.0.0")

// connectTimeout bounds outbound dials to seeds.
const connectTimeout = 10 * time.Second

// Config holds P2P node configuration.
type Config struct {
	ListenAddr string
	Port       int
	Seeds      []string
	NoDiscover bool
	Params     *config.Params
}

// Node is the libp2p-backed transport: it owns the host, the peer
// registry, and the gossip/discovery machinery, and feeds decoded
// messages to the registered EventHandler.
type Node struct {
	cfg      Config
	host     host.Host
	registry *Registry
	handler  EventHandler
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pubsub   *pubsub.PubSub
	topicTip *pubsub.Topic
	subTip   *pubsub.Subscription

	tipHandler func(TipAnnouncement)
}

// New creates a P2P node. The handler receives every event; nil panics
// early rather than late.
func New(cfg Config, handler EventHandler) *Node {
	if handler == nil {
		panic("p2p: nil event handler")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Node{
		cfg:      cfg,
		registry: NewRegistry(),
		handler:  handler,
		logger:   log.P2P,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Registry returns the node's peer registry.
func (n *Node) Registry() *Registry { return n.registry }

// Start brings up the libp2p host, stream handler, gossip, and
// discovery, then dials the configured seeds.
func (n *Node) Start() error {
	addr := fmt.Sprintf("/ip4/%s/tcp/%d", n.cfg.ListenAddr, n.cfg.Port)
	h, err := libp2p.New(libp2p.ListenAddrStrings(addr))
	if err != nil {
		return fmt.Errorf("create libp2p host: %w", err)
	}
	n.host = h
	h.SetStreamHandler(WireProtocol, n.handleInbound)

	ps, err := pubsub.NewGossipSub(n.ctx, h)
	if err != nil {
		h.Close()
		return fmt.Errorf("create gossipsub: %w", err)
	}
	n.pubsub = ps
	if err := n.joinTipTopic(); err != nil {
		h.Close()
		return err
	}

	if !n.cfg.NoDiscover {
		if err := n.startDiscovery(); err != nil {
			n.logger.Warn().Err(err).Msg("dht discovery unavailable")
		}
	}

	for _, seed := range n.cfg.Seeds {
		n.wg.Add(1)
		go func(seed string) {
			defer n.wg.Done()
			if err := n.dialSeed(seed); err != nil {
				n.logger.Warn().Str("seed", seed).Err(err).Msg("seed dial failed")
			}
		}(seed)
	}

	n.logger.Info().Str("addr", addr).Stringer("id", h.ID()).Msg("p2p listening")
	return nil
}

// Stop tears the node down and waits for its goroutines.
func (n *Node) Stop() {
	n.cancel()
	if n.subTip != nil {
		n.subTip.Cancel()
	}
	if n.host != nil {
		_ = n.host.Close()
	}
	n.wg.Wait()
}

// dialSeed connects to one seed multiaddress and opens a wire stream.
func (n *Node) dialSeed(seed string) error {
	maddr, err := multiaddr.NewMultiaddr(seed)
	if err != nil {
		return fmt.Errorf("parse seed %q: %w", seed, err)
	}
	info, err := libpeer.AddrInfoFromP2pAddr(maddr)
	if err != nil {
		return fmt.Errorf("seed %q has no peer id: %w", seed, err)
	}

	ctx, cancel := context.WithTimeout(n.ctx, connectTimeout)
	defer cancel()
	if err := n.host.Connect(ctx, *info); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	stream, err := n.host.NewStream(n.ctx, info.ID, WireProtocol)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	n.runPeer(stream, true)
	return nil
}

// handleInbound serves one inbound wire stream.
func (n *Node) handleInbound(stream network.Stream) {
	n.runPeer(stream, false)
}

// runPeer registers the connection and pumps its messages until the
// stream closes. The initiator sends its version message first.
func (n *Node) runPeer(stream network.Stream, initiator bool) {
	writer := bufio.NewWriter(stream)
	var writeMu sync.Mutex
	send := func(msg Message) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := EncodeEnvelope(writer, n.cfg.Params.Net, msg); err != nil {
			return err
		}
		return writer.Flush()
	}

	peer := n.registry.Register(stream.Conn().RemotePeer(),
		stream.Conn().RemoteMultiaddr().String(), send)
	n.handler.OnPeerConnect(peer.ID)

	if initiator {
		if err := n.sendVersion(peer); err != nil {
			n.dropPeer(peer, stream, err)
			return
		}
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		reader := bufio.NewReader(stream)
		for {
			msg, err := DecodeEnvelope(reader, n.cfg.Params.Net)
			if err != nil {
				n.dropPeer(peer, stream, err)
				return
			}
			if msg == nil {
				continue // unknown command, skipped
			}
			n.dispatch(peer, msg, initiator)
			n.handler.OnLoop()
		}
	}()
}

// sendVersion emits our version message and advances the handshake.
func (n *Node) sendVersion(peer *SharedPeer) error {
	msg := &MsgVersion{
		ProtocolVersion: ProtocolVersion(),
		Timestamp:       time.Now().Unix(),
		UserAgent:       UserAgent,
	}
	if err := peer.Send(msg); err != nil {
		return err
	}
	return peer.Handshake.SendVersion()
}

// dispatch routes one decoded message: handshake bookkeeping first,
// then the per-kind handler method.
func (n *Node) dispatch(peer *SharedPeer, msg Message, initiator bool) {
	switch m := msg.(type) {
	case *MsgVersion:
		peer.version.Store(m.ProtocolVersion)
		peer.startHeight.Store(m.StartHeight)
		if !initiator {
			// Responder sends its version after seeing the remote's.
			if err := n.sendVersion(peer); err != nil {
				n.logger.Warn().Uint64("peer", uint64(peer.ID)).Err(err).Msg("send version failed")
				return
			}
		}
		if err := peer.Handshake.RecvVersion(); err != nil {
			n.logger.Warn().Uint64("peer", uint64(peer.ID)).Err(err).Msg("handshake violation")
			return
		}
		_ = peer.Send(&MsgVerAck{})
		n.handler.OnVersion(peer.ID, m)
	case *MsgVerAck:
		if err := peer.Handshake.RecvVerAck(); err != nil {
			n.logger.Warn().Uint64("peer", uint64(peer.ID)).Err(err).Msg("handshake violation")
			return
		}
		n.handler.OnVerAck(peer.ID, m)
		if peer.Handshake.IsComplete() {
			n.handler.OnHandshakeComplete(peer.ID)
		}
	case *MsgPing:
		_ = peer.Send(&MsgPong{Nonce: m.Nonce})
		n.handler.OnPing(peer.ID, m)
	case *MsgPong:
		n.handler.OnPong(peer.ID, m)
	case *MsgGetHeaders:
		n.handler.OnGetHeaders(peer.ID, m)
	case *MsgHeaders:
		n.handler.OnHeaders(peer.ID, m)
	case *MsgBlock:
		n.handler.OnBlock(peer.ID, m)
	case *MsgSendCmpct:
		n.handler.OnSendCmpct(peer.ID, m)
	}
}

// dropPeer removes a peer after a stream failure or protocol violation.
func (n *Node) dropPeer(peer *SharedPeer, stream network.Stream, err error) {
	n.logger.Debug().Uint64("peer", uint64(peer.ID)).Err(err).Msg("peer dropped")
	_ = stream.Reset()
	n.registry.Remove(peer.ID)
	n.handler.OnPeerDisconnect(peer.ID)
}

// DropPeer disconnects the identified peer. The sync layer calls this
// after a consensus failure.
func (n *Node) DropPeer(id PeerID) {
	peer, ok := n.registry.Lookup(id)
	if !ok {
		return
	}
	n.registry.Remove(id)
	_ = n.host.Network().ClosePeer(peer.Remote)
	n.handler.OnPeerDisconnect(id)
}

// SendToOne sends a message to the identified peer.
func (n *Node) SendToOne(id PeerID, msg Message) error {
	peer, ok := n.registry.Lookup(id)
	if !ok {
		return fmt.Errorf("peer %d not connected", id)
	}
	return peer.Send(msg)
}

// SendToAll sends a message to every connected peer.
func (n *Node) SendToAll(msg Message) {
	n.registry.ForEach(func(p *SharedPeer) {
		if err := p.Send(msg); err != nil {
			n.logger.Debug().Uint64("peer", uint64(p.ID)).Err(err).Msg("broadcast send failed")
		}
	})
}

var (
	_ Broadcaster  = (*Node)(nil)
	_ PeerRegistry = (*Registry)(nil)
)
