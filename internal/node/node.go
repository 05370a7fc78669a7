// Package node assembles the chain-state core and its collaborators
// into a runnable full node: storage, timechain, header sync, the block
// pipeline, and the P2P transport.
package node

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tobysharp/hornet/config"
	"github.com/tobysharp/hornet/internal/consensus"
	"github.com/tobysharp/hornet/internal/headersync"
	"github.com/tobysharp/hornet/internal/log"
	"github.com/tobysharp/hornet/internal/p2p"
	"github.com/tobysharp/hornet/internal/pipeline"
	"github.com/tobysharp/hornet/internal/store"
	"github.com/tobysharp/hornet/internal/timechain"
	"github.com/tobysharp/hornet/internal/utxo"
	"github.com/tobysharp/hornet/pkg/block"
	"github.com/tobysharp/hornet/pkg/wire"
)

// Block status values carried by the status sidecar.
const (
	statusHeaderOnly uint8 = iota
	statusBlockValid
	statusBlockInvalid
)

// Node is a fully wired hornet instance.
type Node struct {
	p2p.BaseHandler

	cfg    *config.Config
	params *config.Params
	logger zerolog.Logger

	db      store.DB
	headers *store.HeaderStore

	tc     *timechain.Timechain
	status *timechain.Sidecar[uint8]
	sync   *headersync.Manager
	pipe   *pipeline.Pipeline
	utxos  *utxo.MemorySet

	p2pNode *p2p.Node

	persistMu sync.Mutex
}

// New constructs and initializes a node: logger, storage, timechain
// (replaying persisted headers), sidecars, sync, and the validation
// pipeline. Call Start to begin networking.
func New(cfg *config.Config) (*Node, error) {
	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}

	logFile := cfg.Log.File
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = filepath.Join(logsDir, "hornet.log")
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := log.Node

	logger.Info().
		Str("network", params.Name).
		Stringer("genesis", params.GenesisHash).
		Msg("starting hornet node")

	if err := os.MkdirAll(cfg.ChainDataDir(), 0755); err != nil {
		return nil, fmt.Errorf("creating chain data dir: %w", err)
	}
	db, err := store.NewBadger(cfg.ChainDataDir())
	if err != nil {
		return nil, err
	}

	n := &Node{
		cfg:     cfg,
		params:  params,
		logger:  logger,
		db:      db,
		headers: store.NewHeaderStore(db),
		tc:      timechain.New(params),
		utxos:   utxo.NewMemorySet(),
	}

	if err := n.replayStoredHeaders(); err != nil {
		db.Close()
		return nil, fmt.Errorf("replaying stored headers: %w", err)
	}

	// The status sidecar mirrors the timechain and records how far each
	// entry's validation has progressed.
	n.status = timechain.RegisterSidecar[uint8](n.tc, statusHeaderOnly)

	n.sync = headersync.New(headersync.Config{
		Timechain:  n.tc,
		OnError:    n.onHeaderError,
		OnExtended: func(int) { n.persistHeaders() },
	})

	n.pipe = pipeline.New(pipeline.Config{
		Depth:       cfg.Pipeline.Depth,
		Validate:    n.validateBlock,
		OnComplete:  n.onBlockComplete,
		Ready:       n.blockReady,
		StartHeight: 1,
	})

	n.p2pNode = p2p.New(p2p.Config{
		ListenAddr: cfg.P2P.ListenAddr,
		Port:       cfg.P2P.Port,
		Seeds:      cfg.P2P.Seeds,
		NoDiscover: cfg.P2P.NoDiscover,
		Params:     params,
	}, n)

	return n, nil
}

// Start launches the sync worker and the P2P transport.
func (n *Node) Start() error {
	n.sync.Start()
	if n.cfg.P2P.Enabled {
		if err := n.p2pNode.Start(); err != nil {
			return err
		}
	}
	n.logger.Info().Int32("height", n.tc.Height()).Msg("node started")
	return nil
}

// Stop shuts the node down: transport first so no new work arrives,
// then the pipeline and sync worker, then storage.
func (n *Node) Stop() {
	if n.cfg.P2P.Enabled {
		n.p2pNode.Stop()
	}
	n.pipe.Close()
	n.sync.Stop()
	if err := n.db.Close(); err != nil {
		n.logger.Error().Err(err).Msg("closing database")
	}
	n.logger.Info().Msg("node stopped")
}

// Timechain exposes the header timechain.
func (n *Node) Timechain() *timechain.Timechain { return n.tc }

// replayStoredHeaders feeds persisted canonical headers back through
// full validation. A corrupt store fails startup rather than poisoning
// the timechain.
func (n *Node) replayStoredHeaders() error {
	tip, ok, err := n.headers.Tip()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	var batch []*block.Header
	err = n.headers.WalkCanonical(func(height int32, hdr *block.Header) error {
		batch = append(batch, hdr)
		return nil
	})
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}
	added, err := n.tc.ExtendBatch(n.params.GenesisHash, batch, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("stored header %d invalid: %w", added, err)
	}
	n.logger.Info().
		Int("count", added).
		Int32("tip", tip.Height).
		Msg("replayed stored headers")
	return nil
}

// persistHeaders writes newly canonical headers to the store and
// truncates any stale canonical entries after a reorg.
func (n *Node) persistHeaders() {
	n.persistMu.Lock()
	defer n.persistMu.Unlock()

	tipHeight := n.tc.Height()
	storedTip, ok, err := n.headers.Tip()
	if err != nil {
		n.logger.Error().Err(err).Msg("reading stored tip")
		return
	}

	// Find the first height where the store and the timechain diverge:
	// everything from there up is rewritten, covering reorgs.
	start := int32(1)
	if ok {
		start = storedTip.Height + 1
		if start > tipHeight+1 {
			start = tipHeight + 1
		}
		for h := start - 1; h >= 1; h-- {
			storedHash, serr := n.headers.GetCanonical(h)
			chainHash, inChain := n.tc.HashAtHeight(h)
			if serr == nil && inChain && storedHash == chainHash {
				break
			}
			start = h
		}
		if start <= storedTip.Height {
			if err := n.headers.TruncateCanonical(start - 1); err != nil {
				n.logger.Error().Err(err).Msg("truncating canonical index")
				return
			}
		}
	}

	for h := start; h <= tipHeight; h++ {
		hdr, okh := n.tc.HeaderAtHeight(h)
		if !okh {
			break
		}
		if err := n.headers.AppendCanonical(hdr, h); err != nil {
			n.logger.Error().Err(err).Int32("height", h).Msg("persisting header")
			return
		}
	}
}

// onHeaderError fires when a peer supplied an invalid header: the peer
// is disconnected and its queued work is already dropped.
func (n *Node) onHeaderError(peer p2p.PeerID, hdr *block.Header, err error) {
	n.logger.Warn().
		Uint64("peer", uint64(peer)).
		Stringer("hash", hdr.Hash()).
		Err(err).
		Msg("dropping peer for invalid header")
	n.p2pNode.DropPeer(peer)
}

// blockReady reports whether a block's funding outputs are available
// yet. A false answer defers the job behind other queued work.
func (n *Node) blockReady(blk *block.Block, height int32) bool {
	return n.utxos.HasOutputsFor(blk)
}

// validateBlock runs the full block rulesets for one candidate, plus a
// spend pass over the unspent-output view when the funding outputs are
// already in.
func (n *Node) validateBlock(blk *block.Block, height int32) error {
	if err := consensus.ValidateBlockStructure(blk); err != nil {
		return err
	}
	view, ok := n.tc.SnapshotView(blk.Header.PrevBlock)
	if !ok {
		return fmt.Errorf("%w: %s", consensus.ErrParentNotFound, blk.Header.PrevBlock)
	}
	bctx := &consensus.BlockValidationContext{
		Block:  blk,
		Height: height,
		View:   view,
		Params: n.params,
	}
	if err := consensus.ValidateBlockContext(bctx); err != nil {
		return err
	}

	// Script execution lives in an external collaborator; here the
	// spend pass confirms every input resolves to a sane output.
	if n.utxos.HasOutputsFor(blk) {
		return n.utxos.ForEachSpend(blk, func(rec utxo.SpendRecord) error {
			if rec.Amount < 0 || rec.Amount > consensus.MaxMoney {
				return fmt.Errorf("spend of output with amount %d", rec.Amount)
			}
			return nil
		})
	}
	return nil
}

// onBlockComplete retires one block, in strict height order.
func (n *Node) onBlockComplete(blk *block.Block, height int32, result error) {
	hash := blk.Hash()
	if result != nil {
		n.status.Set(height, hash, statusBlockInvalid)
		n.logger.Warn().
			Int32("height", height).
			Stringer("hash", hash).
			Err(result).
			Msg("block rejected")
		return
	}

	if err := n.utxos.ApplyBlock(blk, height); err != nil {
		n.logger.Error().Int32("height", height).Err(err).Msg("applying block outputs")
		return
	}
	n.status.Set(height, hash, statusBlockValid)
	if n.cfg.P2P.Enabled {
		if err := n.p2pNode.AnnounceTip(height, hash); err != nil {
			n.logger.Debug().Err(err).Msg("tip announcement failed")
		}
	}
	n.logger.Info().Int32("height", height).Stringer("hash", hash).Msg("block connected")
}

// OnHandshakeComplete begins header sync with the new peer.
func (n *Node) OnHandshakeComplete(peer p2p.PeerID) {
	req := n.sync.Initiate(peer)
	if req == nil {
		return
	}
	n.sendGetHeaders(peer, req)
}

// OnHeaders feeds a downloaded batch to the sync worker and issues the
// follow-up request for full batches.
func (n *Node) OnHeaders(peer p2p.PeerID, msg *p2p.MsgHeaders) {
	if follow := n.sync.OnHeaders(peer, msg.Headers); follow != nil {
		n.sendGetHeaders(peer, follow)
	}
}

// OnGetHeaders serves canonical headers after the first recognized
// locator entry.
func (n *Node) OnGetHeaders(peer p2p.PeerID, msg *p2p.MsgGetHeaders) {
	start := int32(0)
	for _, h := range msg.Locator {
		if height, ok := n.tc.HeightOf(h); ok {
			if chainHash, inChain := n.tc.HashAtHeight(height); inChain && chainHash == h {
				start = height
				break
			}
		}
	}

	var headers []*block.Header
	for h := start + 1; h <= n.tc.Height() && len(headers) < wire.MaxBlockHeadersPerMsg; h++ {
		hdr, ok := n.tc.HeaderAtHeight(h)
		if !ok {
			break
		}
		headers = append(headers, hdr)
		if !msg.HashStop.IsZero() && hdr.Hash() == msg.HashStop {
			break
		}
	}
	if err := n.p2pNode.SendToOne(peer, &p2p.MsgHeaders{Headers: headers}); err != nil {
		n.logger.Debug().Uint64("peer", uint64(peer)).Err(err).Msg("headers send failed")
	}
}

// OnBlock schedules a downloaded block for validation. Blocks without a
// known header are ignored; headers-first sync delivers the header
// before the block.
func (n *Node) OnBlock(peer p2p.PeerID, msg *p2p.MsgBlock) {
	height, ok := n.tc.HeightOf(msg.Block.Hash())
	if !ok {
		n.logger.Debug().
			Stringer("hash", msg.Block.Hash()).
			Msg("block without known header ignored")
		return
	}
	if height == 0 {
		return
	}
	if err := n.pipe.Submit(msg.Block, height); err != nil {
		n.logger.Debug().Int32("height", height).Err(err).Msg("block submit rejected")
	}
}

// sendGetHeaders converts a sync request into a wire message.
func (n *Node) sendGetHeaders(peer p2p.PeerID, req *headersync.GetHeadersRequest) {
	msg := &p2p.MsgGetHeaders{
		ProtocolVersion: wire.ProtocolVersion,
		Locator:         req.Locator,
		HashStop:        req.HashStop,
	}
	if err := n.p2pNode.SendToOne(peer, msg); err != nil {
		n.logger.Debug().Uint64("peer", uint64(peer)).Err(err).Msg("getheaders send failed")
	}
}
