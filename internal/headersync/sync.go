// Package headersync drives initial and steady-state header download:
// a single worker consumes batches of downloaded headers, validates
// them against the timechain, and extends it, requesting more as
// batches fill.
package headersync

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tobysharp/hornet/internal/conc"
	"github.com/tobysharp/hornet/internal/log"
	"github.com/tobysharp/hornet/internal/p2p"
	"github.com/tobysharp/hornet/internal/timechain"
	"github.com/tobysharp/hornet/pkg/block"
	"github.com/tobysharp/hornet/pkg/types"
	"github.com/tobysharp/hornet/pkg/wire"
)

// ErrorFunc reports a consensus failure on a downloaded header. The
// collaborator drops the peer's connection in response.
type ErrorFunc func(peer p2p.PeerID, hdr *block.Header, err error)

// GetHeadersRequest asks a peer for headers after the first locator
// entry it recognizes.
type GetHeadersRequest struct {
	Locator  []types.Hash
	HashStop types.Hash
}

// item is one queued unit of work: a batch of headers from one peer.
type item struct {
	peer    p2p.PeerID
	headers []*block.Header
	onError ErrorFunc
}

// Config wires a Manager.
type Config struct {
	Timechain *timechain.Timechain
	// OnError is invoked for each rejected header.
	OnError ErrorFunc
	// OnExtended is invoked after a batch extends the timechain, with
	// the number of headers appended. Optional.
	OnExtended func(count int)
	// Now supplies wall-clock Unix time; defaults to time.Now.
	Now func() int64
}

// Manager owns the header-sync queue and its single worker. Producers
// (message handlers) push from any goroutine; ordering per peer is
// preserved by the FIFO queue and the single consumer.
type Manager struct {
	tc         *timechain.Timechain
	queue      *conc.Queue[item]
	onError    ErrorFunc
	onExtended func(count int)
	now        func() int64
	wg         sync.WaitGroup
	logger     zerolog.Logger
}

// New creates a Manager. Call Start to launch the worker.
func New(cfg Config) *Manager {
	now := cfg.Now
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	return &Manager{
		tc:         cfg.Timechain,
		queue:      conc.NewQueue[item](),
		onError:    cfg.OnError,
		onExtended: cfg.OnExtended,
		now:        now,
		logger:     log.Sync,
	}
}

// Start launches the worker goroutine.
func (m *Manager) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			it, ok := m.queue.WaitPop()
			if !ok {
				return
			}
			m.process(it)
		}
	}()
}

// Stop drains the worker and returns once it exits. Queued batches are
// discarded.
func (m *Manager) Stop() {
	m.queue.Stop()
	m.wg.Wait()
}

// Initiate builds the getheaders request that starts syncing from a
// freshly connected peer, anchored at the current heaviest tip.
func (m *Manager) Initiate(peer p2p.PeerID) *GetHeadersRequest {
	return &GetHeadersRequest{Locator: m.tc.LocatorHashes()}
}

// OnHeaders enqueues a downloaded batch. When the batch is full the
// peer has more: the returned follow-up request is anchored at the last
// received header so the next batch can be fetched while this one waits
// in the queue.
func (m *Manager) OnHeaders(peer p2p.PeerID, headers []*block.Header) *GetHeadersRequest {
	if len(headers) == 0 {
		return nil
	}
	m.queue.Push(item{peer: peer, headers: headers, onError: m.onError})
	headersQueued.Add(float64(len(headers)))

	if len(headers) == wire.MaxBlockHeadersPerMsg {
		last := headers[len(headers)-1]
		return &GetHeadersRequest{Locator: []types.Hash{last.Hash()}}
	}
	return nil
}

// process validates and applies one batch. On the first rejected header
// the error callback fires and every queued batch from the same peer is
// dropped: a peer that sent one invalid header gets no further work.
func (m *Manager) process(it item) {
	prev := it.headers[0].PrevBlock
	added, err := m.tc.ExtendBatch(prev, it.headers, m.now())
	headersAccepted.Add(float64(added))
	if err == nil {
		m.logger.Debug().
			Int("count", added).
			Int32("height", m.tc.Height()).
			Msg("headers extended")
		if m.onExtended != nil {
			m.onExtended(added)
		}
		return
	}

	failed := it.headers[added]
	batchesRejected.Inc()
	dropped := m.queue.EraseIf(func(other item) bool { return other.peer == it.peer })
	m.logger.Warn().
		Uint64("peer", uint64(it.peer)).
		Stringer("hash", failed.Hash()).
		Int("dropped_batches", dropped).
		Err(err).
		Msg("invalid header from peer")
	if it.onError != nil {
		it.onError(it.peer, failed, err)
	}
}

// QueueLen reports the number of pending batches.
func (m *Manager) QueueLen() int { return m.queue.Len() }
