package headersync

import (
	"errors"
	"sync"
	"testing"

	"github.com/tobysharp/hornet/config"
	"github.com/tobysharp/hornet/internal/consensus"
	"github.com/tobysharp/hornet/internal/p2p"
	"github.com/tobysharp/hornet/internal/timechain"
	"github.com/tobysharp/hornet/pkg/block"
	"github.com/tobysharp/hornet/pkg/types"
	"github.com/tobysharp/hornet/pkg/wire"
)

var testParams = &config.RegNetParams

func mineHeader(t *testing.T, prev types.Hash, timestamp uint32) *block.Header {
	t.Helper()
	target := testParams.PowLimit()
	for nonce := uint32(0); ; nonce++ {
		hdr := block.NewHeader(4, prev, types.Hash{}, timestamp, testParams.PowLimitBits, nonce)
		if target.MetBy(hdr.Hash()) {
			return hdr
		}
	}
}

func mineChain(t *testing.T, prev types.Hash, startTime uint32, n int) []*block.Header {
	t.Helper()
	headers := make([]*block.Header, n)
	ts := startTime
	for i := range headers {
		ts += 600
		headers[i] = mineHeader(t, prev, ts)
		prev = headers[i].Hash()
	}
	return headers
}

type errRecord struct {
	peer p2p.PeerID
	hash types.Hash
	err  error
}

// testManager builds an unstarted manager whose clock tracks the last
// mined timestamp; items are processed synchronously via process.
func testManager(t *testing.T, lastTime uint32) (*Manager, *timechain.Timechain, *[]errRecord) {
	t.Helper()
	tc := timechain.New(testParams)
	var mu sync.Mutex
	records := &[]errRecord{}
	m := New(Config{
		Timechain: tc,
		OnError: func(peer p2p.PeerID, hdr *block.Header, err error) {
			mu.Lock()
			*records = append(*records, errRecord{peer: peer, hash: hdr.Hash(), err: err})
			mu.Unlock()
		},
		Now: func() int64 { return int64(lastTime) + 60 },
	})
	return m, tc, records
}

func TestInitiateAnchorsAtTip(t *testing.T) {
	m, tc, _ := testManager(t, testParams.GenesisHeader.Timestamp)
	req := m.Initiate(1)
	if req == nil || len(req.Locator) == 0 {
		t.Fatal("no initial request")
	}
	if req.Locator[0] != tc.TipKey().Hash {
		t.Error("locator does not start at the tip")
	}
}

func TestOnHeadersProcessesBatch(t *testing.T) {
	headers := mineChain(t, testParams.GenesisHash, testParams.GenesisHeader.Timestamp, 5)
	m, tc, records := testManager(t, headers[4].Timestamp)

	if follow := m.OnHeaders(1, headers); follow != nil {
		t.Error("partial batch should not trigger a follow-up request")
	}
	it, ok := m.queue.TryPop()
	if !ok {
		t.Fatal("batch not queued")
	}
	m.process(it)

	if tc.Height() != 5 {
		t.Errorf("Height = %d, want 5", tc.Height())
	}
	if len(*records) != 0 {
		t.Errorf("unexpected error callbacks: %v", *records)
	}
}

func TestOnHeadersFullBatchRequestsMore(t *testing.T) {
	m, _, _ := testManager(t, testParams.GenesisHeader.Timestamp)

	// A synthetic full batch: contents are irrelevant to the follow-up
	// decision, which happens before validation.
	full := make([]*block.Header, wire.MaxBlockHeadersPerMsg)
	prev := testParams.GenesisHash
	ts := testParams.GenesisHeader.Timestamp
	for i := range full {
		ts += 600
		full[i] = block.NewHeader(4, prev, types.Hash{}, ts, testParams.PowLimitBits, 0)
		prev = full[i].Hash()
	}

	follow := m.OnHeaders(1, full)
	if follow == nil {
		t.Fatal("full batch must produce a follow-up request")
	}
	if len(follow.Locator) != 1 || follow.Locator[0] != full[len(full)-1].Hash() {
		t.Error("follow-up not anchored at the last received header")
	}
}

// TestInvalidHeaderDropsPeerQueue: a peer that sends one invalid header
// has all its remaining queued batches discarded; other peers' work
// survives.
func TestInvalidHeaderDropsPeerQueue(t *testing.T) {
	good := mineChain(t, testParams.GenesisHash, testParams.GenesisHeader.Timestamp, 3)
	m, tc, records := testManager(t, good[2].Timestamp)

	// Peer 7's first batch carries a header with an unknown parent.
	var orphanParent types.Hash
	orphanParent[5] = 0xee
	orphan := mineHeader(t, orphanParent, testParams.GenesisHeader.Timestamp+600)

	m.OnHeaders(7, []*block.Header{orphan})
	m.OnHeaders(7, good[:1]) // queued behind the bad batch
	m.OnHeaders(7, good[1:2])
	m.OnHeaders(9, good) // an honest peer's batch

	// Process peer 7's bad batch.
	it, _ := m.queue.TryPop()
	m.process(it)

	if len(*records) != 1 {
		t.Fatalf("error callbacks = %d, want 1", len(*records))
	}
	rec := (*records)[0]
	if rec.peer != 7 || !errors.Is(rec.err, consensus.ErrParentNotFound) {
		t.Errorf("record = %+v, want peer 7 ErrParentNotFound", rec)
	}
	if rec.hash != orphan.Hash() {
		t.Error("error callback names the wrong header")
	}

	// Only peer 9's batch remains.
	if m.QueueLen() != 1 {
		t.Fatalf("QueueLen = %d, want 1", m.QueueLen())
	}
	it, _ = m.queue.TryPop()
	if it.peer != 9 {
		t.Errorf("surviving batch from peer %d, want 9", it.peer)
	}
	m.process(it)
	if tc.Height() != 3 {
		t.Errorf("Height = %d, want 3 from the honest peer", tc.Height())
	}
}

// TestMidBatchFailureKeepsPrefix: headers before the invalid one are
// retained, the failing header is reported.
func TestMidBatchFailureKeepsPrefix(t *testing.T) {
	good := mineChain(t, testParams.GenesisHash, testParams.GenesisHeader.Timestamp, 2)
	m, tc, records := testManager(t, good[1].Timestamp)

	stale := mineHeader(t, good[1].Hash(), testParams.GenesisHeader.Timestamp-9000)
	batch := append(append([]*block.Header{}, good...), stale)

	m.OnHeaders(3, batch)
	it, _ := m.queue.TryPop()
	m.process(it)

	if tc.Height() != 2 {
		t.Errorf("Height = %d, want 2", tc.Height())
	}
	if len(*records) != 1 {
		t.Fatalf("error callbacks = %d, want 1", len(*records))
	}
	if (*records)[0].hash != stale.Hash() {
		t.Error("wrong header reported")
	}
	if !errors.Is((*records)[0].err, consensus.ErrTimestampTooEarly) {
		t.Errorf("err = %v, want ErrTimestampTooEarly", (*records)[0].err)
	}
}

func TestStartStop(t *testing.T) {
	headers := mineChain(t, testParams.GenesisHash, testParams.GenesisHeader.Timestamp, 2)
	m, tc, _ := testManager(t, headers[1].Timestamp)

	done := make(chan struct{})
	m.onExtended = func(int) { close(done) }

	m.Start()
	m.OnHeaders(1, headers)
	<-done
	m.Stop()

	if tc.Height() != 2 {
		t.Errorf("Height = %d, want 2", tc.Height())
	}
}
