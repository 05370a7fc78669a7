package timechain

import (
	"errors"
	"testing"

	"github.com/tobysharp/hornet/config"
	"github.com/tobysharp/hornet/internal/consensus"
	"github.com/tobysharp/hornet/pkg/block"
	"github.com/tobysharp/hornet/pkg/types"
)

// regnet difficulty is trivial: a few nonce attempts find a block.
var testParams = &config.RegNetParams

// mineHeader builds a header linking to prev, mining the nonce until
// the regnet target is met.
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

// mineChain mines n headers extending prev, spaced at the target block
// interval.
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

func genesisTime() uint32 { return testParams.GenesisHeader.Timestamp }

// now returns a wall clock comfortably ahead of the given timestamp.
func now(ts uint32) int64 { return int64(ts) + 60 }

func TestNewPreloadsGenesis(t *testing.T) {
	tc := New(testParams)
	if got := tc.Height(); got != 0 {
		t.Errorf("Height = %d, want 0", got)
	}
	tip := tc.TipKey()
	if tip.Hash != testParams.GenesisHash || tip.Height != 0 {
		t.Errorf("TipKey = %s, want genesis", tip)
	}
	ctx := tc.TipContext()
	if ctx.Height() != 0 || ctx.Hash() != testParams.GenesisHash {
		t.Error("genesis context malformed")
	}
	if ctx.Work().IsZero() {
		t.Error("genesis carries no work")
	}
}

func TestExtendBatch(t *testing.T) {
	tc := New(testParams)
	headers := mineChain(t, testParams.GenesisHash, genesisTime(), 5)

	added, err := tc.ExtendBatch(testParams.GenesisHash, headers, now(headers[4].Timestamp))
	if err != nil {
		t.Fatalf("ExtendBatch: %v", err)
	}
	if added != 5 {
		t.Fatalf("added = %d, want 5", added)
	}
	if tc.Height() != 5 {
		t.Errorf("Height = %d, want 5", tc.Height())
	}
	tip := tc.TipKey()
	if tip.Hash != headers[4].Hash() {
		t.Errorf("tip = %s, want %s", tip.Hash, headers[4].Hash())
	}

	// Every header resolves through its stable key.
	for i, hdr := range headers {
		got, ok := tc.FindStable(int32(i+1), hdr.Hash())
		if !ok {
			t.Errorf("header %d not found by stable key", i+1)
			continue
		}
		if got.Hash() != hdr.Hash() {
			t.Errorf("header %d hash mismatch", i+1)
		}
	}

	// Cumulative work grows one unit of regnet work per block.
	ctx := tc.TipContext()
	if ctx.Work().Cmp(GenesisContext(testParams.GenesisHeader).Work()) <= 0 {
		t.Error("tip work did not accumulate")
	}
}

func TestExtendBatchUnknownParent(t *testing.T) {
	tc := New(testParams)
	headers := mineChain(t, testParams.GenesisHash, genesisTime(), 1)

	var bogus types.Hash
	bogus[0] = 0xab
	added, err := tc.ExtendBatch(bogus, headers, now(headers[0].Timestamp))
	if added != 0 || !errors.Is(err, consensus.ErrParentNotFound) {
		t.Errorf("added=%d err=%v, want 0, ErrParentNotFound", added, err)
	}
}

func TestExtendBatchRejectsMidBatch(t *testing.T) {
	tc := New(testParams)
	headers := mineChain(t, testParams.GenesisHash, genesisTime(), 3)

	// Corrupt the third header: stale timestamp fails median time past.
	bad := mineHeader(t, headers[1].Hash(), genesisTime()-5000)
	batch := []*block.Header{headers[0], headers[1], bad}

	added, err := tc.ExtendBatch(testParams.GenesisHash, batch, now(headers[2].Timestamp))
	if added != 2 {
		t.Errorf("added = %d, want 2", added)
	}
	if !errors.Is(err, consensus.ErrTimestampTooEarly) {
		t.Errorf("err = %v, want ErrTimestampTooEarly", err)
	}
	// The accepted prefix stays.
	if tc.Height() != 2 {
		t.Errorf("Height = %d, want 2", tc.Height())
	}
}

func TestExtendBatchBadDifficulty(t *testing.T) {
	tc := New(testParams)

	// Mine with bits slightly below the limit: proof of work passes,
	// but regnet never retargets so the declared bits are wrong.
	wrongBits := testParams.PowLimitBits - 1
	target, err := wrongBits.Expand()
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	ts := genesisTime() + 600
	var hdr *block.Header
	for nonce := uint32(0); ; nonce++ {
		hdr = block.NewHeader(4, testParams.GenesisHash, types.Hash{}, ts, wrongBits, nonce)
		if target.MetBy(hdr.Hash()) {
			break
		}
	}

	added, err := tc.ExtendBatch(testParams.GenesisHash, []*block.Header{hdr}, now(ts))
	if added != 0 || !errors.Is(err, consensus.ErrBadDifficultyTransition) {
		t.Errorf("added=%d err=%v, want 0, ErrBadDifficultyTransition", added, err)
	}
}

func TestExtendBatchFutureTimestamp(t *testing.T) {
	tc := New(testParams)
	ts := genesisTime() + 600
	hdr := mineHeader(t, testParams.GenesisHash, ts)

	// Wall clock far behind the header.
	past := int64(ts) - consensus.MaxFutureBlockTime - 10
	added, err := tc.ExtendBatch(testParams.GenesisHash, []*block.Header{hdr}, past)
	if added != 0 || !errors.Is(err, consensus.ErrTimestampTooLate) {
		t.Errorf("added=%d err=%v, want 0, ErrTimestampTooLate", added, err)
	}
}

func TestReorgAcrossBatches(t *testing.T) {
	tc := New(testParams)
	main := mineChain(t, testParams.GenesisHash, genesisTime(), 4)
	if _, err := tc.ExtendBatch(testParams.GenesisHash, main, now(main[3].Timestamp)); err != nil {
		t.Fatalf("extend main: %v", err)
	}

	// A longer branch forking after height 2 overtakes the chain.
	fork := mineChain(t, main[1].Hash(), main[1].Timestamp+1, 3)
	if _, err := tc.ExtendBatch(main[1].Hash(), fork, now(fork[2].Timestamp)); err != nil {
		t.Fatalf("extend fork: %v", err)
	}

	if tc.Height() != 5 {
		t.Fatalf("Height = %d, want 5", tc.Height())
	}
	tip := tc.TipKey()
	if tip.Hash != fork[2].Hash() {
		t.Errorf("tip = %s, want fork tip", tip.Hash)
	}
	// Displaced headers remain reachable by stable key.
	for i, hdr := range main[2:] {
		if _, ok := tc.FindStable(int32(i+3), hdr.Hash()); !ok {
			t.Errorf("displaced header at height %d lost", i+3)
		}
	}
	// Canonical entries at those heights are now the fork's.
	for i, hdr := range fork {
		chainHash, ok := tc.HashAtHeight(int32(i + 3))
		if !ok || chainHash != hdr.Hash() {
			t.Errorf("canonical height %d = %s, want fork header", i+3, chainHash)
		}
	}
}

func TestLocatorHashes(t *testing.T) {
	tc := New(testParams)
	headers := mineChain(t, testParams.GenesisHash, genesisTime(), 30)
	if _, err := tc.ExtendBatch(testParams.GenesisHash, headers, now(headers[29].Timestamp)); err != nil {
		t.Fatalf("extend: %v", err)
	}

	locator := tc.LocatorHashes()
	if locator[0] != headers[29].Hash() {
		t.Error("locator does not start at the tip")
	}
	if locator[len(locator)-1] != testParams.GenesisHash {
		t.Error("locator does not end at genesis")
	}
	// Dense for the first ten, then strides double: far fewer than one
	// entry per block.
	if len(locator) >= 30 {
		t.Errorf("locator has %d entries for a 30-block chain", len(locator))
	}
}

func TestSnapshotView(t *testing.T) {
	tc := New(testParams)
	headers := mineChain(t, testParams.GenesisHash, genesisTime(), 5)
	if _, err := tc.ExtendBatch(testParams.GenesisHash, headers, now(headers[4].Timestamp)); err != nil {
		t.Fatalf("extend: %v", err)
	}

	view, ok := tc.SnapshotView(headers[4].Hash())
	if !ok {
		t.Fatal("view for known parent missing")
	}
	if view.Len() != 6 {
		t.Errorf("view.Len = %d, want 6", view.Len())
	}
	last := view.LastTimestamps(3)
	if len(last) != 3 {
		t.Fatalf("LastTimestamps(3) returned %d", len(last))
	}
	if last[2] != headers[4].Timestamp || last[0] != headers[2].Timestamp {
		t.Errorf("window = %v, oldest-to-newest expected", last)
	}
	if ts, ok := view.TimestampAt(5); !ok || ts != headers[4].Timestamp {
		t.Errorf("TimestampAt(5) = %d,%v", ts, ok)
	}

	if _, ok := tc.SnapshotView(types.Hash{0xde, 0xad}); ok {
		t.Error("view for unknown parent resolved")
	}
}
