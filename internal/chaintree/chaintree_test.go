package chaintree

import (
	"errors"
	"testing"

	"github.com/tobysharp/hornet/pkg/crypto"
	"github.com/tobysharp/hornet/pkg/pow"
	"github.com/tobysharp/hornet/pkg/types"
)

// tctx is a minimal context for tests: one unit of work per entry.
type tctx struct {
	height int32
	hash   types.Hash
	work   uint64
}

func (c *tctx) Height() int32    { return c.height }
func (c *tctx) Hash() types.Hash { return c.hash }
func (c *tctx) Work() pow.Work   { return pow.WorkFromUint64(c.work) }

type tpolicy struct{}

func (tpolicy) Extend(parent *tctx, _ string, hash types.Hash) *tctx {
	return &tctx{height: parent.height + 1, hash: hash, work: parent.work + 1}
}

func (tpolicy) Rewind(child *tctx, _ string, parentHash types.Hash) *tctx {
	return &tctx{height: child.height - 1, hash: parentHash, work: child.work - 1}
}

func nameHash(name string) types.Hash {
	return crypto.DoubleHash([]byte(name))
}

// newTestTree seeds a tree with a genesis entry named "G".
func newTestTree(t *testing.T) *Tree[string, *tctx] {
	t.Helper()
	return New[string, *tctx]("G", &tctx{hash: nameHash("G"), work: 1}, tpolicy{})
}

// extendChain adds name as a child of the current tip.
func extendChain(t *testing.T, tree *Tree[string, *tctx], name string) {
	t.Helper()
	tip, _ := tree.ChainTipContext()
	ctx := &tctx{height: tree.ChainTipHeight() + 1, hash: nameHash(name), work: tip.work + 1}
	if _, moved, err := tree.Add(ChainLocator(tree.ChainTipHeight()), name, ctx); err != nil {
		t.Fatalf("extend %s: %v", name, err)
	} else if len(moved) != 0 {
		t.Fatalf("extend %s unexpectedly reorganized", name)
	}
}

// addFork adds name under the given parent locator with explicit work.
func addFork(t *testing.T, tree *Tree[string, *tctx], parent Locator, name string, height int32, work uint64) []types.Hash {
	t.Helper()
	ctx := &tctx{height: height, hash: nameHash(name), work: work}
	_, moved, err := tree.Add(parent, name, ctx)
	if err != nil {
		t.Fatalf("add fork %s: %v", name, err)
	}
	return moved
}

func TestLinearExtension(t *testing.T) {
	tree := newTestTree(t)
	names := []string{"A", "B", "C", "D", "E"}
	for _, n := range names {
		extendChain(t, tree, n)
	}

	if got, want := tree.ChainLength(), int32(6); got != want {
		t.Errorf("ChainLength = %d, want %d", got, want)
	}
	if got, want := tree.ChainTipHeight(), int32(5); got != want {
		t.Errorf("ChainTipHeight = %d, want %d", got, want)
	}
	// Chain length is always tip height + 1.
	if tree.ChainLength() != tree.ChainTipHeight()+1 {
		t.Error("chain length / tip height invariant broken")
	}
	if tree.ForestSize() != 0 {
		t.Errorf("ForestSize = %d, want 0", tree.ForestSize())
	}
	if tree.ChainTipHash() != nameHash("E") {
		t.Error("tip hash mismatch")
	}
	for i, n := range names {
		data, ok := tree.DataAt(int32(i + 1))
		if !ok || data != n {
			t.Errorf("DataAt(%d) = %q, want %q", i+1, data, n)
		}
	}
}

func TestAddErrors(t *testing.T) {
	tree := newTestTree(t)
	extendChain(t, tree, "A")

	// Unknown parent.
	_, _, err := tree.Add(ForkLocator(nameHash("nope")), "X",
		&tctx{height: 1, hash: nameHash("X"), work: 2})
	if !errors.Is(err, ErrParentNotFound) {
		t.Errorf("unknown parent err = %v, want ErrParentNotFound", err)
	}

	// Height mismatch.
	_, _, err = tree.Add(ChainLocator(1), "Y",
		&tctx{height: 5, hash: nameHash("Y"), work: 3})
	if !errors.Is(err, ErrHeightMismatch) {
		t.Errorf("height mismatch err = %v, want ErrHeightMismatch", err)
	}

	// Duplicate hash.
	_, _, err = tree.Add(ChainLocator(0), "A",
		&tctx{height: 1, hash: nameHash("A"), work: 2})
	if !errors.Is(err, ErrDuplicateHash) {
		t.Errorf("duplicate err = %v, want ErrDuplicateHash", err)
	}
}

// TestReorgDepthTwo is the canonical fork scenario: chain G,A,B,C is
// overtaken by A,B',C',D'.
func TestReorgDepthTwo(t *testing.T) {
	tree := newTestTree(t)
	for _, n := range []string{"A", "B", "C"} {
		extendChain(t, tree, n)
	}
	// Work: G=1, A=2, B=3, C=4.

	aLoc := ChainLocator(1)
	if moved := addFork(t, tree, aLoc, "B'", 2, 3); len(moved) != 0 {
		t.Fatal("equal-work fork should not reorganize")
	}
	if moved := addFork(t, tree, ForkLocator(nameHash("B'")), "C'", 3, 4); len(moved) != 0 {
		t.Fatal("tied fork tip should keep the current chain")
	}

	moved := addFork(t, tree, ForkLocator(nameHash("C'")), "D'", 4, 5)
	if len(moved) != 2 {
		t.Fatalf("moved = %d hashes, want 2", len(moved))
	}
	if moved[0] != nameHash("B") || moved[1] != nameHash("C") {
		t.Errorf("moved = [%s %s], want [B C] hashes", moved[0], moved[1])
	}

	// New canonical chain: G, A, B', C', D'.
	want := []string{"G", "A", "B'", "C'", "D'"}
	for h, n := range want {
		data, ok := tree.DataAt(int32(h))
		if !ok || data != n {
			t.Errorf("chain[%d] = %q, want %q", h, data, n)
		}
	}
	if tree.ChainTipHeight() != 4 {
		t.Errorf("tip height = %d, want 4", tree.ChainTipHeight())
	}

	// Displaced entries live on in the forest.
	for _, n := range []string{"B", "C"} {
		it, ok := tree.Find(ForkLocator(nameHash(n)))
		if !ok {
			t.Errorf("displaced %s not in forest", n)
			continue
		}
		if it.InChain() {
			t.Errorf("displaced %s still reports in-chain", n)
		}
	}

	// The tip outweighs every forest context.
	tip, _ := tree.ChainTipContext()
	for _, n := range []string{"B", "C"} {
		ctx, ok := tree.ContextAt(ForkLocator(nameHash(n)))
		if !ok {
			t.Fatalf("no context for %s", n)
		}
		if tip.Work().Cmp(ctx.Work()) < 0 {
			t.Errorf("forest %s outweighs the tip", n)
		}
	}
}

// TestReorgBack promotes the originally displaced branch again,
// exercising re-parenting of left-behind branches in both directions.
func TestReorgBack(t *testing.T) {
	tree := newTestTree(t)
	for _, n := range []string{"A", "B", "C"} {
		extendChain(t, tree, n)
	}
	addFork(t, tree, ChainLocator(1), "B'", 2, 3)
	addFork(t, tree, ForkLocator(nameHash("B'")), "C'", 3, 4)
	if moved := addFork(t, tree, ForkLocator(nameHash("C'")), "D'", 4, 5); len(moved) != 2 {
		t.Fatal("first reorg did not happen")
	}

	// Extend the displaced branch past the new chain: C gets D, E.
	addFork(t, tree, ForkLocator(nameHash("C")), "D", 4, 5)
	moved := addFork(t, tree, ForkLocator(nameHash("D")), "E", 5, 6)
	if len(moved) != 3 {
		t.Fatalf("second reorg moved %d hashes, want 3", len(moved))
	}
	if moved[0] != nameHash("B'") || moved[1] != nameHash("C'") || moved[2] != nameHash("D'") {
		t.Errorf("second reorg moved wrong entries")
	}

	want := []string{"G", "A", "B", "C", "D", "E"}
	for h, n := range want {
		data, ok := tree.DataAt(int32(h))
		if !ok || data != n {
			t.Errorf("chain[%d] = %q, want %q", h, data, n)
		}
	}
	// The twice-displaced branch is intact in the forest.
	for _, n := range []string{"B'", "C'", "D'"} {
		if _, ok := tree.Find(ForkLocator(nameHash(n))); !ok {
			t.Errorf("%s missing from forest", n)
		}
	}
}

func TestFindTipOrFork(t *testing.T) {
	tree := newTestTree(t)
	extendChain(t, tree, "A")
	extendChain(t, tree, "B")
	addFork(t, tree, ChainLocator(1), "B'", 2, 3)

	it, ctx, ok := tree.FindTipOrFork(nameHash("B"))
	if !ok || !it.InChain() || ctx.Height() != 2 {
		t.Error("tip lookup failed")
	}
	it, ctx, ok = tree.FindTipOrFork(nameHash("B'"))
	if !ok || it.InChain() || ctx.Height() != 2 {
		t.Error("fork lookup failed")
	}
	// A non-tip chain entry is not returned by this lookup.
	if _, _, ok := tree.FindTipOrFork(nameHash("A")); ok {
		t.Error("interior chain entry resolved as tip or fork")
	}
}

func TestAncestorIterator(t *testing.T) {
	tree := newTestTree(t)
	for _, n := range []string{"A", "B", "C"} {
		extendChain(t, tree, n)
	}
	addFork(t, tree, ChainLocator(1), "B'", 2, 3)
	addFork(t, tree, ForkLocator(nameHash("B'")), "C'", 3, 4)

	// From the fork leaf down to genesis: C', B', A, G.
	it, _ := tree.Find(ForkLocator(nameHash("C'")))
	iter := it.AncestorsToHeight(-1)
	var walked []string
	for {
		data, ok := iter.Next()
		if !ok {
			break
		}
		walked = append(walked, data)
	}
	want := []string{"C'", "B'", "A", "G"}
	if len(walked) != len(want) {
		t.Fatalf("walked %v, want %v", walked, want)
	}
	for i := range want {
		if walked[i] != want[i] {
			t.Fatalf("walked %v, want %v", walked, want)
		}
	}
	if iter.Height() != -1 {
		t.Errorf("terminal height = %d, want -1", iter.Height())
	}

	// Bounded walk stops before the end height.
	it2, _ := tree.Find(ChainLocator(3))
	iter2 := it2.AncestorsToHeight(1)
	var bounded []string
	for {
		data, ok := iter2.Next()
		if !ok {
			break
		}
		bounded = append(bounded, data)
	}
	if len(bounded) != 2 || bounded[0] != "C" || bounded[1] != "B" {
		t.Errorf("bounded walk = %v, want [C B]", bounded)
	}
}

func TestAncestorAtHeight(t *testing.T) {
	tree := newTestTree(t)
	for _, n := range []string{"A", "B", "C"} {
		extendChain(t, tree, n)
	}
	addFork(t, tree, ChainLocator(1), "B'", 2, 3)
	addFork(t, tree, ForkLocator(nameHash("B'")), "C'", 3, 4)

	it, _ := tree.Find(ForkLocator(nameHash("C'")))
	tests := []struct {
		height int32
		want   string
	}{
		{3, "C'"},
		{2, "B'"},
		{1, "A"},
		{0, "G"},
	}
	for _, tt := range tests {
		data, ok := it.AncestorAtHeight(tt.height)
		if !ok || data != tt.want {
			t.Errorf("AncestorAtHeight(%d) = %q, want %q", tt.height, data, tt.want)
		}
	}
	// The fork path must not see the displaced chain entry at height 2.
	if data, _ := it.AncestorAtHeight(2); data == "B" {
		t.Error("fork ancestry resolved through the canonical chain")
	}
}

func TestPruneForest(t *testing.T) {
	tree := newTestTree(t)
	for _, n := range []string{"A", "B", "C", "D", "E", "F"} {
		extendChain(t, tree, n)
	}
	// A stale fork off A and a fresh fork off E.
	addFork(t, tree, ChainLocator(1), "old", 2, 1)
	addFork(t, tree, ForkLocator(nameHash("old")), "older", 3, 2)
	addFork(t, tree, ChainLocator(5), "new", 6, 1)

	// Tip height 6, keep depth 3: threshold 3 removes the fork rooted
	// at height 1, keeps the fork rooted at height 5.
	tree.PruneForest(3)

	if _, ok := tree.Find(ForkLocator(nameHash("old"))); ok {
		t.Error("stale fork survived pruning")
	}
	if _, ok := tree.Find(ForkLocator(nameHash("older"))); ok {
		t.Error("stale fork child survived pruning")
	}
	if _, ok := tree.Find(ForkLocator(nameHash("new"))); !ok {
		t.Error("fresh fork was pruned")
	}
	if tree.ForestSize() != 1 {
		t.Errorf("ForestSize = %d, want 1", tree.ForestSize())
	}
}

func TestWalkVisitsEverything(t *testing.T) {
	tree := newTestTree(t)
	extendChain(t, tree, "A")
	extendChain(t, tree, "B")
	addFork(t, tree, ChainLocator(1), "B'", 2, 3)

	var chainSeen, forestSeen []string
	tree.Walk(
		func(_ int32, _ types.Hash, data string) { chainSeen = append(chainSeen, data) },
		func(_ Locator, _ types.Hash, _ int32, data string) { forestSeen = append(forestSeen, data) },
	)
	if len(chainSeen) != 3 || chainSeen[0] != "G" || chainSeen[2] != "B" {
		t.Errorf("chain walk = %v", chainSeen)
	}
	if len(forestSeen) != 1 || forestSeen[0] != "B'" {
		t.Errorf("forest walk = %v", forestSeen)
	}
}
