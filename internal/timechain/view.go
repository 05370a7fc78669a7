package timechain

import "github.com/tobysharp/hornet/internal/consensus"

// ancestryView is a live view over the ancestor path of a candidate at
// the given height, rooted at its parent iterator. It reads the tree
// directly, so the structural lock must be held for its lifetime.
type ancestryView struct {
	parent headerIterator
	height int32
}

// Len returns the candidate height.
func (v *ancestryView) Len() int32 { return v.height }

// TimestampAt resolves a timestamp through the candidate's own branch.
func (v *ancestryView) TimestampAt(height int32) (uint32, bool) {
	hdr, ok := v.parent.AncestorAtHeight(height)
	if !ok {
		return 0, false
	}
	return hdr.Timestamp, true
}

// LastTimestamps returns up to n trailing ancestor timestamps in
// oldest-to-newest order.
func (v *ancestryView) LastTimestamps(n int32) []uint32 {
	if n <= 0 {
		return nil
	}
	end := v.height - 1 - n // exclusive walk bound; -1 floor walks to genesis
	if end < -1 {
		end = -1
	}
	var newestFirst []uint32
	iter := v.parent.AncestorsToHeight(end)
	for {
		hdr, ok := iter.Next()
		if !ok {
			break
		}
		newestFirst = append(newestFirst, hdr.Timestamp)
	}
	for i, j := 0, len(newestFirst)-1; i < j; i, j = i+1, j-1 {
		newestFirst[i], newestFirst[j] = newestFirst[j], newestFirst[i]
	}
	return newestFirst
}

// staticView is a lock-free snapshot of a trailing ancestry window,
// taken for consumers that validate outside the structural lock. It
// answers only what it captured.
type staticView struct {
	height int32
	window []uint32 // oldest-to-newest, covering heights [height-len, height-1]
}

// Len returns the candidate height.
func (v *staticView) Len() int32 { return v.height }

// TimestampAt answers for heights inside the captured window.
func (v *staticView) TimestampAt(height int32) (uint32, bool) {
	base := v.height - int32(len(v.window))
	if height < base || height >= v.height {
		return 0, false
	}
	return v.window[height-base], true
}

// LastTimestamps returns the trailing n captured timestamps.
func (v *staticView) LastTimestamps(n int32) []uint32 {
	if n <= 0 {
		return nil
	}
	if int32(len(v.window)) <= n {
		return v.window
	}
	return v.window[int32(len(v.window))-n:]
}

var (
	_ consensus.HeaderAncestryView = (*ancestryView)(nil)
	_ consensus.HeaderAncestryView = (*staticView)(nil)
)
