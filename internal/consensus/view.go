package consensus

import "sort"

// HeaderAncestryView is an immutable view of the ancestor chain of a
// validation candidate. Implementations resolve through the candidate's
// own branch, not the canonical tip, so rules see the same ancestry the
// candidate would extend.
type HeaderAncestryView interface {
	// Len returns the candidate height: ancestors exist at heights
	// 0 .. Len()-1.
	Len() int32
	// TimestampAt returns the timestamp of the ancestor at the given
	// height.
	TimestampAt(height int32) (uint32, bool)
	// LastTimestamps returns up to n most recent ancestor timestamps in
	// oldest-to-newest order, capped at the number of ancestors.
	LastTimestamps(n int32) []uint32
}

// MedianTimestampWindow is the number of trailing ancestors whose median
// timestamp gates a candidate's timestamp.
const MedianTimestampWindow = 11

// CalcMedianTime returns the median of the given timestamps. An empty
// slice yields zero.
func CalcMedianTime(stamps []uint32) uint32 {
	if len(stamps) == 0 {
		return 0
	}
	sorted := make([]uint32, len(stamps))
	copy(sorted, stamps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[len(sorted)/2]
}

// MedianTimePast returns the median of the view's trailing 11 ancestor
// timestamps.
func MedianTimePast(view HeaderAncestryView) uint32 {
	return CalcMedianTime(view.LastTimestamps(MedianTimestampWindow))
}
