// Package sequence implements MediaSequenceTracker (spec §3, §4.3): a pure
// value type tracking media-sequence and discontinuity-sequence numbers as
// segments are added to and evicted from a playlist.
package sequence

// Tracker holds media-sequence/discontinuity-sequence bookkeeping. It has no
// mutex of its own: callers (SlidingWindowPlaylist, DVRPlaylist,
// EventPlaylist) own it and serialize access the same way they serialize
// everything else about their state.
type Tracker struct {
	mediaSequence         uint64
	discontinuitySequence uint64
	totalAdded            uint64
	totalEvicted          uint64
	pendingDiscontinuity  bool
	discontinuityIndices  map[uint64]struct{}
}

// New returns a zeroed Tracker, matching a freshly created playlist.
func New() *Tracker {
	return &Tracker{discontinuityIndices: make(map[uint64]struct{})}
}

// SegmentAdded records the addition of segment i. If a discontinuity is
// pending, i is tagged as carrying it and the pending flag is cleared.
func (t *Tracker) SegmentAdded(i uint64) {
	t.totalAdded++
	if t.pendingDiscontinuity {
		t.discontinuityIndices[i] = struct{}{}
		t.pendingDiscontinuity = false
	}
}

// SegmentEvicted records the eviction of segment i: bumps media_sequence and
// total_evicted, and bumps discontinuity_sequence iff i carried a pending
// discontinuity at add time.
func (t *Tracker) SegmentEvicted(i uint64) {
	t.mediaSequence++
	t.totalEvicted++
	if _, ok := t.discontinuityIndices[i]; ok {
		t.discontinuitySequence++
		delete(t.discontinuityIndices, i)
	}
}

// DiscontinuityInserted marks the next segment added as carrying a
// discontinuity. A discontinuity inserted with no subsequent segment is
// lost, matching §3.
func (t *Tracker) DiscontinuityInserted() {
	t.pendingDiscontinuity = true
}

// MediaSequence returns the current media sequence number.
func (t *Tracker) MediaSequence() uint64 { return t.mediaSequence }

// DiscontinuitySequence returns the current discontinuity sequence number.
func (t *Tracker) DiscontinuitySequence() uint64 { return t.discontinuitySequence }

// TotalAdded returns the lifetime count of segments added.
func (t *Tracker) TotalAdded() uint64 { return t.totalAdded }

// TotalEvicted returns the lifetime count of segments evicted. Invariant:
// MediaSequence() == TotalEvicted() at all times.
func (t *Tracker) TotalEvicted() uint64 { return t.totalEvicted }

// IsDiscontinuity reports whether index i was tagged as the carrier of a
// pending discontinuity and has not yet been evicted.
func (t *Tracker) IsDiscontinuity(i uint64) bool {
	_, ok := t.discontinuityIndices[i]
	return ok
}
