// Package dvr implements DVRBuffer (spec §3, §4.4): a time-windowed,
// append-only store of segments with by-index lookup, offset queries, and
// date-range queries. Adapted from the teacher's DVRWindow
// (pkg/streaming/hls/dvr.go), replaced wall-clock CreatedAt trimming with
// timestamp-based end-time trimming per the spec's eviction rule.
package dvr

import (
	"sync"
	"time"

	"github.com/aminofox/liveorigin/pkg/errors"
	"github.com/aminofox/liveorigin/pkg/model"
)

// Buffer is a time-windowed append-only store of LiveSegments.
type Buffer struct {
	mu             sync.RWMutex
	windowDuration float64
	segments       []*model.LiveSegment
	indexMap       map[uint64]int // segment index -> position in segments
}

// New creates a DVR buffer with the given window duration in seconds.
func New(windowDuration float64) *Buffer {
	return &Buffer{
		windowDuration: windowDuration,
		segments:       make([]*model.LiveSegment, 0),
		indexMap:       make(map[uint64]int),
	}
}

// Append pushes a segment to the tail and updates the index map. Per §3,
// callers are expected to append in increasing (timestamp, index) order.
func (b *Buffer) Append(seg *model.LiveSegment) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.segments = append(b.segments, seg)
	b.indexMap[seg.Index] = len(b.segments) - 1
}

// EvictExpired removes every segment whose end time is strictly less than
// the cutoff (latest.Timestamp.Seconds() - windowDuration, i.e. measured from
// the newest segment's start time, not its end). A segment whose end time
// exactly equals the cutoff is retained (§9 Open Questions, §8 boundary
// behaviors). Returns the evicted segments in their original order.
func (b *Buffer) EvictExpired() []*model.LiveSegment {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.segments) == 0 || b.windowDuration < 0 {
		return nil
	}

	latest := b.segments[len(b.segments)-1]
	cutoff := latest.Timestamp.Seconds() - b.windowDuration

	cut := 0
	for cut < len(b.segments) && b.segments[cut].EndTime() < cutoff {
		cut++
	}
	if cut == 0 {
		return nil
	}

	evicted := make([]*model.LiveSegment, cut)
	copy(evicted, b.segments[:cut])
	b.segments = b.segments[cut:]
	b.rebuildIndexLocked()

	return evicted
}

// rebuildIndexLocked repairs index_map from scratch; it is rebuilt after
// every eviction batch rather than maintained incrementally (§9: pointer
// graphs).
func (b *Buffer) rebuildIndexLocked() {
	b.indexMap = make(map[uint64]int, len(b.segments))
	for pos, seg := range b.segments {
		b.indexMap[seg.Index] = pos
	}
}

// Segment looks up a segment by index.
func (b *Buffer) Segment(index uint64) (*model.LiveSegment, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	pos, ok := b.indexMap[index]
	if !ok {
		return nil, errors.NewInvalidSegmentIndexError(index)
	}
	return b.segments[pos], nil
}

// SegmentsFromOffset returns segments whose end time is greater than
// (newest.timestamp.Seconds() + offsetSeconds), capped to maxCount from the
// start of that range. offsetSeconds is typically negative ("N seconds
// behind live"). maxCount <= 0 means unbounded.
func (b *Buffer) SegmentsFromOffset(offsetSeconds float64, maxCount int) []*model.LiveSegment {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.segments) == 0 {
		return nil
	}

	newest := b.segments[len(b.segments)-1]
	target := newest.Timestamp.Seconds() + offsetSeconds

	start := 0
	for start < len(b.segments) && b.segments[start].EndTime() <= target {
		start++
	}

	result := b.segments[start:]
	if maxCount > 0 && len(result) > maxCount {
		result = result[:maxCount]
	}

	out := make([]*model.LiveSegment, len(result))
	copy(out, result)
	return out
}

// SegmentsInDateRange returns segments whose ProgramDateTime falls within
// [from, to]. Segments without a ProgramDateTime contribute nothing.
func (b *Buffer) SegmentsInDateRange(from, to time.Time) []*model.LiveSegment {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []*model.LiveSegment
	for _, seg := range b.segments {
		if seg.ProgramDateTime == nil {
			continue
		}
		pdt := *seg.ProgramDateTime
		if pdt.Before(from) || pdt.After(to) {
			continue
		}
		result = append(result, seg)
	}
	return result
}

// TotalDuration returns the sum of all retained segment durations.
func (b *Buffer) TotalDuration() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var total float64
	for _, seg := range b.segments {
		total += seg.Duration
	}
	return total
}

// TotalDataSize returns the sum of all retained segment byte sizes.
func (b *Buffer) TotalDataSize() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var total int64
	for _, seg := range b.segments {
		total += int64(len(seg.Data))
	}
	return total
}

// Oldest returns the first retained segment, or nil if the buffer is empty.
func (b *Buffer) Oldest() *model.LiveSegment {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.segments) == 0 {
		return nil
	}
	return b.segments[0]
}

// Newest returns the last retained segment, or nil if the buffer is empty.
func (b *Buffer) Newest() *model.LiveSegment {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.segments) == 0 {
		return nil
	}
	return b.segments[len(b.segments)-1]
}

// Count returns the number of retained segments.
func (b *Buffer) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.segments)
}

// IsEmpty reports whether the buffer holds no segments.
func (b *Buffer) IsEmpty() bool {
	return b.Count() == 0
}

// AllSegments returns a defensive copy of every retained segment, in order.
func (b *Buffer) AllSegments() []*model.LiveSegment {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*model.LiveSegment, len(b.segments))
	copy(out, b.segments)
	return out
}

// Clear removes every retained segment.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.segments = b.segments[:0]
	b.indexMap = make(map[uint64]int)
}
