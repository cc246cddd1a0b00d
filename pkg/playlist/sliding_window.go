package playlist

import (
	"container/list"
	"sync"

	"github.com/aminofox/liveorigin/pkg/errors"
	"github.com/aminofox/liveorigin/pkg/model"
	"github.com/aminofox/liveorigin/pkg/sequence"
)

const defaultWindowSize = 5

// SlidingWindowConfig configures a SlidingWindowPlaylist.
type SlidingWindowConfig struct {
	WindowSize         int
	TargetDuration     float64
	Version            int
	InitSegmentURI     string
	Metadata           model.PlaylistMetadata
	PartTargetDuration float64
}

func (c SlidingWindowConfig) normalize() SlidingWindowConfig {
	if c.WindowSize <= 0 {
		c.WindowSize = defaultWindowSize
	}
	if c.Version <= 0 {
		c.Version = 7
	}
	return c
}

// SlidingWindowPlaylist is a fixed-size live playlist: once window_size
// segments are held, each new append evicts the oldest. Grounded on the
// teacher's MediaPlaylist.RemoveOldSegments, reworked to use a container/list
// deque and to notify a MediaSequenceTracker per eviction rather than just
// bumping a counter.
type SlidingWindowPlaylist struct {
	mu sync.Mutex

	cfg     SlidingWindowConfig
	tracker *sequence.Tracker
	queue   *list.List // of *model.LiveSegment
	ended   bool

	parts          map[uint64][]*model.LivePartialSegment
	preloadHintURI string

	hasEvicted      bool
	maxEvictedIndex uint64
}

// NewSlidingWindowPlaylist constructs an empty playlist.
func NewSlidingWindowPlaylist(cfg SlidingWindowConfig) *SlidingWindowPlaylist {
	return &SlidingWindowPlaylist{
		cfg:     cfg.normalize(),
		tracker: sequence.New(),
		queue:   list.New(),
		parts:   make(map[uint64][]*model.LivePartialSegment),
	}
}

// AddPartialSegment records a partial segment for low-latency delivery
// (SPEC_FULL LL-HLS supplement), keyed by its parent segment's index. Parts
// are rendered in arrival order ahead of the parent's own EXTINF line, and
// are dropped once the parent itself is added (or evicted). A part whose
// parent index has already aged out of the window is rejected with
// ParentSegmentNotFound rather than filed as a permanent orphan; a part
// whose parent has not been added yet (the common case: parts for the
// in-progress segment arrive before the segment itself is cut) is not an
// error, since there is no way to distinguish "not yet arrived" from
// "never existed" for an index that has never been evicted.
func (p *SlidingWindowPlaylist) AddPartialSegment(part *model.LivePartialSegment) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ended {
		return errors.NewStreamEndedError()
	}
	if p.hasEvicted && part.ParentIndex <= p.maxEvictedIndex {
		return errors.NewParentSegmentNotFoundError(part.ParentIndex)
	}
	p.parts[part.ParentIndex] = append(p.parts[part.ParentIndex], part)
	return nil
}

// SetPreloadHint announces the URI of the next, not-yet-produced partial
// segment. An empty uri clears the hint.
func (p *SlidingWindowPlaylist) SetPreloadHint(uri string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.preloadHintURI = uri
}

// AddSegment appends a segment, evicting from the front while the window is
// over capacity.
func (p *SlidingWindowPlaylist) AddSegment(seg *model.LiveSegment) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ended {
		return errors.NewStreamEndedError()
	}

	p.queue.PushBack(seg)
	p.tracker.SegmentAdded(seg.Index)
	// Once a segment is complete, its partial segments are no longer
	// rendered (SPEC_FULL LL-HLS supplement).
	delete(p.parts, seg.Index)

	for p.queue.Len() > p.cfg.WindowSize {
		front := p.queue.Front()
		p.queue.Remove(front)
		evicted := front.Value.(*model.LiveSegment)
		p.tracker.SegmentEvicted(evicted.Index)
		delete(p.parts, evicted.Index)
		p.hasEvicted = true
		p.maxEvictedIndex = evicted.Index
	}
	return nil
}

// InsertDiscontinuity marks the next appended segment as carrying a
// discontinuity.
func (p *SlidingWindowPlaylist) InsertDiscontinuity() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracker.DiscontinuityInserted()
}

// UpdateCustomTags replaces the custom-tag block rendered between
// EXT-X-MAP and the segment list (e.g. EXT-X-KEY when a LiveKeyManager
// rotates keys).
func (p *SlidingWindowPlaylist) UpdateCustomTags(tags []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg.Metadata.CustomTags = tags
}

// EndStream marks the playlist ended and returns the final rendered
// document; further AddSegment calls fail with StreamEnded.
func (p *SlidingWindowPlaylist) EndStream() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ended = true
	return p.renderLocked()
}

// RenderPlaylist renders the current state.
func (p *SlidingWindowPlaylist) RenderPlaylist() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renderLocked()
}

func (p *SlidingWindowPlaylist) renderLocked() string {
	segments := make([]*model.LiveSegment, 0, p.queue.Len())
	for e := p.queue.Front(); e != nil; e = e.Next() {
		seg := e.Value.(*model.LiveSegment)
		s := *seg
		s.DiscontinuityBefore = p.tracker.IsDiscontinuity(seg.Index)
		segments = append(segments, &s)
	}

	return Render(Context{
		Version:               p.cfg.Version,
		TargetDuration:        p.cfg.TargetDuration,
		MediaSequence:         p.tracker.MediaSequence(),
		DiscontinuitySequence: p.tracker.DiscontinuitySequence(),
		PlaylistType:          model.PlaylistTypeNone,
		InitSegmentURI:        p.cfg.InitSegmentURI,
		Metadata:              p.cfg.Metadata,
		Segments:              segments,
		HasEndList:            p.ended,
		PartTargetDuration:    p.cfg.PartTargetDuration,
		PartialSegments:       p.parts,
		PreloadHintURI:        p.preloadHintURI,
	})
}
