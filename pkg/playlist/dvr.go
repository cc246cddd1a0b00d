package playlist

import (
	"sync"

	"github.com/aminofox/liveorigin/pkg/dvr"
	"github.com/aminofox/liveorigin/pkg/errors"
	"github.com/aminofox/liveorigin/pkg/model"
	"github.com/aminofox/liveorigin/pkg/sequence"
)

const defaultDVRWindowDuration = 7200.0

// DVRConfig configures a DVRPlaylist.
type DVRConfig struct {
	DVRWindowDuration  float64
	TargetDuration     float64
	Version            int
	InitSegmentURI     string
	Metadata           model.PlaylistMetadata
	PartTargetDuration float64
}

func (c DVRConfig) normalize() DVRConfig {
	if c.DVRWindowDuration <= 0 {
		c.DVRWindowDuration = defaultDVRWindowDuration
	}
	if c.Version <= 0 {
		c.Version = 7
	}
	return c
}

// DVRPlaylist backs a long time-windowed live playlist with a DVRBuffer,
// supporting offset-based partial rendering in addition to full rendering.
// Grounded on the teacher's DVRWindow (pkg/streaming/hls/dvr.go).
type DVRPlaylist struct {
	mu sync.Mutex

	cfg     DVRConfig
	tracker *sequence.Tracker
	buf     *dvr.Buffer
	ended   bool

	parts          map[uint64][]*model.LivePartialSegment
	preloadHintURI string

	hasEvicted      bool
	maxEvictedIndex uint64
}

// NewDVRPlaylist constructs an empty DVR-backed playlist.
func NewDVRPlaylist(cfg DVRConfig) *DVRPlaylist {
	cfg = cfg.normalize()
	return &DVRPlaylist{
		cfg:     cfg,
		tracker: sequence.New(),
		buf:     dvr.New(cfg.DVRWindowDuration),
		parts:   make(map[uint64][]*model.LivePartialSegment),
	}
}

// AddPartialSegment records a partial segment for low-latency delivery,
// keyed by its parent segment's index (SPEC_FULL LL-HLS supplement). A part
// whose parent index has already aged out of the DVR window is rejected
// with ParentSegmentNotFound; a part for a parent that simply has not been
// added yet (the in-progress segment) is not an error (see
// SlidingWindowPlaylist.AddPartialSegment for the same reasoning).
func (p *DVRPlaylist) AddPartialSegment(part *model.LivePartialSegment) error {
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
func (p *DVRPlaylist) SetPreloadHint(uri string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.preloadHintURI = uri
}

// AddSegment appends a segment, then evicts everything that has aged out of
// the DVR window, notifying the tracker for each eviction.
func (p *DVRPlaylist) AddSegment(seg *model.LiveSegment) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ended {
		return errors.NewStreamEndedError()
	}

	p.buf.Append(seg)
	p.tracker.SegmentAdded(seg.Index)
	delete(p.parts, seg.Index)

	for _, evicted := range p.buf.EvictExpired() {
		p.tracker.SegmentEvicted(evicted.Index)
		delete(p.parts, evicted.Index)
		p.hasEvicted = true
		p.maxEvictedIndex = evicted.Index
	}
	return nil
}

// InsertDiscontinuity marks the next appended segment as carrying a
// discontinuity.
func (p *DVRPlaylist) InsertDiscontinuity() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracker.DiscontinuityInserted()
}

// UpdateCustomTags replaces the custom-tag block rendered between
// EXT-X-MAP and the segment list.
func (p *DVRPlaylist) UpdateCustomTags(tags []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg.Metadata.CustomTags = tags
}

// EndStream marks the playlist ended and returns the final rendered
// document.
func (p *DVRPlaylist) EndStream() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ended = true
	return p.renderLocked(p.buf.AllSegments())
}

// RenderPlaylist renders the full retained window. DVR playlists never
// emit EXT-X-PLAYLIST-TYPE (they are live, even when long).
func (p *DVRPlaylist) RenderPlaylist() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renderLocked(p.buf.AllSegments())
}

// RenderPlaylistFromOffset renders only the subset of segments returned by
// SegmentsFromOffset, using the tracker's current media/discontinuity
// sequence but a target duration recomputed from the subset.
func (p *DVRPlaylist) RenderPlaylistFromOffset(offsetSeconds float64, maxCount int) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renderLocked(p.buf.SegmentsFromOffset(offsetSeconds, maxCount))
}

func (p *DVRPlaylist) renderLocked(subset []*model.LiveSegment) string {
	segments := make([]*model.LiveSegment, len(subset))
	for i, seg := range subset {
		s := *seg
		s.DiscontinuityBefore = p.tracker.IsDiscontinuity(seg.Index)
		segments[i] = &s
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

// Buffer exposes the underlying DVRBuffer for archival pushers and
// date-range lookups.
func (p *DVRPlaylist) Buffer() *dvr.Buffer {
	return p.buf
}
