package playlist

import (
	"sync"

	"github.com/aminofox/liveorigin/pkg/errors"
	"github.com/aminofox/liveorigin/pkg/model"
	"github.com/aminofox/liveorigin/pkg/sequence"
)

// EventConfig configures an EventPlaylist.
type EventConfig struct {
	TargetDuration     float64
	Version            int
	InitSegmentURI     string
	Metadata           model.PlaylistMetadata
	PartTargetDuration float64
}

func (c EventConfig) normalize() EventConfig {
	if c.Version <= 0 {
		c.Version = 7
	}
	return c
}

// EventPlaylist is append-only: no eviction ever happens, so media_sequence
// stays 0 for the life of the playlist. EndStream produces a VOD-equivalent
// document.
type EventPlaylist struct {
	mu sync.Mutex

	cfg      EventConfig
	tracker  *sequence.Tracker
	segments []*model.LiveSegment
	ended    bool

	parts          map[uint64][]*model.LivePartialSegment
	preloadHintURI string
}

// NewEventPlaylist constructs an empty event playlist.
func NewEventPlaylist(cfg EventConfig) *EventPlaylist {
	return &EventPlaylist{
		cfg:     cfg.normalize(),
		tracker: sequence.New(),
		parts:   make(map[uint64][]*model.LivePartialSegment),
	}
}

// AddSegment appends a segment; nothing is ever evicted.
func (p *EventPlaylist) AddSegment(seg *model.LiveSegment) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ended {
		return errors.NewStreamEndedError()
	}
	p.segments = append(p.segments, seg)
	p.tracker.SegmentAdded(seg.Index)
	delete(p.parts, seg.Index)
	return nil
}

// AddPartialSegment records a partial segment for low-latency delivery,
// keyed by its parent segment's index (SPEC_FULL LL-HLS supplement). Unlike
// SlidingWindowPlaylist/DVRPlaylist, an event playlist never evicts, so
// there is no aged-out parent a part could legitimately be rejected for.
func (p *EventPlaylist) AddPartialSegment(part *model.LivePartialSegment) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ended {
		return errors.NewStreamEndedError()
	}
	p.parts[part.ParentIndex] = append(p.parts[part.ParentIndex], part)
	return nil
}

// SetPreloadHint announces the URI of the next, not-yet-produced partial
// segment. An empty uri clears the hint.
func (p *EventPlaylist) SetPreloadHint(uri string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.preloadHintURI = uri
}

// InsertDiscontinuity marks the next appended segment as carrying a
// discontinuity.
func (p *EventPlaylist) InsertDiscontinuity() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracker.DiscontinuityInserted()
}

// UpdateCustomTags replaces the custom-tag block rendered between
// EXT-X-MAP and the segment list.
func (p *EventPlaylist) UpdateCustomTags(tags []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg.Metadata.CustomTags = tags
}

// EndStream marks the playlist ended; the rendered result carries
// EXT-X-ENDLIST and is VOD-equivalent from that point on.
func (p *EventPlaylist) EndStream() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ended = true
	return p.renderLocked()
}

// RenderPlaylist renders the full segment history, always as
// EXT-X-PLAYLIST-TYPE:EVENT.
func (p *EventPlaylist) RenderPlaylist() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renderLocked()
}

func (p *EventPlaylist) renderLocked() string {
	segments := make([]*model.LiveSegment, len(p.segments))
	for i, seg := range p.segments {
		s := *seg
		s.DiscontinuityBefore = p.tracker.IsDiscontinuity(seg.Index)
		segments[i] = &s
	}

	return Render(Context{
		Version:               p.cfg.Version,
		TargetDuration:        p.cfg.TargetDuration,
		MediaSequence:         p.tracker.MediaSequence(),
		DiscontinuitySequence: p.tracker.DiscontinuitySequence(),
		PlaylistType:          model.PlaylistTypeEvent,
		InitSegmentURI:        p.cfg.InitSegmentURI,
		Metadata:              p.cfg.Metadata,
		Segments:              segments,
		HasEndList:            p.ended,
		PartTargetDuration:    p.cfg.PartTargetDuration,
		PartialSegments:       p.parts,
		PreloadHintURI:        p.preloadHintURI,
	})
}
