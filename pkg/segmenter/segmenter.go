// Package segmenter implements IncrementalSegmenter (spec §4.2): a
// frame-driven state machine that decides where segment boundaries fall,
// maintains a ring buffer of recent segments, and emits completed segments
// through a lazy, bounded, single-consumer channel.
//
// Grounded on the teacher's Transmuxer (pkg/streaming/hls/transmuxer.go),
// which applies the same "cut on keyframe once at/after target duration,
// force-cut at 1.5x target" rule to its own MPEG-TS segmentation; this
// package generalizes that rule to the spec's exact boundary algorithm and
// replaces the TS segment writer with the CMAF writer.
package segmenter

import (
	"fmt"
	"sync"
	"time"

	"github.com/aminofox/liveorigin/pkg/cmaf"
	"github.com/aminofox/liveorigin/pkg/errors"
	"github.com/aminofox/liveorigin/pkg/logger"
	"github.com/aminofox/liveorigin/pkg/model"
)

// State is the segmenter's lifecycle state (spec §4.2).
type State int

const (
	StateActive State = iota
	StateFinishing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateFinishing:
		return "finishing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Segmenter is an actor-like component: it owns its mutable state behind a
// mutex and serializes every operation against a single instance.
type Segmenter struct {
	mu sync.Mutex

	cfg   Config
	log   logger.Logger
	state State

	pending       []model.EncodedFrame
	hasLastFrame  bool
	lastFrameTS   model.MediaTimestamp
	totalEmitted  uint64
	wallClockOrigin *time.Time

	partPending []model.EncodedFrame
	partSeq     uint64

	ring    []*model.LiveSegment
	writer  *cmaf.CMAFWriter
	out     chan *model.LiveSegment
	parts   chan *model.LivePartialSegment
	consumerGone bool
}

// New constructs a Segmenter. wallClockOrigin, if non-nil, is captured at
// construction time and used to derive each segment's ProgramDateTime; the
// renderer never reads wall-clock time itself (spec §9: pure renderer).
func New(cfg Config, wallClockOrigin *time.Time, log logger.Logger) (*Segmenter, error) {
	normalized, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewDefaultLogger(logger.InfoLevel, "text")
	}

	s := &Segmenter{
		cfg:             normalized,
		log:             log,
		state:           StateActive,
		writer:          cmaf.NewCMAFWriter(),
		out:             make(chan *model.LiveSegment, normalized.ChannelCapacity),
		wallClockOrigin: wallClockOrigin,
	}
	if *normalized.RingBufferCapacity > 0 {
		s.ring = make([]*model.LiveSegment, 0, *normalized.RingBufferCapacity)
	}
	if normalized.PartTargetDuration > 0 {
		s.parts = make(chan *model.LivePartialSegment, normalized.ChannelCapacity)
	}
	return s, nil
}

// Segments returns the lazy, bounded, single-consumer stream of completed
// segments. Dropping the consumer (simply no longer reading) does not break
// the segmenter: once the channel is full, emissions are discarded rather
// than blocking Ingest.
func (s *Segmenter) Segments() <-chan *model.LiveSegment {
	return s.out
}

// Parts returns the LL-HLS partial-segment stream, or nil if
// Config.PartTargetDuration is zero (partial emission disabled). Same
// discard-on-full semantics as Segments().
func (s *Segmenter) Parts() <-chan *model.LivePartialSegment {
	return s.parts
}

// Ingest validates monotonic timestamp ordering, decides a boundary, and
// appends the frame. At most one segment is emitted per call.
func (s *Segmenter) Ingest(frame model.EncodedFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return errors.NewNotActiveError()
	}
	if s.hasLastFrame && frame.Timestamp.Compare(s.lastFrameTS) < 0 {
		return errors.NewNonMonotonicTimestampError(s.lastFrameTS.Ticks(), frame.Timestamp.Ticks())
	}

	if cut, independent := s.decideCut(frame); cut {
		s.cutLocked(independent)
	}

	s.pending = append(s.pending, frame)
	s.hasLastFrame = true
	s.lastFrameTS = frame.Timestamp

	if s.cfg.PartTargetDuration > 0 {
		s.partPending = append(s.partPending, frame)
		if partPendingDuration(s.partPending) >= s.cfg.PartTargetDuration {
			s.emitPartLocked()
		}
	}
	return nil
}

// partPendingDuration mirrors pendingDuration but operates on the
// independent partial-segment accumulator.
func partPendingDuration(frames []model.EncodedFrame) float64 {
	if len(frames) == 0 {
		return 0
	}
	first := frames[0]
	last := frames[len(frames)-1]
	return last.Timestamp.Sub(first.Timestamp).Seconds() + last.Duration.Seconds()
}

// pendingDuration returns last_ts - first_ts + last_duration over the
// current pending buffer, in seconds.
func (s *Segmenter) pendingDuration() float64 {
	if len(s.pending) == 0 {
		return 0
	}
	first := s.pending[0]
	last := s.pending[len(s.pending)-1]
	return last.Timestamp.Sub(first.Timestamp).Seconds() + last.Duration.Seconds()
}

// decideCut implements the boundary-decision algorithm verbatim (spec
// §4.2), evaluated against the pending buffer as it stood before frame is
// appended.
func (s *Segmenter) decideCut(frame model.EncodedFrame) (cut bool, independent bool) {
	if len(s.pending) == 0 {
		return false, false
	}
	duration := s.pendingDuration()
	first := s.pending[0]

	switch {
	case s.cfg.KeyframeAligned && frame.IsKeyframe && duration >= s.cfg.TargetDuration:
		return true, true
	case !s.cfg.KeyframeAligned && duration >= s.cfg.TargetDuration:
		return true, first.IsKeyframe || isAudioOnly(s.pending)
	case duration >= s.cfg.MaxDuration:
		return true, first.IsKeyframe
	default:
		return false, false
	}
}

func isAudioOnly(frames []model.EncodedFrame) bool {
	for _, f := range frames {
		if !f.Codec.IsAudio() {
			return false
		}
	}
	return true
}

// ForceSegmentBoundary emits the current buffer if non-empty; the resulting
// segment is independent only if its first pending frame is a keyframe (the
// same rule the automatic force-cut branch uses), and no special flag
// carries over to whatever segment follows.
func (s *Segmenter) ForceSegmentBoundary() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return errors.NewNoFramesPendingError()
	}
	s.cutLocked(s.pending[0].IsKeyframe)
	return nil
}

// Finish emits any pending frames as a last segment (independent iff it
// starts with a keyframe or is audio-only), transitions to Closed, and
// closes the Segments() and Parts() channels. Idempotent: the first call
// returns the last segment (if any); subsequent calls return nil.
func (s *Segmenter) Finish() *model.LiveSegment {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return nil
	}
	var last *model.LiveSegment
	if len(s.pending) > 0 {
		last = s.cutLocked(s.pending[0].IsKeyframe || isAudioOnly(s.pending))
	}
	s.state = StateClosed
	close(s.out)
	if s.parts != nil {
		close(s.parts)
	}
	return last
}

// cutLocked gathers the pending frames into a LiveSegment, resets the
// buffer, and emits it. Caller must hold s.mu.
func (s *Segmenter) cutLocked(independent bool) *model.LiveSegment {
	frames := s.pending
	s.pending = nil
	// Any partial-segment tail not yet emitted is superseded by the full
	// segment about to be cut; the next parent starts its own part sequence.
	s.partPending = nil
	s.partSeq = 0

	sequenceNumber := s.cfg.StartIndex + s.totalEmitted
	data, err := s.writer.BuildMediaSegment([]cmaf.TrackFrames{
		{TrackID: s.cfg.TrackID, Timescale: s.cfg.Timescale, Frames: frames},
	}, uint32(sequenceNumber))
	if err != nil {
		// Per §4.1, the only failure mode is an invariant violation; treat
		// it as a programmer error rather than a recoverable condition.
		s.log.Error("cmaf encode invariant violation", logger.Err(err))
		panic(err)
	}

	var duration float64
	codecs := model.NewCodecSet()
	for _, f := range frames {
		duration += f.Duration.Seconds()
		codecs.Add(f.Codec)
	}

	var pdt *time.Time
	if s.wallClockOrigin != nil {
		t := s.wallClockOrigin.Add(time.Duration(frames[0].Timestamp.Seconds() * float64(time.Second)))
		pdt = &t
	}

	seg := &model.LiveSegment{
		Index:           sequenceNumber,
		Filename:        fmt.Sprintf(s.cfg.FilenamePattern, sequenceNumber),
		Data:            data,
		Duration:        duration,
		Timestamp:       frames[0].Timestamp,
		FrameCount:      len(frames),
		IsIndependent:   independent,
		Codecs:          codecs,
		IsGap:           false,
		ProgramDateTime: pdt,
	}

	s.totalEmitted++
	s.appendRingLocked(seg)
	s.emitLocked(seg)
	return seg
}

// emitPartLocked gathers the partial-pending frames into a
// LivePartialSegment belonging to the in-progress parent and emits it on
// the parts channel. Caller must hold s.mu.
func (s *Segmenter) emitPartLocked() {
	frames := s.partPending
	s.partPending = nil
	if len(frames) == 0 {
		return
	}

	parentIndex := s.cfg.StartIndex + s.totalEmitted
	partIndex := s.partSeq
	s.partSeq++

	data, err := s.writer.BuildPartialSegment([]cmaf.TrackFrames{
		{TrackID: s.cfg.TrackID, Timescale: s.cfg.Timescale, Frames: frames},
	}, uint32(parentIndex))
	if err != nil {
		s.log.Error("cmaf partial encode invariant violation", logger.Err(err))
		panic(err)
	}

	var duration float64
	codecs := model.NewCodecSet()
	for _, f := range frames {
		duration += f.Duration.Seconds()
		codecs.Add(f.Codec)
	}

	var pdt *time.Time
	if s.wallClockOrigin != nil {
		t := s.wallClockOrigin.Add(time.Duration(frames[0].Timestamp.Seconds() * float64(time.Second)))
		pdt = &t
	}

	part := &model.LivePartialSegment{
		Index:           partIndex,
		ParentIndex:     parentIndex,
		Filename:        fmt.Sprintf(s.cfg.PartFilenamePattern, parentIndex, partIndex),
		Data:            data,
		Duration:        duration,
		Timestamp:       frames[0].Timestamp,
		FrameCount:      len(frames),
		IsIndependent:   frames[0].IsKeyframe || isAudioOnly(frames),
		Codecs:          codecs,
		ProgramDateTime: pdt,
	}

	select {
	case s.parts <- part:
	default:
		s.log.Warn("partial segment channel full, dropping part",
			logger.Int64("parent_index", int64(parentIndex)), logger.Int64("part_index", int64(partIndex)))
	}
}

// NextPartHint returns the filename the next, not-yet-produced partial
// segment will carry, for EXT-X-PRELOAD-HINT rendering (spec SPEC_FULL LL-HLS
// supplement). Returns "" when partial emission is disabled or no segment is
// currently in progress.
func (s *Segmenter) NextPartHint() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.PartTargetDuration <= 0 || len(s.pending) == 0 {
		return ""
	}
	parentIndex := s.cfg.StartIndex + s.totalEmitted
	return fmt.Sprintf(s.cfg.PartFilenamePattern, parentIndex, s.partSeq)
}

func (s *Segmenter) appendRingLocked(seg *model.LiveSegment) {
	if cap(s.ring) == 0 {
		return
	}
	s.ring = append(s.ring, seg)
	if len(s.ring) > cap(s.ring) {
		s.ring = s.ring[1:]
	}
}

// emitLocked attempts a non-blocking send; if the channel is full (no
// consumer keeping up, or the consumer is gone) the segment is discarded,
// matching the cancellation semantics in spec §5.
func (s *Segmenter) emitLocked(seg *model.LiveSegment) {
	select {
	case s.out <- seg:
	default:
		s.log.Warn("segment emission channel full, dropping segment", logger.Int64("index", int64(seg.Index)))
	}
}

// RecentSegments returns a snapshot of the ring buffer without draining the
// segments() channel.
func (s *Segmenter) RecentSegments() []*model.LiveSegment {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.LiveSegment, len(s.ring))
	copy(out, s.ring)
	return out
}

// BufferedSegmentCount returns the number of segments currently held in the
// ring buffer.
func (s *Segmenter) BufferedSegmentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ring)
}

// State returns the segmenter's current lifecycle state.
func (s *Segmenter) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
