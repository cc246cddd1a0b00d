package model

import "time"

// CodecSet is a small set of codecs; a plain map keeps membership tests and
// iteration cheap for the handful of entries a segment ever carries.
type CodecSet map[Codec]struct{}

// NewCodecSet builds a CodecSet from the given codecs.
func NewCodecSet(codecs ...Codec) CodecSet {
	s := make(CodecSet, len(codecs))
	for _, c := range codecs {
		s[c] = struct{}{}
	}
	return s
}

// Add inserts a codec into the set.
func (s CodecSet) Add(c Codec) { s[c] = struct{}{} }

// Contains reports whether the set has the given codec.
func (s CodecSet) Contains(c Codec) bool {
	_, ok := s[c]
	return ok
}

// LiveSegment is a fully formed, encoded segment as emitted by the
// IncrementalSegmenter (§3).
type LiveSegment struct {
	Index               uint64
	Filename            string
	Data                []byte
	Duration            float64
	Timestamp           MediaTimestamp
	FrameCount          int
	IsIndependent       bool
	Codecs              CodecSet
	IsGap               bool
	ProgramDateTime     *time.Time
	DiscontinuityBefore bool
}

// EndTime returns Timestamp.Seconds() + Duration, the value DVR eviction and
// offset queries compare against the window cutoff.
func (s *LiveSegment) EndTime() float64 {
	return s.Timestamp.Seconds() + s.Duration
}

// LivePartialSegment mirrors LiveSegment minus the styp box; IsIndependent
// here means "starts at a random-access point" rather than "keyframe or
// audio-only segment".
type LivePartialSegment struct {
	Index               uint64
	ParentIndex         uint64
	Filename            string
	Data                []byte
	Duration            float64
	Timestamp           MediaTimestamp
	FrameCount          int
	IsIndependent       bool
	Codecs              CodecSet
	IsGap               bool
	ProgramDateTime     *time.Time
	DiscontinuityBefore bool
}
