package segmenter

import (
	"github.com/aminofox/liveorigin/pkg/errors"
)

// Config configures an IncrementalSegmenter (spec §4.2).
type Config struct {
	// TargetDuration is the boundary threshold, in seconds.
	TargetDuration float64
	// MaxDuration is the force-cut threshold; defaults to 1.5x TargetDuration
	// when zero.
	MaxDuration float64
	// KeyframeAligned requires cuts to land on a keyframe when true.
	KeyframeAligned bool
	// RingBufferCapacity bounds RecentSegments(). A nil value (the Go zero
	// value for this field) selects the default of 10; an explicit 0
	// disables ring buffering ("don't buffer") rather than falling back to
	// the default, since plain int has no way to distinguish "unset" from
	// "set to zero". Use IntPtr(0) to disable buffering explicitly.
	RingBufferCapacity *int
	// ChannelCapacity bounds the segments() producer/consumer channel.
	// Defaults to 4.
	ChannelCapacity int
	// StartIndex is the index of the first segment this instance will emit.
	StartIndex uint64
	// TrackID/Timescale are passed through to the CMAF writer for every
	// segment this instance cuts.
	TrackID   uint32
	Timescale uint32
	// FilenamePattern is a printf-style pattern taking the segment index,
	// e.g. "segment_%d.m4s".
	FilenamePattern string
	// PartTargetDuration, when > 0, enables LL-HLS partial-segment emission:
	// a LivePartialSegment is cut every time this many seconds of frames have
	// accumulated since the last part (or since the parent segment started).
	// Zero disables partial-segment emission entirely.
	PartTargetDuration float64
	// PartFilenamePattern is a printf-style pattern taking (parent segment
	// index, part index), e.g. "segment_%d.part_%d.m4s".
	PartFilenamePattern string
}

const (
	defaultRingBufferCapacity = 10
	defaultChannelCapacity    = 4
	defaultMaxDurationFactor  = 1.5
)

// IntPtr returns a pointer to i, for setting Config.RingBufferCapacity to an
// explicit value (including 0, which disables ring buffering) rather than
// leaving it nil to pick up the default.
func IntPtr(i int) *int {
	return &i
}

// normalize fills in defaults and validates the configuration, returning
// ConfigurationInvalid on a bad value.
func (c Config) normalize() (Config, error) {
	if c.TargetDuration <= 0 {
		return c, errors.NewConfigurationInvalidError("target_duration must be > 0")
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = c.TargetDuration * defaultMaxDurationFactor
	}
	if c.MaxDuration < c.TargetDuration {
		return c, errors.NewConfigurationInvalidError("max_duration must be >= target_duration")
	}
	if c.RingBufferCapacity == nil {
		c.RingBufferCapacity = IntPtr(defaultRingBufferCapacity)
	} else if *c.RingBufferCapacity < 0 {
		return c, errors.NewConfigurationInvalidError("ring_buffer_capacity must be >= 0")
	}
	if c.ChannelCapacity <= 0 {
		c.ChannelCapacity = defaultChannelCapacity
	}
	if c.Timescale == 0 {
		c.Timescale = 90000
	}
	if c.FilenamePattern == "" {
		c.FilenamePattern = "segment_%d.m4s"
	}
	if c.PartTargetDuration < 0 {
		return c, errors.NewConfigurationInvalidError("part_target_duration must be >= 0")
	}
	if c.PartTargetDuration > 0 && c.PartFilenamePattern == "" {
		c.PartFilenamePattern = "segment_%d.part_%d.m4s"
	}
	return c, nil
}
