package cmaf

// Sample is one entry of a sample table: offset and size locate its bytes,
// DTS/PTS/Duration are in the track's timescale, and Sync marks a
// random-access point (keyframe).
type Sample struct {
	Offset   uint64
	Size     uint32
	DTS      int64
	PTS      int64
	Duration uint32
	Sync     bool
}

// SampleLocator is a pure index into a source-asset sample table. Nothing in
// this package consumes it: CMAFWriter builds segments from encoded frames,
// not from Samples.
type SampleLocator interface {
	Count() int
	Sample(i int) Sample
}

// SliceSampleLocator is a SampleLocator backed by an in-memory slice.
type SliceSampleLocator []Sample

func (s SliceSampleLocator) Count() int        { return len(s) }
func (s SliceSampleLocator) Sample(i int) Sample { return s[i] }
