package model

// Codec is a closed set of codecs the engine understands at its boundary;
// expressed as a tagged enum rather than an open string per the source's
// "tagged variants over inheritance" design note.
type Codec string

const (
	CodecAAC      Codec = "aac"
	CodecHEAAC    Codec = "he-aac"
	CodecHEAACv2  Codec = "he-aac-v2"
	CodecH264     Codec = "h264"
	CodecH265     Codec = "h265"
)

// IsAudio reports whether the codec belongs to an audio track.
func (c Codec) IsAudio() bool {
	switch c {
	case CodecAAC, CodecHEAAC, CodecHEAACv2:
		return true
	default:
		return false
	}
}

// IsVideo reports whether the codec belongs to a video track.
func (c Codec) IsVideo() bool {
	switch c {
	case CodecH264, CodecH265:
		return true
	default:
		return false
	}
}

// EncodedFrame is the atomic input unit accepted by the segmenter. Frames
// arrive pre-encoded; the engine never decodes or re-encodes payloads.
type EncodedFrame struct {
	Data        []byte
	Timestamp   MediaTimestamp
	Duration    MediaTimestamp
	IsKeyframe  bool
	Codec       Codec
}

// EndTimestamp returns Timestamp + Duration in the frame's own timescale.
func (f EncodedFrame) EndTimestamp() MediaTimestamp {
	return f.Timestamp.Add(f.Duration)
}
