package cmaf

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aminofox/liveorigin/pkg/model"
)

// boxHeader reads a top-level box's fourCC and total size (including the
// 8-byte header) starting at offset.
func boxHeader(t *testing.T, data []byte, offset int) (fourCC string, size int) {
	t.Helper()
	require.GreaterOrEqual(t, len(data), offset+8)
	size = int(binary.BigEndian.Uint32(data[offset : offset+4]))
	fourCC = string(data[offset+4 : offset+8])
	return fourCC, size
}

// TestMediaSegmentBoxOrderAndMdatSize matches Scenario F: 3 audio frames of
// 1024 bytes each, expecting styp, moof, mdat in order with mdat's payload
// exactly 3*1024 bytes.
func TestMediaSegmentBoxOrderAndMdatSize(t *testing.T) {
	w := NewCMAFWriter()
	frames := make([]model.EncodedFrame, 3)
	for i := range frames {
		frames[i] = model.EncodedFrame{
			Data:      make([]byte, 1024),
			Timestamp: model.NewMediaTimestamp(int64(i*1024), 48000),
			Duration:  model.NewMediaTimestamp(1024, 48000),
			Codec:     model.CodecAAC,
		}
	}

	data, err := w.BuildMediaSegment([]TrackFrames{{TrackID: 1, Timescale: 48000, Frames: frames}}, 1)
	require.NoError(t, err)

	fourCC, stypSize := boxHeader(t, data, 0)
	assert.Equal(t, "styp", fourCC)

	fourCC, moofSize := boxHeader(t, data, stypSize)
	assert.Equal(t, "moof", fourCC)

	mdatOffset := stypSize + moofSize
	fourCC, mdatSize := boxHeader(t, data, mdatOffset)
	assert.Equal(t, "mdat", fourCC)
	assert.Equal(t, 3*1024+8, mdatSize, "mdat.size must equal frame_bytes + 8")

	assert.Equal(t, len(data), mdatOffset+mdatSize, "mdat must be the final box")
}

func TestBuildPartialSegmentHasNoStyp(t *testing.T) {
	w := NewCMAFWriter()
	frames := []model.EncodedFrame{{
		Data:      make([]byte, 512),
		Timestamp: model.NewMediaTimestamp(0, 48000),
		Duration:  model.NewMediaTimestamp(1024, 48000),
		Codec:     model.CodecAAC,
	}}

	data, err := w.BuildPartialSegment([]TrackFrames{{TrackID: 1, Timescale: 48000, Frames: frames}}, 1)
	require.NoError(t, err)

	fourCC, _ := boxHeader(t, data, 0)
	assert.Equal(t, "moof", fourCC, "partial segments must not carry their own styp")
}
