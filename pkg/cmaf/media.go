package cmaf

import (
	"bytes"
	"encoding/binary"

	"github.com/aminofox/liveorigin/pkg/errors"
	"github.com/aminofox/liveorigin/pkg/model"
)

// trun sample-flags values (spec §4.1).
const (
	sampleFlagsSync    = 0x02000000
	sampleFlagsNonSync = 0x01010000
)

// trun flag bits (spec §4.1).
const (
	trunFlagDataOffset          = 0x000001
	trunFlagSampleDuration      = 0x000100
	trunFlagSampleSize          = 0x000200
	trunFlagSampleFlags         = 0x000400
	trunFlagSampleCompositionTO = 0x000800
)

// CMAFWriter is purely functional: no frame validation, no retries, no I/O.
// Its methods never mutate shared state, matching spec §4.1's failure
// semantics ("the only failure mode is an invariant violation").
type CMAFWriter struct{}

// NewCMAFWriter returns a CMAFWriter. It carries no state; the zero value is
// equally usable.
func NewCMAFWriter() *CMAFWriter {
	return &CMAFWriter{}
}

// TrackFrames groups the frames of one track for a single moof/mdat build.
type TrackFrames struct {
	TrackID   uint32
	Timescale uint32
	Frames    []model.EncodedFrame
}

// BuildMediaSegment builds styp+moof+mdat for one or more tracks.
func (w *CMAFWriter) BuildMediaSegment(tracks []TrackFrames, sequenceNumber uint32) ([]byte, error) {
	moof, mdat, err := w.buildMoofAndMdat(tracks, sequenceNumber)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	out.Write(buildStyp())
	out.Write(moof)
	out.Write(mdat)
	return out.Bytes(), nil
}

// BuildPartialSegment builds moof+mdat (no styp) for LL-HLS partial
// segments.
func (w *CMAFWriter) BuildPartialSegment(tracks []TrackFrames, sequenceNumber uint32) ([]byte, error) {
	moof, mdat, err := w.buildMoofAndMdat(tracks, sequenceNumber)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	out.Write(moof)
	out.Write(mdat)
	return out.Bytes(), nil
}

func buildStyp() []byte {
	var payload bytes.Buffer
	payload.WriteString("msdh") // major_brand
	binaryWriteUint32(&payload, 0)
	for _, brand := range []string{"msdh", "msix", "isom"} {
		payload.WriteString(brand)
	}
	return box("styp", payload.Bytes())
}

// buildMoofAndMdat implements the moof construction algorithm and the
// two-pass data-offset patch (spec §4.1): build the moof once with a
// data-offset placeholder of 0, measure its size, then rewrite each track's
// trun data_offset field in place.
func (w *CMAFWriter) buildMoofAndMdat(tracks []TrackFrames, sequenceNumber uint32) ([]byte, []byte, error) {
	mfhd := buildMfhd(sequenceNumber)

	type patch struct {
		absPos int
		value  uint32
	}

	var trafBoxes [][]byte
	var patches []patch
	var mdat bytes.Buffer
	pos := 8 + len(mfhd) // moof's own 8-byte header precedes mfhd

	for _, track := range tracks {
		if len(track.Frames) == 0 {
			continue
		}
		trafStart := pos

		tfhd := buildTfhd(track.TrackID)
		baseDecodeTime := uint64(track.Frames[0].Timestamp.Rescale(track.Timescale).Ticks())
		tfdt := buildTfdt(baseDecodeTime)
		trunBytes, dataOffsetRelPos := buildTrun(track.Frames, track.Timescale)

		trafPayload := append(append([]byte{}, tfhd...), tfdt...)
		trafPayload = append(trafPayload, trunBytes...)
		trafBox := box("traf", trafPayload)

		dataOffsetAbsPos := trafStart + 8 + len(tfhd) + len(tfdt) + dataOffsetRelPos
		mdatOffsetForTrack := mdat.Len()

		patches = append(patches, patch{absPos: dataOffsetAbsPos, value: uint32(mdatOffsetForTrack)})
		trafBoxes = append(trafBoxes, trafBox)
		pos += len(trafBox)

		for _, f := range track.Frames {
			mdat.Write(f.Data)
		}
	}

	var moofPayload bytes.Buffer
	moofPayload.Write(mfhd)
	for _, t := range trafBoxes {
		moofPayload.Write(t)
	}
	moofBytes := box("moof", moofPayload.Bytes())

	if len(moofBytes) != pos {
		return nil, nil, errors.New(errors.ErrCodeCMAFInvariantViolation, "moof size mismatch during two-pass offset patch")
	}

	moofSize := uint32(len(moofBytes))
	for _, p := range patches {
		value := moofSize + 8 + p.value // +8 for the mdat box header
		binary.BigEndian.PutUint32(moofBytes[p.absPos:p.absPos+4], value)
	}

	mdatBytes := box("mdat", mdat.Bytes())
	return moofBytes, mdatBytes, nil
}

func buildMfhd(sequenceNumber uint32) []byte {
	var b bytes.Buffer
	b.Write(fullBoxHeader(0, 0))
	binaryWriteUint32(&b, sequenceNumber)
	return box("mfhd", b.Bytes())
}

func buildTfhd(trackID uint32) []byte {
	var b bytes.Buffer
	b.Write(fullBoxHeader(0, 0x020000)) // default-base-is-moof
	binaryWriteUint32(&b, trackID)
	return box("tfhd", b.Bytes())
}

func buildTfdt(baseDecodeTime uint64) []byte {
	var b bytes.Buffer
	b.Write(fullBoxHeader(1, 0))
	binaryWriteUint64(&b, baseDecodeTime)
	return box("tfdt", b.Bytes())
}

// buildTrun returns the trun box bytes (with a zeroed data_offset field) and
// the byte offset of that data_offset field relative to the start of the
// returned slice, so the caller can patch it once the moof size is known.
func buildTrun(frames []model.EncodedFrame, timescale uint32) ([]byte, int) {
	flags := uint32(trunFlagDataOffset | trunFlagSampleDuration | trunFlagSampleSize)
	anyNonSync := false
	for _, f := range frames {
		if !f.IsKeyframe {
			anyNonSync = true
			break
		}
	}
	if anyNonSync {
		flags |= trunFlagSampleFlags
	}
	// Our frame model carries no separately reordered PTS, so DTS == PTS for
	// every frame and composition-time offsets are never needed.

	var b bytes.Buffer
	b.Write(fullBoxHeader(0, flags))
	binaryWriteUint32(&b, uint32(len(frames)))
	dataOffsetRelPos := b.Len() // position of the data_offset field, about to be written
	binaryWriteUint32(&b, 0)    // data_offset placeholder, patched by the caller

	for _, f := range frames {
		duration := f.Duration.Rescale(timescale).Ticks()
		binaryWriteUint32(&b, uint32(duration))
		binaryWriteUint32(&b, uint32(len(f.Data)))
		if flags&trunFlagSampleFlags != 0 {
			if f.IsKeyframe {
				binaryWriteUint32(&b, sampleFlagsSync)
			} else {
				binaryWriteUint32(&b, sampleFlagsNonSync)
			}
		}
	}

	return box("trun", b.Bytes()), dataOffsetRelPos + 8 // +8 for the trun box's own header
}
