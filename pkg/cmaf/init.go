package cmaf

import (
	"bytes"
)

// AudioTrackConfig configures build_audio_init (spec §4.1, §6).
type AudioTrackConfig struct {
	TrackID       uint32
	SampleRate    uint32
	ChannelConfig uint8
	// AudioSpecificConfig is the raw ASC payload wrapped into the esds box.
	AudioSpecificConfig []byte
}

// VideoTrackConfig configures build_video_init (spec §4.1, §6).
type VideoTrackConfig struct {
	TrackID uint32
	Width   uint16
	Height  uint16
	// HEVC is false for H.264 (avc1/avcC), true for H.265 (hvc1/hvcC).
	HEVC bool
	// SPS/PPS (H.264) or VPS/SPS/PPS (H.265), each including the NAL header,
	// excluding any start code.
	VPS [][]byte
	SPS [][]byte
	PPS [][]byte
}

// videoTimescale is the conventional timescale for video tracks absent a
// source-specific value (spec §6: "90000 for video").
const videoTimescale = 90000

// BuildAudioInit builds one ftyp followed by one moov containing a single
// audio trak whose sample entry carries an esds/AudioSpecificConfig.
func (w *CMAFWriter) BuildAudioInit(cfg AudioTrackConfig) []byte {
	var out bytes.Buffer
	out.Write(buildFtyp())
	out.Write(buildMoov(trakParams{
		trackID:     cfg.TrackID,
		timescale:   cfg.SampleRate,
		isAudio:     true,
		sampleEntry: buildMP4ASampleEntry(cfg),
	}))
	return out.Bytes()
}

// BuildVideoInit builds one ftyp followed by one moov containing a single
// video trak whose sample entry carries SPS/PPS (or VPS/SPS/PPS) wrapped in
// avcC/hvcC.
func (w *CMAFWriter) BuildVideoInit(cfg VideoTrackConfig) []byte {
	var out bytes.Buffer
	out.Write(buildFtyp())
	out.Write(buildMoov(trakParams{
		trackID:     cfg.TrackID,
		timescale:   videoTimescale,
		isAudio:     false,
		width:       cfg.Width,
		height:      cfg.Height,
		sampleEntry: buildVisualSampleEntry(cfg),
	}))
	return out.Bytes()
}

func buildFtyp() []byte {
	var payload bytes.Buffer
	payload.WriteString("iso6")        // major_brand
	binaryWriteUint32(&payload, 0)     // minor_version
	for _, brand := range []string{"iso6", "mp42", "cmfc"} {
		payload.WriteString(brand)
	}
	return box("ftyp", payload.Bytes())
}

type trakParams struct {
	trackID     uint32
	timescale   uint32
	isAudio     bool
	width       uint16
	height      uint16
	sampleEntry []byte
}

func buildMoov(p trakParams) []byte {
	mvhd := buildMvhd(p.trackID + 1000) // next_track_id, arbitrarily beyond in-use ids
	trak := buildTrak(p)
	mvex := nestedBox("mvex", buildTrex(p.trackID))
	return nestedBox("moov", mvhd, trak, mvex)
}

func buildMvhd(nextTrackID uint32) []byte {
	var p bytes.Buffer
	p.Write(fullBoxHeader(1, 0))
	binaryWriteUint64(&p, 0) // creation_time
	binaryWriteUint64(&p, 0) // modification_time
	binaryWriteUint32(&p, 1000) // timescale (arbitrary; per-track timescales govern sample timing)
	binaryWriteUint64(&p, 0) // duration (unknown, fragmented)
	binaryWriteUint32(&p, 0x00010000) // rate = 1.0
	binaryWriteUint16(&p, 0x0100)     // volume = 1.0
	binaryWriteUint16(&p, 0)          // reserved
	binaryWriteUint64(&p, 0)          // reserved[2]
	writeUnityMatrix(&p)
	for i := 0; i < 6; i++ {
		binaryWriteUint32(&p, 0) // pre_defined
	}
	binaryWriteUint32(&p, nextTrackID)
	return box("mvhd", p.Bytes())
}

func writeUnityMatrix(p *bytes.Buffer) {
	matrix := []uint32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000}
	for _, v := range matrix {
		binaryWriteUint32(p, v)
	}
}

func buildTrak(p trakParams) []byte {
	tkhd := buildTkhd(p)
	mdia := buildMdia(p)
	return nestedBox("trak", tkhd, mdia)
}

func buildTkhd(p trakParams) []byte {
	var b bytes.Buffer
	b.Write(fullBoxHeader(1, 0x000007)) // enabled | in_movie | in_preview
	binaryWriteUint64(&b, 0)            // creation_time
	binaryWriteUint64(&b, 0)            // modification_time
	binaryWriteUint32(&b, p.trackID)
	binaryWriteUint32(&b, 0) // reserved
	binaryWriteUint64(&b, 0) // duration
	binaryWriteUint64(&b, 0) // reserved[2]
	binaryWriteUint16(&b, 0) // layer
	binaryWriteUint16(&b, 0) // alternate_group
	if p.isAudio {
		binaryWriteUint16(&b, 0x0100) // volume = 1.0
	} else {
		binaryWriteUint16(&b, 0)
	}
	binaryWriteUint16(&b, 0) // reserved
	writeUnityMatrix(&b)
	binaryWriteUint32(&b, uint32(p.width)<<16)
	binaryWriteUint32(&b, uint32(p.height)<<16)
	return box("tkhd", b.Bytes())
}

func buildMdia(p trakParams) []byte {
	mdhd := buildMdhd(p.timescale)
	hdlr := buildHdlr(p.isAudio)
	minf := buildMinf(p)
	return nestedBox("mdia", mdhd, hdlr, minf)
}

func buildMdhd(timescale uint32) []byte {
	var b bytes.Buffer
	b.Write(fullBoxHeader(1, 0))
	binaryWriteUint64(&b, 0) // creation_time
	binaryWriteUint64(&b, 0) // modification_time
	binaryWriteUint32(&b, timescale)
	binaryWriteUint64(&b, 0)     // duration (unknown, fragmented)
	binaryWriteUint16(&b, 0x55C4) // language = "und"
	binaryWriteUint16(&b, 0)      // pre_defined
	return box("mdhd", b.Bytes())
}

func buildHdlr(isAudio bool) []byte {
	handler := "vide"
	name := "VideoHandler"
	if isAudio {
		handler = "soun"
		name = "SoundHandler"
	}
	var b bytes.Buffer
	b.Write(fullBoxHeader(0, 0))
	binaryWriteUint32(&b, 0) // pre_defined
	b.WriteString(handler)
	binaryWriteUint32(&b, 0) // reserved[0]
	binaryWriteUint32(&b, 0) // reserved[1]
	binaryWriteUint32(&b, 0) // reserved[2]
	b.WriteString(name)
	b.WriteByte(0)
	return box("hdlr", b.Bytes())
}

func buildMinf(p trakParams) []byte {
	var mediaHeader []byte
	if p.isAudio {
		mediaHeader = buildSmhd()
	} else {
		mediaHeader = buildVmhd()
	}
	dinf := nestedBox("dinf", buildDref())
	stbl := buildStbl(p.sampleEntry)
	return nestedBox("minf", mediaHeader, dinf, stbl)
}

func buildSmhd() []byte {
	var b bytes.Buffer
	b.Write(fullBoxHeader(0, 0))
	binaryWriteUint16(&b, 0) // balance
	binaryWriteUint16(&b, 0) // reserved
	return box("smhd", b.Bytes())
}

func buildVmhd() []byte {
	var b bytes.Buffer
	b.Write(fullBoxHeader(0, 1)) // flags = 1, per spec
	binaryWriteUint16(&b, 0)     // graphicsmode
	for i := 0; i < 3; i++ {
		binaryWriteUint16(&b, 0) // opcolor
	}
	return box("vmhd", b.Bytes())
}

func buildDref() []byte {
	var url bytes.Buffer
	url.Write(fullBoxHeader(0, 1)) // flags = 1: media data is in the same file (self-contained)
	urlBox := box("url ", url.Bytes())

	var dref bytes.Buffer
	dref.Write(fullBoxHeader(0, 0))
	binaryWriteUint32(&dref, 1) // entry_count
	dref.Write(urlBox)
	return box("dref", dref.Bytes())
}

func buildStbl(sampleEntry []byte) []byte {
	stsd := buildStsd(sampleEntry)
	stts := buildEmptyFullBox("stts")
	stsc := buildEmptyFullBox("stsc")
	stsz := buildEmptyStsz()
	stco := buildEmptyFullBox("stco")
	return nestedBox("stbl", stsd, stts, stsc, stsz, stco)
}

func buildStsd(sampleEntry []byte) []byte {
	var b bytes.Buffer
	b.Write(fullBoxHeader(0, 0))
	binaryWriteUint32(&b, 1) // entry_count
	b.Write(sampleEntry)
	return box("stsd", b.Bytes())
}

// buildEmptyFullBox builds a version-0/flags-0 full box with a zero
// entry_count, used for stts/stsc/stco: samples live in moof, not moov.
func buildEmptyFullBox(fourCC string) []byte {
	var b bytes.Buffer
	b.Write(fullBoxHeader(0, 0))
	binaryWriteUint32(&b, 0) // entry_count
	return box(fourCC, b.Bytes())
}

func buildEmptyStsz() []byte {
	var b bytes.Buffer
	b.Write(fullBoxHeader(0, 0))
	binaryWriteUint32(&b, 0) // sample_size (0 = table follows)
	binaryWriteUint32(&b, 0) // sample_count
	return box("stsz", b.Bytes())
}

func buildTrex(trackID uint32) []byte {
	var b bytes.Buffer
	b.Write(fullBoxHeader(0, 0))
	binaryWriteUint32(&b, trackID)
	binaryWriteUint32(&b, 1) // default_sample_description_index
	binaryWriteUint32(&b, 0) // default_sample_duration
	binaryWriteUint32(&b, 0) // default_sample_size
	binaryWriteUint32(&b, 0) // default_sample_flags
	return box("trex", b.Bytes())
}
