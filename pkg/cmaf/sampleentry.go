package cmaf

import "bytes"

// buildMP4ASampleEntry builds an `mp4a` sample entry carrying an `esds` box
// wrapping the track's AudioSpecificConfig (spec §4.1, §6).
func buildMP4ASampleEntry(cfg AudioTrackConfig) []byte {
	var b bytes.Buffer
	binaryWriteUint32(&b, 0) // reserved[0..5]
	binaryWriteUint16(&b, 0)
	binaryWriteUint16(&b, 1) // data_reference_index
	binaryWriteUint64(&b, 0) // reserved
	binaryWriteUint16(&b, uint16(channelsFromConfig(cfg.ChannelConfig)))
	binaryWriteUint16(&b, 16) // sample_size
	binaryWriteUint16(&b, 0)  // pre_defined
	binaryWriteUint16(&b, 0)  // reserved
	binaryWriteUint32(&b, cfg.SampleRate<<16)
	b.Write(buildEsds(cfg.AudioSpecificConfig))
	return box("mp4a", b.Bytes())
}

func channelsFromConfig(channelConfig uint8) uint8 {
	if channelConfig == 0 {
		return 2
	}
	return channelConfig
}

// buildEsds wraps an AudioSpecificConfig in the MPEG-4 descriptor chain
// (ES_Descriptor > DecoderConfigDescriptor > DecoderSpecificInfo) that `esds`
// requires.
func buildEsds(asc []byte) []byte {
	decSpecificInfo := descriptor(0x05, asc)

	var decConfig bytes.Buffer
	decConfig.WriteByte(0x40)       // objectTypeIndication: MPEG-4 Audio
	decConfig.WriteByte(0x15)       // streamType (audio) << 2 | upStream | reserved
	binaryWriteUint8(&decConfig, 0) // bufferSizeDB[0]
	binaryWriteUint16(&decConfig, 0)
	binaryWriteUint32(&decConfig, 0) // maxBitrate
	binaryWriteUint32(&decConfig, 0) // avgBitrate
	decConfig.Write(decSpecificInfo)
	decConfigDescriptor := descriptor(0x04, decConfig.Bytes())

	slConfig := descriptor(0x06, []byte{0x02})

	var es bytes.Buffer
	binaryWriteUint16(&es, 1) // ES_ID
	es.WriteByte(0)           // flags/streamPriority
	es.Write(decConfigDescriptor)
	es.Write(slConfig)
	esDescriptor := descriptor(0x03, es.Bytes())

	var b bytes.Buffer
	b.Write(fullBoxHeader(0, 0))
	b.Write(esDescriptor)
	return box("esds", b.Bytes())
}

// descriptor encodes an MPEG-4 descriptor tag with its expandable-length
// field (the classic "high bit continues" varint used throughout esds).
func descriptor(tag byte, payload []byte) []byte {
	var b bytes.Buffer
	b.WriteByte(tag)
	writeDescriptorLength(&b, len(payload))
	b.Write(payload)
	return b.Bytes()
}

func writeDescriptorLength(b *bytes.Buffer, length int) {
	if length < 0x80 {
		b.WriteByte(byte(length))
		return
	}
	// Four-byte expandable length form, most significant byte first, each
	// byte but the last carrying the continuation bit.
	b.WriteByte(byte(length>>21) | 0x80)
	b.WriteByte(byte(length>>14) | 0x80)
	b.WriteByte(byte(length>>7) | 0x80)
	b.WriteByte(byte(length) & 0x7F)
}

// buildVisualSampleEntry builds an `avc1`/`avcC` (or `hvc1`/`hvcC`) sample
// entry from the track's parameter sets.
func buildVisualSampleEntry(cfg VideoTrackConfig) []byte {
	var b bytes.Buffer
	binaryWriteUint32(&b, 0) // reserved[0..5]
	binaryWriteUint16(&b, 0)
	binaryWriteUint16(&b, 1) // data_reference_index
	binaryWriteUint16(&b, 0) // pre_defined
	binaryWriteUint16(&b, 0) // reserved
	for i := 0; i < 3; i++ {
		binaryWriteUint32(&b, 0) // pre_defined[3]
	}
	binaryWriteUint16(&b, cfg.Width)
	binaryWriteUint16(&b, cfg.Height)
	binaryWriteUint32(&b, 0x00480000) // horizresolution = 72 dpi
	binaryWriteUint32(&b, 0x00480000) // vertresolution = 72 dpi
	binaryWriteUint32(&b, 0)          // reserved
	binaryWriteUint16(&b, 1)          // frame_count
	for i := 0; i < 32; i++ {
		b.WriteByte(0) // compressorname, blank
	}
	binaryWriteUint16(&b, 0x0018) // depth = 24
	binaryWriteUint16(&b, 0xFFFF) // pre_defined

	fourCC := "avc1"
	if cfg.HEVC {
		fourCC = "hvc1"
		b.Write(buildHvcC(cfg))
	} else {
		b.Write(buildAvcC(cfg))
	}
	return box(fourCC, b.Bytes())
}

func buildAvcC(cfg VideoTrackConfig) []byte {
	sps := firstOrEmpty(cfg.SPS)
	var b bytes.Buffer
	b.WriteByte(1) // configurationVersion
	if len(sps) >= 4 {
		b.Write(sps[1:4]) // profile, compat, level
	} else {
		b.Write([]byte{0, 0, 0})
	}
	b.WriteByte(0xFF) // reserved(6)=1 | lengthSizeMinusOne=3 (4-byte NAL lengths)
	b.WriteByte(0xE0 | byte(len(cfg.SPS)))
	for _, s := range cfg.SPS {
		binaryWriteUint16(&b, uint16(len(s)))
		b.Write(s)
	}
	b.WriteByte(byte(len(cfg.PPS)))
	for _, p := range cfg.PPS {
		binaryWriteUint16(&b, uint16(len(p)))
		b.Write(p)
	}
	return box("avcC", b.Bytes())
}

func buildHvcC(cfg VideoTrackConfig) []byte {
	// Minimal hvcC: general profile/level fields zeroed (unknown without a
	// parsed VPS), followed by one NAL-unit array per parameter-set type.
	var b bytes.Buffer
	b.WriteByte(1)                 // configurationVersion
	b.WriteByte(0)                 // profile_space/tier/profile_idc
	binaryWriteUint32(&b, 0)       // compatibility flags
	for i := 0; i < 6; i++ {
		b.WriteByte(0) // constraint flags
	}
	b.WriteByte(0)                  // level_idc
	binaryWriteUint16(&b, 0xF000)   // min_spatial_segmentation_idc, reserved bits set
	b.WriteByte(0xFC)                // parallelismType, reserved bits set
	b.WriteByte(0xFC)                // chromaFormat, reserved bits set
	b.WriteByte(0xF8)                // bitDepthLuma, reserved bits set
	b.WriteByte(0xF8)                // bitDepthChroma, reserved bits set
	binaryWriteUint16(&b, 0)        // avgFrameRate
	b.WriteByte(0x0F)                // constantFrameRate<<6|numTemporalLayers<<3|temporalIdNested<<2|lengthSizeMinusOne=3

	arrays := []struct {
		nalType byte
		nals    [][]byte
	}{
		{32, cfg.VPS},
		{33, cfg.SPS},
		{34, cfg.PPS},
	}
	present := 0
	for _, a := range arrays {
		if len(a.nals) > 0 {
			present++
		}
	}
	b.WriteByte(byte(present))
	for _, a := range arrays {
		if len(a.nals) == 0 {
			continue
		}
		b.WriteByte(0x80 | a.nalType) // array_completeness=1
		binaryWriteUint16(&b, uint16(len(a.nals)))
		for _, n := range a.nals {
			binaryWriteUint16(&b, uint16(len(n)))
			b.Write(n)
		}
	}
	return box("hvcC", b.Bytes())
}

func firstOrEmpty(nals [][]byte) []byte {
	if len(nals) == 0 {
		return nil
	}
	return nals[0]
}
