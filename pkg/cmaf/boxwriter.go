// Package cmaf implements CMAFWriter (spec §4.1, §6): the binary box encoder
// that produces CMAF-conformant fMP4 initialization segments, media
// segments, and LL-HLS partial segments. It is purely functional: no frame
// validation, no retries, no I/O — it only ever returns byte buffers.
//
// Grounded stylistically on the teacher's hand-rolled MPEG-TS writer
// (pkg/streaming/hls/segment.go), which packs big-endian binary fields by
// hand via encoding/binary rather than a box library; see DESIGN.md for why
// this stays a hand-rolled encoder rather than wrapping a third-party fMP4
// library.
package cmaf

import (
	"bytes"
	"encoding/binary"
)

// maxUint32Size is the largest box payload that fits the standard 32-bit
// box-size form before the writer must fall back to the 64-bit extended
// form (spec §4.1 failure semantics).
const maxUint32Size = 0xFFFFFFFF - 8

// BoxWriter is a low-level big-endian writer for ISO-BMFF boxes: each box is
// length-prefixed, four-CC typed, and optionally versioned-and-flagged.
type BoxWriter struct {
	buf bytes.Buffer
}

// NewBoxWriter returns an empty BoxWriter.
func NewBoxWriter() *BoxWriter {
	return &BoxWriter{}
}

// Bytes returns the accumulated byte buffer.
func (w *BoxWriter) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of bytes written so far.
func (w *BoxWriter) Len() int {
	return w.buf.Len()
}

// WriteBox appends a complete box: size, four-CC, then payload. If the
// payload plus the 8-byte header would overflow a 32-bit size field, it
// switches to the 64-bit extended-size form (size field == 1, followed by
// the type, followed by the real 64-bit size).
func (w *BoxWriter) WriteBox(fourCC string, payload []byte) {
	if len(payload) > maxUint32Size {
		w.writeUint32(1)
		w.writeFourCC(fourCC)
		w.writeUint64(uint64(len(payload)) + 16)
		w.buf.Write(payload)
		return
	}
	w.writeUint32(uint32(len(payload) + 8))
	w.writeFourCC(fourCC)
	w.buf.Write(payload)
}

// WriteNestedBox appends a box whose payload is itself the concatenation of
// child box bytes already built by the caller.
func (w *BoxWriter) WriteNestedBox(fourCC string, children ...[]byte) {
	var payload bytes.Buffer
	for _, c := range children {
		payload.Write(c)
	}
	w.WriteBox(fourCC, payload.Bytes())
}

func (w *BoxWriter) writeFourCC(fourCC string) {
	if len(fourCC) != 4 {
		panic("cmaf: four-CC must be exactly 4 characters: " + fourCC)
	}
	w.buf.WriteString(fourCC)
}

func (w *BoxWriter) writeUint8(v uint8)   { w.buf.WriteByte(v) }
func (w *BoxWriter) writeUint16(v uint16) { binary.Write(&w.buf, binary.BigEndian, v) }
func (w *BoxWriter) writeUint32(v uint32) { binary.Write(&w.buf, binary.BigEndian, v) }
func (w *BoxWriter) writeUint64(v uint64) { binary.Write(&w.buf, binary.BigEndian, v) }
func (w *BoxWriter) writeInt32(v int32)   { binary.Write(&w.buf, binary.BigEndian, v) }

// box is a free function building a single box's bytes without needing a
// BoxWriter instance; convenient for leaf boxes built bottom-up.
func box(fourCC string, payload []byte) []byte {
	w := NewBoxWriter()
	w.WriteBox(fourCC, payload)
	return w.Bytes()
}

// nestedBox is the free-function equivalent of WriteNestedBox.
func nestedBox(fourCC string, children ...[]byte) []byte {
	w := NewBoxWriter()
	w.WriteNestedBox(fourCC, children...)
	return w.Bytes()
}

// fullBoxHeader returns the 4-byte version+flags header shared by "full
// boxes" (mvhd, tkhd, mdhd, tfhd, tfdt, trun, ...).
func fullBoxHeader(version uint8, flags uint32) []byte {
	var buf bytes.Buffer
	buf.WriteByte(version)
	flagBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(flagBytes, flags)
	buf.Write(flagBytes[1:]) // flags is a 24-bit field
	return buf.Bytes()
}
