package cmaf

import (
	"bytes"
	"encoding/binary"
)

// Free-function big-endian writers for composing leaf box payloads directly
// against a bytes.Buffer, used throughout init.go/sampleentry.go/media.go
// wherever a BoxWriter's box-framing isn't needed yet.

func binaryWriteUint8(b *bytes.Buffer, v uint8) {
	b.WriteByte(v)
}

func binaryWriteUint16(b *bytes.Buffer, v uint16) {
	binary.Write(b, binary.BigEndian, v)
}

func binaryWriteUint32(b *bytes.Buffer, v uint32) {
	binary.Write(b, binary.BigEndian, v)
}

func binaryWriteUint64(b *bytes.Buffer, v uint64) {
	binary.Write(b, binary.BigEndian, v)
}

func binaryWriteInt32(b *bytes.Buffer, v int32) {
	binary.Write(b, binary.BigEndian, v)
}
