package model

// EncryptionMethod is the closed set of HLS segment-encryption methods.
type EncryptionMethod string

const (
	EncryptionMethodNone          EncryptionMethod = "NONE"
	EncryptionMethodAES128        EncryptionMethod = "AES-128"
	EncryptionMethodSampleAES     EncryptionMethod = "SAMPLE-AES"
	EncryptionMethodSampleAESCTR  EncryptionMethod = "SAMPLE-AES-CTR"
)

// EncryptionKey is the key material and wire metadata for one segment's
// #EXT-X-KEY entry. The LiveKeyManager never generates KeyBytes itself; a
// KeyProvider does, the manager only sequences delivery.
type EncryptionKey struct {
	Method            EncryptionMethod
	KeyBytes          [16]byte
	IV                [16]byte
	KeyURI            string
	KeyFormat         string
	KeyFormatVersions string
	KeyID             string
}
