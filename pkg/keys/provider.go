// Package keys implements LiveKeyManager (spec §4.9): delivery of
// per-segment encryption keys under a rotation policy, delegating key-byte
// generation to a KeyProvider so the manager itself never handles raw key
// material generation.
//
// Grounded on the teacher's KeyManager (pkg/security/encryption.go) for the
// AES-GCM key-generation idiom and on KeyRotationManager
// (pkg/security/keyrotation.go) for the policy/callback/statistics shape.
package keys

import (
	"github.com/aminofox/liveorigin/pkg/model"
)

// Provider returns key material for a new encryption key. The manager never
// generates raw key bytes itself (spec §4.9, §6).
type Provider interface {
	ProvideKey() (model.EncryptionKey, error)
}

// RandomProvider generates AES-128 key material using crypto/rand, the
// default-method provider the teacher's KeyManager.GenerateKey used.
type RandomProvider struct {
	KeyURI    string
	KeyFormat string
}

// ProvideKey generates fresh 128-bit key and IV material.
func (p RandomProvider) ProvideKey() (model.EncryptionKey, error) {
	return generateAES128Key(p.KeyURI, p.KeyFormat)
}
