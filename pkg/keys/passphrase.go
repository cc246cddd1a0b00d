package keys

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"

	"github.com/aminofox/liveorigin/pkg/model"
)

// pbkdf2Iterations follows current OWASP guidance for PBKDF2-HMAC-SHA256.
const pbkdf2Iterations = 600000

// PassphraseProvider derives AES-128 segment key material from an
// operator-supplied passphrase via PBKDF2-HMAC-SHA256, rather than
// generating random key bytes the way RandomProvider does. Each call mints a
// fresh random salt, so every rotation yields distinct key bytes and IV even
// under a fixed passphrase.
type PassphraseProvider struct {
	Passphrase string
	KeyURI     string
	KeyFormat  string
}

// ProvideKey derives 128 bits of key material and 128 bits of IV from the
// passphrase and a freshly generated salt, split from a single PBKDF2
// derivation so one KDF pass covers both.
func (p PassphraseProvider) ProvideKey() (model.EncryptionKey, error) {
	var key model.EncryptionKey

	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return key, fmt.Errorf("liveorigin/keys: failed to generate salt: %w", err)
	}

	derived := pbkdf2.Key([]byte(p.Passphrase), salt, pbkdf2Iterations, 32, sha256.New)
	copy(key.KeyBytes[:], derived[:16])
	copy(key.IV[:], derived[16:32])

	key.Method = model.EncryptionMethodAES128
	key.KeyURI = p.KeyURI
	key.KeyFormat = p.KeyFormat
	key.KeyID = uuid.New().String()
	return key, nil
}

// Argon2idParams tunes the escrow-passphrase hash. Defaults follow the
// OWASP-recommended Argon2id baseline for interactive login-equivalent
// verification.
type Argon2idParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
}

// DefaultArgon2idParams returns the baseline tuning used when escrowing an
// operator passphrase for later provider bootstrapping.
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{Time: 3, Memory: 64 * 1024, Threads: 4, KeyLen: 32}
}

// HashEscrowPassphrase hashes a passphrase for at-rest storage (e.g.
// alongside a PassphraseProvider's configuration) using Argon2id, returning
// the salt and derived hash so the caller can persist both. The manager
// itself never sees or needs the plaintext passphrase again once escrowed.
func HashEscrowPassphrase(passphrase string, params Argon2idParams) (salt, hash []byte, err error) {
	salt = make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, nil, fmt.Errorf("liveorigin/keys: failed to generate escrow salt: %w", err)
	}
	hash = argon2.IDKey([]byte(passphrase), salt, params.Time, params.Memory, params.Threads, params.KeyLen)
	return salt, hash, nil
}

// VerifyEscrowPassphrase recomputes the Argon2id hash for passphrase under
// the given salt/params and reports whether it matches hash.
func VerifyEscrowPassphrase(passphrase string, salt, hash []byte, params Argon2idParams) bool {
	candidate := argon2.IDKey([]byte(passphrase), salt, params.Time, params.Memory, params.Threads, params.KeyLen)
	if len(candidate) != len(hash) {
		return false
	}
	var diff byte
	for i := range candidate {
		diff |= candidate[i] ^ hash[i]
	}
	return diff == 0
}
