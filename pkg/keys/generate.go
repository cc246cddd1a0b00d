package keys

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/aminofox/liveorigin/pkg/model"
)

// generateAES128Key produces new random key/IV material the way the
// teacher's KeyManager.GenerateKey does (crypto/rand, fixed key size), but
// sized for HLS AES-128 segment encryption rather than token encryption.
func generateAES128Key(keyURI, keyFormat string) (model.EncryptionKey, error) {
	var key model.EncryptionKey
	if _, err := io.ReadFull(rand.Reader, key.KeyBytes[:]); err != nil {
		return key, fmt.Errorf("liveorigin/keys: failed to generate key: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, key.IV[:]); err != nil {
		return key, fmt.Errorf("liveorigin/keys: failed to generate iv: %w", err)
	}
	key.Method = model.EncryptionMethodAES128
	key.KeyURI = keyURI
	key.KeyFormat = keyFormat
	key.KeyID = uuid.New().String()
	return key, nil
}
