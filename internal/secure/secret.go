// Encryption and key hashing for the disk cache
package secure

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Secret encrypts and decrypts single lines of text. Both directions can
// fail (wrong key material, corrupt input) and report that as an error so
// callers can treat the data as unreadable instead of crashing.
type Secret interface {
	Encrypt(plain string) (string, error)
	Decrypt(encoded string) (string, error)
}

const keyIterations = 4096

type aesSecret struct {
	aead cipher.AEAD
}

// NewSecret derives an AES-256-GCM Secret from a password. The same
// password always yields the same key, so separate handles over the same
// directory can read each other's entries.
func NewSecret(password string) (Secret, error) {
	salt := sha256.Sum256([]byte("cache-store:" + password))
	key := pbkdf2.Key([]byte(password), salt[:], keyIterations, 32, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return &aesSecret{aead: aead}, nil
}

// Encrypt seals a single line of text. The random nonce is prepended to the
// ciphertext and the whole blob is base64-encoded, so the result never
// contains a newline.
func (s *aesSecret) Encrypt(plain string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := s.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Any tampering, truncation or key mismatch is
// reported as an error.
func (s *aesSecret) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}

	if len(raw) < s.aead.NonceSize() {
		return "", fmt.Errorf("ciphertext too short: %d bytes", len(raw))
	}

	nonce, sealed := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("opening ciphertext: %w", err)
	}

	return string(plain), nil
}
