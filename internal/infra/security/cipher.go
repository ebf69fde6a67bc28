package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

const identityKeyLen = 32

// ErrDecryptionFailed is returned for any ciphertext that cannot be
// authenticated and decrypted. It is deliberately opaque: corruption and
// tampering are indistinguishable to callers.
var ErrDecryptionFailed = errors.New("security: decryption failed")

// IdentityCipher performs authenticated encryption of legal identifiers
// with AES-256-GCM. The key is injected at construction; a missing or
// malformed key is a construction error, which the caller treats as fatal
// at startup.
type IdentityCipher struct {
	aead cipher.AEAD
}

// NewIdentityCipher builds a cipher from a base64-encoded 256-bit key.
func NewIdentityCipher(keyBase64 string) (*IdentityCipher, error) {
	if keyBase64 == "" {
		return nil, errors.New("security: encryption key is not configured")
	}

	key, err := base64.StdEncoding.DecodeString(keyBase64)
	if err != nil {
		return nil, fmt.Errorf("security: decode encryption key: %w", err)
	}
	if len(key) != identityKeyLen {
		return nil, fmt.Errorf("security: encryption key must be %d bytes, got %d", identityKeyLen, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}

	return &IdentityCipher{aead: aead}, nil
}

// Encrypt seals the plaintext under a fresh random nonce and returns
// base64(nonce || ciphertext || tag). Two calls with the same input yield
// different blobs.
func (c *IdentityCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("security: generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt. Any authentication or
// decoding failure maps to ErrDecryptionFailed so the error carries no
// oracle about why verification failed.
func (c *IdentityCipher) Decrypt(blob string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	if len(sealed) < c.aead.NonceSize() {
		return "", ErrDecryptionFailed
	}

	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// GenerateEncryptionKey draws a new 256-bit key and encodes it in base64.
// Meant for one-time offline provisioning via cmd/keygen.
func GenerateEncryptionKey() (string, error) {
	key := make([]byte, identityKeyLen)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("security: generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
