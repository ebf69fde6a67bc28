package security

import (
	"crypto/sha256"
	"encoding/hex"
)

// LookupHasher derives deterministic digests of normalized RUTs so
// records can be matched by equality without ever decrypting. The salt is
// a fixed application-wide value injected from configuration.
type LookupHasher struct {
	salt string
}

// NewLookupHasher constructs a hasher with the configured salt.
func NewLookupHasher(salt string) *LookupHasher {
	return &LookupHasher{salt: salt}
}

// Hash returns the hex SHA-256 digest of the normalized RUT plus salt.
// Same input, same digest: determinism is what makes the search work.
func (h *LookupHasher) Hash(normalizedRUT string) string {
	sum := sha256.Sum256([]byte(normalizedRUT + h.salt))
	return hex.EncodeToString(sum[:])
}
