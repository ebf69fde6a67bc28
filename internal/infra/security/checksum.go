package security

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// checksumLen is the stored digest length in hex characters. Truncating
// the SHA-256 keeps audit rows compact while leaving 128 bits of
// collision resistance.
const checksumLen = 32

// checksumField is excluded from canonicalization so a stored digest can
// be recomputed from the same field map it was derived from.
const checksumField = "checksum"

// RecordChecksum computes the integrity digest of an audit record's
// fields. Canonicalization stringifies every value and serializes the map
// with sorted keys, so two logically identical field sets hash the same
// regardless of insertion order.
func RecordChecksum(fields map[string]any) string {
	canonical := make(map[string]string, len(fields))
	for key, value := range fields {
		if key == checksumField {
			continue
		}
		canonical[key] = stringifyField(value)
	}

	// encoding/json sorts map keys, which gives the deterministic order.
	payload, err := json.Marshal(canonical)
	if err != nil {
		// A map[string]string cannot fail to marshal; keep the
		// fallback total anyway.
		payload = []byte(fmt.Sprintf("%v", canonical))
	}

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])[:checksumLen]
}

// VerifyRecordChecksum recomputes the digest and compares it against the
// checksum field embedded in the map.
func VerifyRecordChecksum(fields map[string]any) bool {
	stored, ok := fields[checksumField].(string)
	if !ok || stored == "" {
		return false
	}
	return RecordChecksum(fields) == stored
}

func stringifyField(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case *string:
		if v == nil {
			return ""
		}
		return *v
	default:
		return fmt.Sprintf("%v", v)
	}
}
