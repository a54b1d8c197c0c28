package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashFingerprint returns the canonical stored form of a raw device
// fingerprint: the lowercase hex SHA-256 digest of the trimmed input.
// Every table and every comparison in this service uses the digest;
// raw HWIDs never touch storage. The function is deterministic and has
// fixed-length output regardless of what the client sends.
func HashFingerprint(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}
