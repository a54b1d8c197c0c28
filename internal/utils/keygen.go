package utils

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// keyAlphabet is the restricted character set used for license and
// script keys. Uppercase letters and digits only, so a key survives
// being read aloud or typed from a screenshot.
const keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// keyLength is the number of alphabet characters in a generated key,
// before group separators are inserted. 32 characters over a 36-symbol
// alphabet gives roughly 165 bits of entropy.
const keyLength = 32

// keyGroupSize controls how the key is chunked for human transcription;
// groups are joined with '-' (XXXXXXXX-XXXXXXXX-XXXXXXXX-XXXXXXXX).
const keyGroupSize = 8

// GenerateKey returns a new random credential string drawn from the key
// alphabet using crypto/rand, formatted in fixed-width groups. It is
// not a uniqueness guarantee by itself: inserts into the keys, scripts
// and subscribers tables are constrained by UNIQUE columns, and a
// collision surfaces as a conflict error rather than an overwrite.
func GenerateKey() (string, error) {
	max := big.NewInt(int64(len(keyAlphabet)))
	raw := make([]byte, keyLength)
	for i := range raw {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		raw[i] = keyAlphabet[n.Int64()]
	}
	groups := make([]string, 0, keyLength/keyGroupSize)
	for i := 0; i < keyLength; i += keyGroupSize {
		groups = append(groups, string(raw[i:i+keyGroupSize]))
	}
	return strings.Join(groups, "-"), nil
}

// NormalizeKey canonicalizes a client-supplied key for lookup: keys are
// stored upper-case, so comparison is case-insensitive from the
// client's point of view.
func NormalizeKey(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
