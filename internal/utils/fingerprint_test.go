package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashFingerprintDeterministic(t *testing.T) {
	a := HashFingerprint("DESKTOP-ABC123|00:1A:2B:3C:4D:5E")
	b := HashFingerprint("DESKTOP-ABC123|00:1A:2B:3C:4D:5E")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.Regexp(t, "^[0-9a-f]{64}$", a)
}

func TestHashFingerprintTrimsWhitespace(t *testing.T) {
	assert.Equal(t, HashFingerprint("machine-1"), HashFingerprint("  machine-1\n"))
}

func TestHashFingerprintKnownVector(t *testing.T) {
	// sha256("abc")
	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		HashFingerprint("abc"))
}

func TestHashFingerprintDistinguishesInputs(t *testing.T) {
	assert.NotEqual(t, HashFingerprint("machine-1"), HashFingerprint("machine-2"))
}
