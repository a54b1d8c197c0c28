package utils

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keyFormat = regexp.MustCompile(`^[A-Z0-9]{8}-[A-Z0-9]{8}-[A-Z0-9]{8}-[A-Z0-9]{8}$`)

func TestGenerateKeyFormat(t *testing.T) {
	for i := 0; i < 50; i++ {
		key, err := GenerateKey()
		require.NoError(t, err)
		assert.Regexp(t, keyFormat, key)
	}
}

func TestGenerateKeyUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		key, err := GenerateKey()
		require.NoError(t, err)
		assert.False(t, seen[key], "duplicate key generated: %s", key)
		seen[key] = true
	}
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "ABCD1234-EFGH5678-IJKL9012-MNOP3456",
		NormalizeKey("  abcd1234-efgh5678-ijkl9012-mnop3456 "))
	assert.Equal(t, "", NormalizeKey("   "))
}
