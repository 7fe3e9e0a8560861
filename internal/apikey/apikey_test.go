package apikey

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRawKey(t *testing.T) {
	key, err := GenerateRawKey()
	require.NoError(t, err)

	// 256 bits of randomness, hex-encoded
	assert.Len(t, key, 64)
	_, err = hex.DecodeString(key)
	assert.NoError(t, err)

	// Two keys never collide
	other, err := GenerateRawKey()
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestHashKey(t *testing.T) {
	key, err := GenerateRawKey()
	require.NoError(t, err)

	hash, err := HashKey(key)
	require.NoError(t, err)

	// Hash never contains the raw key
	assert.NotContains(t, hash, key)
	assert.True(t, strings.HasPrefix(hash, "$2"))

	// Salted: hashing twice yields different hashes, both valid
	hash2, err := HashKey(key)
	require.NoError(t, err)
	assert.NotEqual(t, hash, hash2)
	assert.True(t, CompareKey(key, hash))
	assert.True(t, CompareKey(key, hash2))
}

func TestCompareKey(t *testing.T) {
	key, err := GenerateRawKey()
	require.NoError(t, err)
	hash, err := HashKey(key)
	require.NoError(t, err)

	assert.True(t, CompareKey(key, hash))

	// Any bit flip must fail verification
	flipped := []byte(key)
	flipped[0] ^= 0x01
	assert.False(t, CompareKey(string(flipped), hash))

	assert.False(t, CompareKey("", hash))
	assert.False(t, CompareKey(key, ""))
	assert.False(t, CompareKey(key, "not-a-bcrypt-hash"))
}
