// Package apikey generates and verifies app API keys.
//
// Raw keys are 256 bits of randomness, hex-encoded, shown to the caller
// exactly once. Only the bcrypt hash is ever persisted. bcrypt performs a
// constant-time comparison internally, so verification cost does not reveal
// which key was guessed character by character.
package apikey

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashCost is the bcrypt cost factor for key hashes.
const HashCost = 10

// rawKeyBytes is the entropy of a raw key before hex encoding.
const rawKeyBytes = 32

// GenerateRawKey returns a new high-entropy raw API key.
func GenerateRawKey() (string, error) {
	buf := make([]byte, rawKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate key material: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashKey computes the salted one-way hash of a raw key.
func HashKey(rawKey string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), HashCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash key: %w", err)
	}
	return string(hash), nil
}

// CompareKey reports whether rawKey matches the stored hash.
// A malformed or empty stored hash is treated as a non-match.
func CompareKey(rawKey, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(rawKey)) == nil
}
