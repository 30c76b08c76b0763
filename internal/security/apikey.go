package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// DefaultAPIKeyLength is the number of hex characters in a generated API key.
// 32 hex chars carry 128 bits of entropy, enough that collisions are
// negligible without any uniqueness check against existing keys.
const DefaultAPIKeyLength = 32

// GenerateAPIKey returns "{prefix}_{hex}" with hexLen hex characters drawn
// from a cryptographically secure random source. A non-positive hexLen uses
// DefaultAPIKeyLength.
func GenerateAPIKey(prefix string, hexLen int) (string, error) {
	if hexLen <= 0 {
		hexLen = DefaultAPIKeyLength
	}

	raw := make([]byte, (hexLen+1)/2)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}

	return prefix + "_" + hex.EncodeToString(raw)[:hexLen], nil
}
