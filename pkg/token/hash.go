package token

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the hex SHA-256 digest under which a refresh token is stored.
// It is deterministic so records can be looked up by it.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
