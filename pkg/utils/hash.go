package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashString returns a stable hex digest, used for cache keys.
func HashString(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// HashParts hashes the parts joined by a separator that cannot appear in
// rubric or model names.
func HashParts(parts ...string) string {
	return HashString(strings.Join(parts, "\x1f"))
}
