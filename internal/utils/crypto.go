// internal/utils/crypto.go
package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashString is the stable fingerprint used to correlate anonymous affiliate
// clicks from the same visitor.
func HashString(input string) string {
	hasher := sha256.New()
	hasher.Write([]byte(input))
	return hex.EncodeToString(hasher.Sum(nil))
}
