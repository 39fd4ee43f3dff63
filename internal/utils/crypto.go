// internal/utils/crypto.go
package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

const accessTokenBytes = 48

// GenerateAccessToken returns an unguessable URL-safe capability string.
func GenerateAccessToken() (string, error) {
	b := make([]byte, accessTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func HashString(input string) string {
	hasher := sha256.New()
	hasher.Write([]byte(input))
	return hex.EncodeToString(hasher.Sum(nil))
}

// HashParts hashes the parts joined by a separator that cannot occur in them.
func HashParts(parts ...string) string {
	return HashString(strings.Join(parts, "\x1f"))
}
