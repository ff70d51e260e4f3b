package clapikeys

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const (
	tokenBytes          = 32
	displayPrefixLength = 8
	maskSuffix          = "..."
)

// generateToken renvoie prefix + base64url(32 octets aléatoires)
func generateToken(prefix string) (string, error) {
	randomBytes := make([]byte, tokenBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return prefix + base64.RawURLEncoding.EncodeToString(randomBytes), nil
}

// HashToken calcule l'empreinte SHA-256 stockée à la place du jeton
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func displayPrefix(token string) string {
	if len(token) <= displayPrefixLength {
		return token
	}
	return token[:displayPrefixLength]
}

// MaskToken renvoie les 8 premiers caractères suivis de "..."
func MaskToken(token string) string {
	return displayPrefix(token) + maskSuffix
}
