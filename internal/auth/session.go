package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Session token format: tls_{48 nanoid chars}
const (
	SessionTokenPrefix = "tls_"
	sessionTokenLen    = 48
)

var (
	// ErrInvalidTokenFormat indicates the session token format is invalid.
	ErrInvalidTokenFormat = errors.New("invalid session token format")

	sessionTokenRegex = regexp.MustCompile(`^tls_[A-Za-z0-9_-]{48}$`)
)

// GeneratedToken is a freshly minted session token.
type GeneratedToken struct {
	Plaintext string // Returned to the client once
	Hash      string // Stored
}

// GenerateSessionToken creates a new opaque session token.
func GenerateSessionToken() (*GeneratedToken, error) {
	id, err := gonanoid.New(sessionTokenLen)
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	plaintext := SessionTokenPrefix + id
	return &GeneratedToken{
		Plaintext: plaintext,
		Hash:      HashSessionToken(plaintext),
	}, nil
}

// HashSessionToken returns the storage hash of a session token.
// Tokens carry 288 bits of entropy so a plain SHA-256 is sufficient.
func HashSessionToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ValidateSessionTokenFormat checks if token matches the expected format.
func ValidateSessionTokenFormat(token string) bool {
	return sessionTokenRegex.MatchString(token)
}
