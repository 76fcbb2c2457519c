package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/oklog/ulid/v2"
)

const (
	resetTokenIssuer   = "taglink"
	resetTokenAudience = "password-reset"

	// PASETO v4 symmetric key requirements.
	keyBytesSize = 32
	keyHexSize   = 64

	fingerprintClaim = "pwd"
)

// ErrInvalidResetToken covers malformed, tampered, expired and foreign tokens.
var ErrInvalidResetToken = errors.New("invalid or expired reset token")

// resetImplicit binds tokens to this purpose so they cannot be replayed
// against any other v4.local consumer sharing the key.
var resetImplicit = []byte("taglink/password-reset/v1")

// ResetClaims are the verified contents of a password reset token.
type ResetClaims struct {
	AccountID   string
	Fingerprint string
	ExpiresAt   time.Time
}

// ResetTokenSigner issues and verifies PASETO v4.local password reset tokens.
type ResetTokenSigner struct {
	key paseto.V4SymmetricKey
	now func() time.Time
}

// NewResetTokenSigner derives the symmetric key from secret.
// A 64 character hex secret is used as the raw key; anything else is
// stretched with SHA-256.
func NewResetTokenSigner(secret string) (*ResetTokenSigner, error) {
	if secret == "" {
		return nil, errors.New("reset token secret must not be empty")
	}

	var keyBytes []byte
	if len(secret) == keyHexSize {
		if decoded, err := hex.DecodeString(secret); err == nil {
			keyBytes = decoded
		}
	}
	if keyBytes == nil {
		sum := sha256.Sum256([]byte(secret))
		keyBytes = sum[:]
	}
	if len(keyBytes) != keyBytesSize {
		return nil, fmt.Errorf("decoded key must be exactly %d bytes, got %d", keyBytesSize, len(keyBytes))
	}

	key, err := paseto.V4SymmetricKeyFromBytes(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create PASETO symmetric key: %w", err)
	}

	return &ResetTokenSigner{key: key, now: time.Now}, nil
}

// WithClock returns a copy of the signer that reads time from now.
func (s *ResetTokenSigner) WithClock(now func() time.Time) *ResetTokenSigner {
	cp := *s
	cp.now = now
	return &cp
}

// Issue creates a token for accountID valid for ttl. fingerprint should
// identify the account's current password so a reset invalidates older tokens.
func (s *ResetTokenSigner) Issue(accountID, fingerprint string, ttl time.Duration) (string, error) {
	if accountID == "" {
		return "", errors.New("reset token requires an account id")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("reset token ttl must be positive, got %s", ttl)
	}

	now := s.now()
	token := paseto.NewToken()
	token.SetIssuer(resetTokenIssuer)
	token.SetAudience(resetTokenAudience)
	token.SetSubject(accountID)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(now.Add(ttl))
	token.SetJti(ulid.Make().String())
	token.SetString(fingerprintClaim, fingerprint)

	return token.V4Encrypt(s.key, resetImplicit), nil
}

// Verify decrypts token and checks issuer, audience and validity window.
func (s *ResetTokenSigner) Verify(tokenString string) (*ResetClaims, error) {
	parser := paseto.NewParserWithoutExpiryCheck()
	parser.AddRule(paseto.ForAudience(resetTokenAudience))
	parser.AddRule(paseto.IssuedBy(resetTokenIssuer))
	parser.AddRule(paseto.ValidAt(s.now()))

	token, err := parser.ParseV4Local(s.key, tokenString, resetImplicit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResetToken, err)
	}

	subject, err := token.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidResetToken)
	}
	fingerprint, err := token.GetString(fingerprintClaim)
	if err != nil {
		return nil, fmt.Errorf("%w: missing fingerprint", ErrInvalidResetToken)
	}
	expiresAt, err := token.GetExpiration()
	if err != nil {
		return nil, fmt.Errorf("%w: missing expiry", ErrInvalidResetToken)
	}

	return &ResetClaims{
		AccountID:   subject,
		Fingerprint: fingerprint,
		ExpiresAt:   expiresAt,
	}, nil
}
