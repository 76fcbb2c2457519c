package service

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"

	"github.com/taglink/taglink/internal/model"
)

// Tag ids are opaque strings read off physical tags (NFC UIDs, serials).
var tagIDRegex = regexp.MustCompile(`^[A-Za-z0-9._:~-]{1,100}$`)

var usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,80}$`)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
)

// Schemes that must never be served as a redirect target.
var blockedSchemes = map[string]bool{
	"javascript": true,
	"data":       true,
	"vbscript":   true,
	"file":       true,
}

// ValidateTagID checks the tag id format.
func ValidateTagID(tagID string) error {
	if !tagIDRegex.MatchString(tagID) {
		return ErrInvalidTagID
	}
	return nil
}

// ValidateRedirectURL checks a redirect target. Any absolute URL is accepted
// except script-capable schemes; http(s) URLs must name a host.
func ValidateRedirectURL(raw string) error {
	if raw == "" || strings.TrimSpace(raw) != raw {
		return ErrInvalidURL
	}
	if len(raw) > model.MaxRedirectURLLength {
		return ErrURLTooLong
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "" || blockedSchemes[scheme] {
		return ErrInvalidURL
	}
	if (scheme == "http" || scheme == "https") && u.Host == "" {
		return ErrInvalidURL
	}

	return nil
}

// normalizeEmail lowercases and validates an e-mail address.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || len(email) > model.MaxEmailLength {
		return "", ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}

	return email, nil
}

func validateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

func validatePassword(password string) error {
	if n := len(password); n < minPasswordLength || n > maxPasswordLength {
		return ErrInvalidPassword
	}
	return nil
}
