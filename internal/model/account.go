package model

import "time"

// Account is a registered user. Accounts are never deleted.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Field widths of the accounts table.
const (
	MaxUsernameLength = 80
	MaxEmailLength    = 120
)
