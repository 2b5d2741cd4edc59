// Package models defines server-side data models persisted in the database.
package models

import "time"

// UserStatus is the chat presence of a user.
type UserStatus string

const (
	StatusOnline  UserStatus = "online"
	StatusOffline UserStatus = "offline"
	StatusAway    UserStatus = "away"
)

// Valid reports whether s is one of the known presence values.
func (s UserStatus) Valid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusAway:
		return true
	}
	return false
}

// User is a registered account. Token fields hold sha256 digests; the
// plaintext tokens only ever travel by email.
type User struct {
	ID           string
	Email        string
	Username     string
	DisplayName  *string
	PasswordHash string
	IsVerified   bool

	// VerificationTokenHash is cleared once the token is consumed.
	VerificationTokenHash *string

	// ResetTokenHash is cleared on consumption or replaced by a newer request.
	ResetTokenHash      *string
	ResetTokenExpiresAt *time.Time

	Status      UserStatus
	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
