package models

import "time"

// Session binds a refresh token (stored as a digest) to a user and an expiry.
// A user may hold many sessions, one per device.
type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash string
	DeviceInfo       *string
	IPAddress        *string
	ExpiresAt        time.Time
	CreatedAt        time.Time
}

// IsValid reports whether the session is still usable at now.
func (s *Session) IsValid(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
