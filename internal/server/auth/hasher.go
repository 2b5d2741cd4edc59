package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor used when none is configured.
const DefaultBcryptCost = 12

// PasswordHasher turns passwords into digests and compares them.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	// Compare runs in time independent of where the digests differ.
	Compare(plaintext, digest string) bool
}

// maxPasswordBytes is the longest input bcrypt hashes without truncation.
const maxPasswordBytes = 72

// BcryptHasher implements PasswordHasher with bcrypt.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

// ErrPasswordTooLong is returned for passwords bcrypt would truncate.
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Compare rejects inputs longer than bcrypt accepts; they can never match
// a digest produced by Hash.
func (h *BcryptHasher) Compare(plaintext, digest string) bool {
	if len(plaintext) > maxPasswordBytes {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	return err == nil
}

// IsPasswordTooLong reports whether err came from an over-long password.
func IsPasswordTooLong(err error) bool {
	return errors.Is(err, ErrPasswordTooLong)
}
