// Package common defines shared constants and sentinel errors used across
// the store, token and service layers of chatauth. Callers should use
// errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrConfig reports a missing or invalid required setting. Fatal at startup.
	ErrConfig = errors.New("configuration error")

	// ErrConflict reports a duplicate email or username.
	ErrConflict = errors.New("already exists")

	// ErrInvalidCredentials is returned by login and never says which field was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken covers bad, expired or consumed verification, reset,
	// access and refresh tokens.
	ErrInvalidToken = errors.New("invalid token")

	// ErrInfrastructure marks store or network failures. Not retried.
	ErrInfrastructure = errors.New("infrastructure error")

	// ErrInvalidInput reports blank or ill-formed registration data.
	ErrInvalidInput = errors.New("invalid input")
)

// InfrastructureError wraps a store or network failure together with the
// operation that hit it.
type InfrastructureError struct {
	Op  string
	Err error
}

// NewInfrastructureError wraps err, returning nil for a nil err.
func NewInfrastructureError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &InfrastructureError{Op: op, Err: err}
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrInfrastructure, e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrInfrastructure) match without losing the cause.
func (e *InfrastructureError) Is(target error) bool { return target == ErrInfrastructure }

// ConfigError lists every configuration key that is missing or invalid.
type ConfigError struct {
	Fields []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConfig, strings.Join(e.Fields, "; "))
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }
