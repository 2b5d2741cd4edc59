// Package auth issues and verifies the signed access/refresh tokens and
// provides the password hashing capability. It never touches storage.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/chatauth/internal/common"
	"github.com/dmitrijs2005/chatauth/internal/server/models"
)

const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// accessClaims carries the user identity. Field names follow the JSON
// contract shared with API consumers.
type accessClaims struct {
	jwt.RegisteredClaims
	UserID     string `json:"userId"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	IsVerified bool   `json:"isVerified"`
}

// refreshClaims only holds the opaque token id (jti) plus exp/iat. Claims are
// re-read from the store on every refresh.
type refreshClaims struct {
	jwt.RegisteredClaims
}

// RefreshPayload is what a verified refresh token reveals.
type RefreshPayload struct {
	TokenID   string
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies tokens. Access and refresh tokens use
// different secrets so one class cannot be forged from the other.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenIssuer builds an issuer. Zero TTLs fall back to the defaults.
func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	if accessTTL == 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	if refreshTTL == 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// RefreshTTL is the lifetime of refresh tokens and of the sessions backing them.
func (i *TokenIssuer) RefreshTTL() time.Duration { return i.refreshTTL }

func (i *TokenIssuer) IssueAccessToken(c models.AccessClaims) (string, error) {
	if len(i.accessSecret) == 0 {
		return "", &common.ConfigError{Fields: []string{"access token secret is not set"}}
	}

	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
		},
		UserID:     c.UserID,
		Email:      c.Email,
		Username:   c.Username,
		IsVerified: c.IsVerified,
	})

	s, err := token.SignedString(i.accessSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return s, nil
}

func (i *TokenIssuer) IssueRefreshToken() (string, error) {
	if len(i.refreshSecret) == 0 {
		return "", &common.ConfigError{Fields: []string{"refresh token secret is not set"}}
	}

	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.refreshTTL)),
		},
	})

	s, err := token.SignedString(i.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return s, nil
}

func (i *TokenIssuer) IssueTokenPair(c models.AccessClaims) (*models.TokenPair, error) {
	access, err := i.IssueAccessToken(c)
	if err != nil {
		return nil, err
	}
	refresh, err := i.IssueRefreshToken()
	if err != nil {
		return nil, err
	}
	return &models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccessToken checks signature and expiry and returns the claims.
// Any failure matches common.ErrInvalidToken.
func (i *TokenIssuer) VerifyAccessToken(tokenString string) (*models.AccessClaims, error) {
	if len(i.accessSecret) == 0 {
		return nil, &common.ConfigError{Fields: []string{"access token secret is not set"}}
	}

	claims := &accessClaims{}
	if err := i.parse(tokenString, claims, i.accessSecret); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing user id", common.ErrInvalidToken)
	}

	return &models.AccessClaims{
		UserID:     claims.UserID,
		Email:      claims.Email,
		Username:   claims.Username,
		IsVerified: claims.IsVerified,
	}, nil
}

// VerifyRefreshToken is VerifyAccessToken for the refresh secret.
func (i *TokenIssuer) VerifyRefreshToken(tokenString string) (*RefreshPayload, error) {
	if len(i.refreshSecret) == 0 {
		return nil, &common.ConfigError{Fields: []string{"refresh token secret is not set"}}
	}

	claims := &refreshClaims{}
	if err := i.parse(tokenString, claims, i.refreshSecret); err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing token id", common.ErrInvalidToken)
	}

	return &RefreshPayload{TokenID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func (i *TokenIssuer) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}
	if !token.Valid {
		return common.ErrInvalidToken
	}
	return nil
}
