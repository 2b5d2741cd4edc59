package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/chatauth/internal/common"
)

// ExtractBearerToken pulls the token out of an "Authorization: Bearer <token>"
// header value. It reports false for a missing header or scheme.
func ExtractBearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], common.BearerScheme) {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

// GetExpiration decodes the token without checking its signature and returns
// the exp claim.
func GetExpiration(tokenString string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// IsExpired is true when the expiration is unknown or already passed.
func IsExpired(tokenString string) bool {
	exp, ok := GetExpiration(tokenString)
	if !ok {
		return true
	}
	return !time.Now().Before(exp)
}
