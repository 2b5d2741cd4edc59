package models

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AccessClaims is the identity carried by an access token.
type AccessClaims struct {
	UserID     string
	Email      string
	Username   string
	IsVerified bool
}

// ClaimsFor derives access-token claims from the current user record.
func ClaimsFor(u *User) AccessClaims {
	return AccessClaims{
		UserID:     u.ID,
		Email:      u.Email,
		Username:   u.Username,
		IsVerified: u.IsVerified,
	}
}
