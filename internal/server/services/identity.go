// Package services contains server-side business logic. IdentityService
// orchestrates registration, email verification, login, token refresh,
// password reset and logout on top of the credential and session stores.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/chatauth/internal/common"
	"github.com/dmitrijs2005/chatauth/internal/dbx"
	"github.com/dmitrijs2005/chatauth/internal/logging"
	"github.com/dmitrijs2005/chatauth/internal/server/auth"
	"github.com/dmitrijs2005/chatauth/internal/server/config"
	"github.com/dmitrijs2005/chatauth/internal/server/models"
	"github.com/dmitrijs2005/chatauth/internal/server/notify"
	"github.com/dmitrijs2005/chatauth/internal/server/repositories/repomanager"
)

const (
	// tokenBytes is the entropy of verification and reset tokens.
	tokenBytes = 32

	DefaultResetTokenTTL = time.Hour

	dummyPassword = "chatauth-timing-equalizer"
)

// LoginResult is returned by a successful Login.
type LoginResult struct {
	User   *models.User
	Tokens *models.TokenPair
}

// IdentityService is the single entry point for account and session
// workflows. It is safe for concurrent use.
type IdentityService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	issuer        *auth.TokenIssuer
	hasher        auth.PasswordHasher
	notifier      notify.Notifier
	logger        logging.Logger
	resetTokenTTL time.Duration
	now           func() time.Time

	dummyOnce   sync.Once
	dummyDigest string
}

// NewIdentityService constructs the service from its collaborators.
func NewIdentityService(
	db *sql.DB,
	m repomanager.RepositoryManager,
	issuer *auth.TokenIssuer,
	hasher auth.PasswordHasher,
	notifier notify.Notifier,
	logger logging.Logger,
	cfg *config.Config,
) *IdentityService {
	ttl := cfg.ResetTokenTTL
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	return &IdentityService{
		db:            db,
		repomanager:   m,
		issuer:        issuer,
		hasher:        hasher,
		notifier:      notifier,
		logger:        logger.With("module", "identity"),
		resetTokenTTL: ttl,
		now:           time.Now,
	}
}

// Register creates an unverified account and queues the verification email.
// A duplicate email or username yields common.ErrConflict.
func (s *IdentityService) Register(ctx context.Context, email, username, password string, displayName *string) (*models.User, error) {
	email = normalizeEmail(email)
	username = strings.TrimSpace(username)

	if err := validateRegistration(email, username, password); err != nil {
		return nil, err
	}

	digest, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}

	token, err := common.MakeRandHexString(tokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate verification token: %w", err)
	}
	tokenHash := common.HashToken(token)

	if displayName != nil {
		trimmed := strings.TrimSpace(*displayName)
		if trimmed == "" {
			displayName = nil
		} else {
			displayName = &trimmed
		}
	}

	user, err := s.repomanager.Users(s.db).Create(ctx, &models.User{
		Email:                 email,
		Username:              username,
		DisplayName:           displayName,
		PasswordHash:          digest,
		VerificationTokenHash: &tokenHash,
	})
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, err
		}
		return nil, common.NewInfrastructureError("register", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)

	if !s.notifier.SendVerificationEmail(ctx, user.Email, user.Username, token) {
		s.logger.Warn(ctx, "verification email not sent", "user_id", user.ID)
	}
	return user, nil
}

// VerifyEmail consumes a verification token. It returns true exactly once per
// token; unknown or already consumed tokens return false.
func (s *IdentityService) VerifyEmail(ctx context.Context, token string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}

	user, err := s.repomanager.Users(s.db).MarkVerified(ctx, common.HashToken(token))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, common.NewInfrastructureError("verify email", err)
	}

	s.logger.Info(ctx, "email verified", "user_id", user.ID)

	if !s.notifier.SendWelcomeEmail(ctx, user.Email, user.Username) {
		s.logger.Warn(ctx, "welcome email not sent", "user_id", user.ID)
	}
	return true, nil
}

// ResendVerification issues a fresh verification token for an unverified
// account, superseding the previous one. Unknown or verified addresses are
// silently ignored.
func (s *IdentityService) ResendVerification(ctx context.Context, email string) error {
	users := s.repomanager.Users(s.db)

	user, err := users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return common.NewInfrastructureError("resend verification", err)
	}
	if user.IsVerified {
		return nil
	}

	token, err := common.MakeRandHexString(tokenBytes)
	if err != nil {
		return fmt.Errorf("generate verification token: %w", err)
	}

	n, err := users.SetVerificationToken(ctx, user.ID, common.HashToken(token))
	if err != nil {
		return common.NewInfrastructureError("resend verification", err)
	}
	if n == 0 {
		// verified in the meantime
		return nil
	}

	if !s.notifier.SendVerificationEmail(ctx, user.Email, user.Username, token) {
		s.logger.Warn(ctx, "verification email not sent", "user_id", user.ID)
	}
	return nil
}

// Login authenticates by email or username. Any mismatch returns
// common.ErrInvalidCredentials without saying which part was wrong.
// Verification is not required to log in.
func (s *IdentityService) Login(ctx context.Context, identifier, password string, deviceInfo, ipAddress *string) (*LoginResult, error) {
	identifier = strings.TrimSpace(identifier)

	users := s.repomanager.Users(s.db)

	var (
		user *models.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = users.FindByEmail(ctx, normalizeEmail(identifier))
	} else {
		user, err = users.FindByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// burn the same bcrypt time as a real comparison
			s.hasher.Compare(password, s.dummyHash())
			return nil, common.ErrInvalidCredentials
		}
		return nil, common.NewInfrastructureError("login", err)
	}

	if !s.hasher.Compare(password, user.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}

	pair, err := s.issuer.IssueTokenPair(models.ClaimsFor(user))
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		UserID:           user.ID,
		RefreshTokenHash: common.HashToken(pair.RefreshToken),
		DeviceInfo:       deviceInfo,
		IPAddress:        ipAddress,
		ExpiresAt:        s.now().Add(s.issuer.RefreshTTL()),
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		usersTx := s.repomanager.Users(tx)
		if _, err := usersTx.TouchLastLogin(ctx, user.ID); err != nil {
			return err
		}
		if _, err := usersTx.UpdateStatus(ctx, user.ID, models.StatusOnline); err != nil {
			return err
		}
		return s.repomanager.Sessions(tx).Create(ctx, session)
	})
	if err != nil {
		return nil, common.NewInfrastructureError("login", err)
	}

	now := s.now()
	user.LastLoginAt = &now
	user.Status = models.StatusOnline

	s.logger.Info(ctx, "user logged in", "user_id", user.ID, "session_id", session.ID)
	return &LoginResult{User: user, Tokens: pair}, nil
}

// Refresh exchanges a refresh token for a new pair. The old session is
// consumed in the same transaction that stores the new one, so a refresh
// token works at most once. Claims are re-read from the user record.
func (s *IdentityService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	if _, err := s.issuer.VerifyRefreshToken(refreshToken); err != nil {
		return nil, err
	}

	var pair *models.TokenPair
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		sessionsTx := s.repomanager.Sessions(tx)

		old, err := sessionsTx.ConsumeActive(ctx, common.HashToken(refreshToken))
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return fmt.Errorf("%w: session not found or expired", common.ErrInvalidToken)
			}
			return err
		}

		user, err := s.repomanager.Users(tx).FindByID(ctx, old.UserID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return fmt.Errorf("%w: user no longer exists", common.ErrInvalidToken)
			}
			return err
		}

		pair, err = s.issuer.IssueTokenPair(models.ClaimsFor(user))
		if err != nil {
			return err
		}

		return sessionsTx.Create(ctx, &models.Session{
			UserID:           user.ID,
			RefreshTokenHash: common.HashToken(pair.RefreshToken),
			DeviceInfo:       old.DeviceInfo,
			IPAddress:        old.IPAddress,
			ExpiresAt:        s.now().Add(s.issuer.RefreshTTL()),
		})
	})
	if err != nil {
		if errors.Is(err, common.ErrInvalidToken) || errors.Is(err, common.ErrConfig) {
			return nil, err
		}
		return nil, common.NewInfrastructureError("refresh", err)
	}
	return pair, nil
}

// RequestPasswordReset issues a reset token and emails it. It returns nil
// whether or not the address belongs to an account.
func (s *IdentityService) RequestPasswordReset(ctx context.Context, email string) error {
	users := s.repomanager.Users(s.db)

	user, err := users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Debug(ctx, "password reset requested for unknown email")
			return nil
		}
		return common.NewInfrastructureError("request password reset", err)
	}

	token, err := common.MakeRandHexString(tokenBytes)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	if _, err := users.SetResetToken(ctx, user.ID, common.HashToken(token), s.now().Add(s.resetTokenTTL)); err != nil {
		return common.NewInfrastructureError("request password reset", err)
	}

	if !s.notifier.SendPasswordResetEmail(ctx, user.Email, user.Username, token) {
		s.logger.Warn(ctx, "password reset email not sent", "user_id", user.ID)
	}
	return nil
}

// ResetPassword replaces the password of the account owning a valid reset
// token, clears the token and revokes every session of that account.
func (s *IdentityService) ResetPassword(ctx context.Context, token, newPassword string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, common.ErrInvalidToken
	}
	if newPassword == "" {
		return false, fmt.Errorf("%w: password is required", common.ErrInvalidInput)
	}

	digest, err := s.hashPassword(newPassword)
	if err != nil {
		return false, err
	}

	var userID string
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		usersTx := s.repomanager.Users(tx)

		user, err := usersTx.FindByResetToken(ctx, common.HashToken(token))
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return fmt.Errorf("%w: reset token not found or expired", common.ErrInvalidToken)
			}
			return err
		}
		userID = user.ID

		if _, err := usersTx.UpdatePasswordDigest(ctx, user.ID, digest); err != nil {
			return err
		}
		if _, err := usersTx.ClearResetToken(ctx, user.ID); err != nil {
			return err
		}
		_, err = s.repomanager.Sessions(tx).DeleteAllForUser(ctx, user.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrInvalidToken) {
			return false, err
		}
		return false, common.NewInfrastructureError("reset password", err)
	}

	s.logger.Info(ctx, "password reset", "user_id", userID)
	return true, nil
}

// Logout revokes the session behind refreshToken. It reports false when no
// such session exists.
func (s *IdentityService) Logout(ctx context.Context, refreshToken string) (bool, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return false, nil
	}
	n, err := s.repomanager.Sessions(s.db).DeleteByToken(ctx, common.HashToken(refreshToken))
	if err != nil {
		return false, common.NewInfrastructureError("logout", err)
	}
	return n > 0, nil
}

// LogoutAllDevices revokes every session of the user and marks them offline.
// It reports whether any session was revoked.
func (s *IdentityService) LogoutAllDevices(ctx context.Context, userID string) (bool, error) {
	if err := validateUserID(userID); err != nil {
		return false, err
	}

	var n int64
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		n, err = s.repomanager.Sessions(tx).DeleteAllForUser(ctx, userID)
		if err != nil {
			return err
		}
		_, err = s.repomanager.Users(tx).UpdateStatus(ctx, userID, models.StatusOffline)
		return err
	})
	if err != nil {
		return false, common.NewInfrastructureError("logout all devices", err)
	}

	s.logger.Info(ctx, "all sessions revoked", "user_id", userID, "count", n)
	return n > 0, nil
}

// ListSessions returns the user's active sessions, newest first.
func (s *IdentityService) ListSessions(ctx context.Context, userID string) ([]*models.Session, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	list, err := s.repomanager.Sessions(s.db).ListActiveForUser(ctx, userID)
	if err != nil {
		return nil, common.NewInfrastructureError("list sessions", err)
	}
	return list, nil
}

// SetStatus updates the presence of a user.
func (s *IdentityService) SetStatus(ctx context.Context, userID string, status models.UserStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", common.ErrInvalidInput, status)
	}
	if err := validateUserID(userID); err != nil {
		return err
	}
	n, err := s.repomanager.Users(s.db).UpdateStatus(ctx, userID, status)
	if err != nil {
		return common.NewInfrastructureError("set status", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// Authenticate resolves an Authorization header value to access claims.
func (s *IdentityService) Authenticate(ctx context.Context, header string) (*models.AccessClaims, error) {
	token, ok := auth.ExtractBearerToken(header)
	if !ok {
		return nil, fmt.Errorf("%w: missing bearer token", common.ErrInvalidToken)
	}
	return s.issuer.VerifyAccessToken(token)
}

func (s *IdentityService) hashPassword(password string) (string, error) {
	digest, err := s.hasher.Hash(password)
	if err != nil {
		if auth.IsPasswordTooLong(err) {
			return "", fmt.Errorf("%w: password is too long", common.ErrInvalidInput)
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return digest, nil
}

func (s *IdentityService) dummyHash() string {
	s.dummyOnce.Do(func() {
		s.dummyDigest, _ = s.hasher.Hash(dummyPassword)
	})
	return s.dummyDigest
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateUserID rejects ids the uuid column would refuse.
func validateUserID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: user id %q is not a uuid", common.ErrInvalidInput, id)
	}
	return nil
}

func validateRegistration(email, username, password string) error {
	var problems []string

	if email == "" {
		problems = append(problems, "email is required")
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		problems = append(problems, "email is malformed")
	}

	switch {
	case username == "":
		problems = append(problems, "username is required")
	case strings.ContainsAny(username, "@ \t\r\n"):
		problems = append(problems, "username must not contain '@' or whitespace")
	}

	if password == "" {
		problems = append(problems, "password is required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", common.ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}
