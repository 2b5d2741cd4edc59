// Package users is the Credential Store: persistence of user records and
// password digests.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/chatauth/internal/server/models"
)

// Repository is the Credential Store contract. Token arguments are sha256
// digests, never plaintext. Lookups return common.ErrorNotFound when no row
// matches; Create returns common.ErrConflict on a duplicate email/username.
// Mutations report affected rows.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)

	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByVerificationToken(ctx context.Context, tokenHash string) (*models.User, error)
	// FindByResetToken only matches unexpired tokens and locks the row when
	// called inside a transaction.
	FindByResetToken(ctx context.Context, tokenHash string) (*models.User, error)

	// MarkVerified consumes the verification token in one conditional update.
	MarkVerified(ctx context.Context, tokenHash string) (*models.User, error)
	SetVerificationToken(ctx context.Context, userID, tokenHash string) (int64, error)

	UpdatePasswordDigest(ctx context.Context, userID, digest string) (int64, error)
	SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (int64, error)
	ClearResetToken(ctx context.Context, userID string) (int64, error)

	TouchLastLogin(ctx context.Context, userID string) (int64, error)
	UpdateStatus(ctx context.Context, userID string, status models.UserStatus) (int64, error)
}
