// Package sessions is the Session Store: refresh-token sessions keyed by the
// digest of the refresh token.
package sessions

import (
	"context"

	"github.com/dmitrijs2005/chatauth/internal/server/models"
)

// Repository defines operations for issuing, rotating and revoking sessions.
type Repository interface {
	// Create stores s and fills in its ID and CreatedAt.
	Create(ctx context.Context, s *models.Session) error

	// FindActive returns the non-expired session for the token digest or
	// common.ErrorNotFound.
	FindActive(ctx context.Context, tokenHash string) (*models.Session, error)

	// ConsumeActive deletes the non-expired session for the token digest and
	// returns it. Of two concurrent callers at most one gets the row, the
	// other sees common.ErrorNotFound.
	ConsumeActive(ctx context.Context, tokenHash string) (*models.Session, error)

	// DeleteByToken removes the session regardless of expiry. Removing a
	// missing session is not an error.
	DeleteByToken(ctx context.Context, tokenHash string) (int64, error)

	DeleteAllForUser(ctx context.Context, userID string) (int64, error)

	// ListActiveForUser returns the user's non-expired sessions, newest first.
	ListActiveForUser(ctx context.Context, userID string) ([]*models.Session, error)

	// DeleteExpired purges sessions whose expiry has passed.
	DeleteExpired(ctx context.Context) (int64, error)
}
