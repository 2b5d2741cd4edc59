package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/chatauth/internal/logging"
	"github.com/dmitrijs2005/chatauth/internal/server"
	"github.com/dmitrijs2005/chatauth/internal/server/config"
	"github.com/dmitrijs2005/chatauth/internal/server/models"
	"github.com/dmitrijs2005/chatauth/internal/server/services"
)

// Identity is the part of services.IdentityService the commands use.
type Identity interface {
	Register(ctx context.Context, email, username, password string, displayName *string) (*models.User, error)
	VerifyEmail(ctx context.Context, token string) (bool, error)
	ResendVerification(ctx context.Context, email string) error
	Login(ctx context.Context, identifier, password string, deviceInfo, ipAddress *string) (*services.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) (bool, error)
	Logout(ctx context.Context, refreshToken string) (bool, error)
	LogoutAllDevices(ctx context.Context, userID string) (bool, error)
	ListSessions(ctx context.Context, userID string) ([]*models.Session, error)
	SetStatus(ctx context.Context, userID string, status models.UserStatus) error
}

var _ Identity = (*services.IdentityService)(nil)

// openIdentity is a seam for tests. The returned func releases storage.
var openIdentity = func(ctx context.Context, cfg *config.Config, logger logging.Logger) (Identity, func() error, error) {
	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return app.Identity(), app.Close, nil
}

func (st *state) withIdentity(cmd *cobra.Command, fn func(ctx context.Context, id Identity) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	id, closeFn, err := openIdentity(ctx, st.cfg, st.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFn(); err != nil {
			st.logger.Warn(ctx, "close storage", "error", err)
		}
	}()

	return fn(ctx, id)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
