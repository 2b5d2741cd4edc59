package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/chatauth/internal/server/models"
)

func newUserCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	cmd.AddCommand(
		newRegisterCmd(st),
		newVerifyCmd(st),
		newResendVerificationCmd(st),
		newRequestResetCmd(st),
		newResetPasswordCmd(st),
		newLogoutAllCmd(st),
		newStatusCmd(st),
	)
	return cmd
}

func newRegisterCmd(st *state) *cobra.Command {
	var email, username, displayName, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new account and send the verification email",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				var err error
				if password, err = getPassword(cmd.InOrStdin(), cmd.OutOrStdout(), "Enter password: "); err != nil {
					return err
				}
			}

			return st.withIdentity(cmd, func(ctx context.Context, id Identity) error {
				u, err := id.Register(ctx, email, username, password, optional(displayName))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (id %s). Check %s for the verification link.\n", u.Username, u.ID, u.Email)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&username, "username", "", "unique username")
	cmd.Flags().StringVar(&displayName, "display-name", "", "optional display name")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newVerifyCmd(st *state) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Consume an email verification token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.withIdentity(cmd, func(ctx context.Context, id Identity) error {
				ok, err := id.VerifyEmail(ctx, token)
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("verification token is invalid or already used")
				}
				cmd.Println("Email verified")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "token from the verification email")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func newResendVerificationCmd(st *state) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "resend-verification",
		Short: "Send a fresh verification email to an unverified account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.withIdentity(cmd, func(ctx context.Context, id Identity) error {
				if err := id.ResendVerification(ctx, email); err != nil {
					return err
				}
				cmd.Println("If the account exists and is unverified, a new link has been sent")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newRequestResetCmd(st *state) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "request-reset",
		Short: "Email a password reset link",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.withIdentity(cmd, func(ctx context.Context, id Identity) error {
				if err := id.RequestPasswordReset(ctx, email); err != nil {
					return err
				}
				cmd.Println("If the account exists, a reset link has been sent")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newResetPasswordCmd(st *state) *cobra.Command {
	var token, password string

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password using a reset token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				var err error
				if password, err = getPassword(cmd.InOrStdin(), cmd.OutOrStdout(), "Enter new password: "); err != nil {
					return err
				}
			}

			return st.withIdentity(cmd, func(ctx context.Context, id Identity) error {
				if _, err := id.ResetPassword(ctx, token, password); err != nil {
					return err
				}
				cmd.Println("Password changed. All sessions have been signed out")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "token from the reset email")
	cmd.Flags().StringVar(&password, "password", "", "new password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func newLogoutAllCmd(st *state) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "logout-all",
		Short: "Revoke every session of a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.withIdentity(cmd, func(ctx context.Context, id Identity) error {
				ok, err := id.LogoutAllDevices(ctx, userID)
				if err != nil {
					return err
				}
				if ok {
					cmd.Println("All sessions revoked")
				} else {
					cmd.Println("No active sessions")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "user id")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func newStatusCmd(st *state) *cobra.Command {
	var userID, status string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Set presence: online, offline or away",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.withIdentity(cmd, func(ctx context.Context, id Identity) error {
				if err := id.SetStatus(ctx, userID, models.UserStatus(status)); err != nil {
					return err
				}
				cmd.Printf("Status set to %s\n", status)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "user id")
	cmd.Flags().StringVar(&status, "status", "", "online, offline or away")
	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}
