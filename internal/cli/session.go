package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newSessionCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Log in, rotate and revoke sessions",
	}

	cmd.AddCommand(
		newLoginCmd(st),
		newRefreshCmd(st),
		newLogoutCmd(st),
		newListSessionsCmd(st),
	)
	return cmd
}

func newLoginCmd(st *state) *cobra.Command {
	var identifier, password, device, ip string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with email or username and print a token pair",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				var err error
				if password, err = getPassword(cmd.InOrStdin(), cmd.OutOrStdout(), "Enter password: "); err != nil {
					return err
				}
			}

			return st.withIdentity(cmd, func(ctx context.Context, id Identity) error {
				res, err := id.Login(ctx, identifier, password, optional(device), optional(ip))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "user_id: %s\n", res.User.ID)
				fmt.Fprintf(out, "access_token: %s\n", res.Tokens.AccessToken)
				fmt.Fprintf(out, "refresh_token: %s\n", res.Tokens.RefreshToken)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&identifier, "identifier", "", "email or username")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	cmd.Flags().StringVar(&device, "device", "", "device description stored with the session")
	cmd.Flags().StringVar(&ip, "ip", "", "client address stored with the session")
	_ = cmd.MarkFlagRequired("identifier")
	return cmd
}

func newRefreshCmd(st *state) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Exchange a refresh token for a new token pair",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.withIdentity(cmd, func(ctx context.Context, id Identity) error {
				pair, err := id.Refresh(ctx, token)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "access_token: %s\n", pair.AccessToken)
				fmt.Fprintf(out, "refresh_token: %s\n", pair.RefreshToken)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "refresh token")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func newLogoutCmd(st *state) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session behind a refresh token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.withIdentity(cmd, func(ctx context.Context, id Identity) error {
				ok, err := id.Logout(ctx, token)
				if err != nil {
					return err
				}
				if ok {
					cmd.Println("Logged out")
				} else {
					cmd.Println("No such session")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "refresh token")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func newListSessionsCmd(st *state) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active sessions of a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.withIdentity(cmd, func(ctx context.Context, id Identity) error {
				list, err := id.ListSessions(ctx, userID)
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tDEVICE\tIP\tCREATED\tEXPIRES")
				for _, s := range list {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
						s.ID, deref(s.DeviceInfo), deref(s.IPAddress),
						s.CreatedAt.UTC().Format(time.RFC3339), s.ExpiresAt.UTC().Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "user id")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
