// Package cli implements the chatauth command line: the long-running serve
// process, schema migration and operator commands that drive the identity
// service directly.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/chatauth/internal/logging"
	"github.com/dmitrijs2005/chatauth/internal/server"
	"github.com/dmitrijs2005/chatauth/internal/server/config"
)

// state is shared by all subcommands of one root command.
type state struct {
	cfg     *config.Config
	loadErr error
	logger  logging.Logger
}

// Seams for tests.
var (
	runServe = func(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
		app, err := server.NewApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close()
		return app.Run(ctx)
	}

	runMigrate = server.Migrate
)

// NewRootCmd creates the root command. Configuration is read from the
// environment when the command is built; flags override it.
func NewRootCmd() *cobra.Command {
	st := &state{}
	st.cfg, st.loadErr = config.Load()
	if st.cfg == nil {
		st.cfg = &config.Config{}
	}

	cmd := &cobra.Command{
		Use:   "chatauth",
		Short: "chatauth - authentication backend for the chat application",
		Long: `chatauth manages user accounts and sessions: registration, email
verification, password reset and JWT access/refresh tokens backed by
PostgreSQL, with transactional email queued through Redis.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if st.loadErr != nil {
				return st.loadErr
			}
			if err := st.cfg.Validate(); err != nil {
				return err
			}
			st.logger = logging.New(cmd.ErrOrStderr(), st.cfg.LogLevel, st.cfg.LogFormat)
			return nil
		},
	}

	config.BindFlags(cmd.PersistentFlags(), st.cfg)

	cmd.AddCommand(newServeCmd(st))
	cmd.AddCommand(newMigrateCmd(st))
	cmd.AddCommand(newUserCmd(st))
	cmd.AddCommand(newSessionCmd(st))

	return cmd
}

func newServeCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the mail dispatcher and session janitor",
		Long: `Open storage, apply pending migrations and run the background workers
until SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), st.cfg, st.logger)
		},
	}
}

func newMigrateCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := runMigrate(cmd.Context(), st.cfg, st.logger); err != nil {
				return err
			}
			cmd.Println("Migrations completed successfully")
			return nil
		},
	}
}
