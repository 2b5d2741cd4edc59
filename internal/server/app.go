// Package server wires the chatauth process together: it opens the owned
// Postgres and Redis handles, applies migrations, builds the identity service
// and runs the background workers (mail dispatcher, session janitor).
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/chatauth/internal/logging"
	"github.com/dmitrijs2005/chatauth/internal/server/auth"
	"github.com/dmitrijs2005/chatauth/internal/server/config"
	"github.com/dmitrijs2005/chatauth/internal/server/notify"
	"github.com/dmitrijs2005/chatauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/chatauth/internal/server/services"
	"github.com/dmitrijs2005/chatauth/internal/server/storage"
)

// Seams for tests.
var (
	openPostgres   = storage.OpenPostgres
	openRedis      = storage.NewRedis
	newRepoManager = repomanager.NewPostgresRepositoryManager
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	rdb         *redis.Client
	repomanager repomanager.RepositoryManager
	identity    *services.IdentityService
	dispatcher  *notify.Dispatcher
	janitor     *services.SessionJanitor
}

// NewApp validates cfg, opens storage, applies migrations and builds every
// component. On error all handles opened so far are closed.
func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &App{config: cfg, logger: logger, repomanager: newRepoManager()}
	if err := app.init(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	cfg := app.config

	var err error
	app.db, err = openPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}

	if err := app.repomanager.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("db migration error: %w", err)
	}

	app.rdb, err = openRedis(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis init error: %w", err)
	}

	renderer, err := notify.NewRenderer(cfg.AppURL)
	if err != nil {
		return err
	}
	outbox := notify.NewOutbox(app.rdb, cfg.MailOutboxKey, renderer, app.logger)
	sender := notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)

	issuer := auth.NewTokenIssuer(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)

	app.identity = services.NewIdentityService(app.db, app.repomanager, issuer, hasher, outbox, app.logger, cfg)
	app.dispatcher = notify.NewDispatcher(outbox, sender, cfg.MailPollTimeout, app.logger)
	app.janitor = services.NewSessionJanitor(app.db, app.repomanager, cfg.SessionSweepInterval, app.logger)

	return nil
}

// Identity exposes the identity service to the command layer.
func (app *App) Identity() *services.IdentityService {
	return app.identity
}

// initSignalHandler cancels on SIGINT, SIGTERM or SIGQUIT. The returned
// channel is closed once the handler has unregistered, which happens on a
// signal or when ctx is done.
func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) <-chan struct{} {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer signal.Stop(sigs)

		select {
		case sig := <-sigs:
			app.logger.Info(ctx, "signal received", "signal", sig.String())
			cancelFunc()
		case <-ctx.Done():
		}
	}()
	return done
}

// Run starts the mail dispatcher and the session janitor and blocks until
// ctx is cancelled or the process receives SIGINT/SIGTERM.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	sigDone := app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup
	workers := []struct {
		name string
		run  func(context.Context) error
	}{
		{"dispatcher", app.dispatcher.Run},
		{"janitor", app.janitor.Run},
	}

	for _, w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.run(ctx); err != nil {
				app.logger.Error(ctx, "worker stopped", "worker", w.name, "error", err)
				cancelFunc()
			}
		}()
	}

	wg.Wait()
	cancelFunc()
	<-sigDone
	app.logger.Info(context.WithoutCancel(ctx), "App stopped")
	return nil
}

// Close releases the Redis and Postgres handles.
func (app *App) Close() error {
	var errs []error
	if app.rdb != nil {
		if err := app.rdb.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
		app.rdb = nil
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close postgres: %w", err))
		}
		app.db = nil
	}
	return errors.Join(errs...)
}

// Migrate applies the schema migrations and exits.
func Migrate(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	db, err := openPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	if err := newRepoManager().RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("db migration error: %w", err)
	}
	logger.Info(ctx, "migrations applied")
	return nil
}
