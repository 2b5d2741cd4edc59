package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/chatauth/internal/logging"
	"github.com/dmitrijs2005/chatauth/internal/server/repositories/repomanager"
)

// SessionJanitor periodically purges expired sessions. Expired sessions are
// already unusable; the sweep only reclaims their rows.
type SessionJanitor struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	interval    time.Duration
	logger      logging.Logger
}

func NewSessionJanitor(db *sql.DB, m repomanager.RepositoryManager, interval time.Duration, logger logging.Logger) *SessionJanitor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &SessionJanitor{db: db, repomanager: m, interval: interval, logger: logger.With("module", "janitor")}
}

// Run sweeps on every tick until ctx is cancelled.
func (j *SessionJanitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := j.Sweep(ctx); err != nil && ctx.Err() == nil {
				j.logger.Error(ctx, "session sweep failed", "error", err)
			}
		}
	}
}

// Sweep deletes expired sessions once and returns how many were removed.
func (j *SessionJanitor) Sweep(ctx context.Context) (int64, error) {
	n, err := j.repomanager.Sessions(j.db).DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		j.logger.Info(ctx, "expired sessions removed", "count", n)
	}
	return n, nil
}
