package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/chatauth/internal/dbx"
	"github.com/dmitrijs2005/chatauth/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/chatauth/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX so callers can run
// them on the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) sessions.Repository
}
