package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/securevault/internal/dbx"
	"github.com/dmitrijs2005/securevault/internal/server/repositories/auditlogs"
	"github.com/dmitrijs2005/securevault/internal/server/repositories/items"
	"github.com/dmitrijs2005/securevault/internal/server/repositories/passkeys"
	"github.com/dmitrijs2005/securevault/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/securevault/internal/server/repositories/trusttokens"
	"github.com/dmitrijs2005/securevault/internal/server/repositories/users"
	"github.com/dmitrijs2005/securevault/internal/server/repositories/vaults"
)

// RepositoryManager vends repositories bound to a DBTX, so services can run
// the same repository code on *sql.DB or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	TrustTokens(db dbx.DBTX) trusttokens.Repository
	Vaults(db dbx.DBTX) vaults.Repository
	Items(db dbx.DBTX) items.Repository
	Passkeys(db dbx.DBTX) passkeys.Repository
	AuditLogs(db dbx.DBTX) auditlogs.Repository
}
