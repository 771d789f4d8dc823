package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/modzart/internal/dbx"
	"github.com/dmitrijs2005/modzart/internal/server/repositories/mods"
	"github.com/dmitrijs2005/modzart/internal/server/repositories/uploadjobs"
	"github.com/dmitrijs2005/modzart/internal/server/repositories/users"
	"github.com/dmitrijs2005/modzart/internal/server/repositories/versions"
)

// RepositoryManager vends repositories bound to a DBTX, so services can use
// the same code inside and outside dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Mods(db dbx.DBTX) mods.Repository
	Versions(db dbx.DBTX) versions.Repository
	UploadJobs(db dbx.DBTX) uploadjobs.Repository
}
