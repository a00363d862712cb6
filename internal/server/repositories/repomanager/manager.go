package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/utask/internal/dbx"
	"github.com/dmitrijs2005/utask/internal/server/repositories/confirmationtokens"
	"github.com/dmitrijs2005/utask/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/utask/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	ConfirmationTokens(db dbx.DBTX) confirmationtokens.Repository
}
