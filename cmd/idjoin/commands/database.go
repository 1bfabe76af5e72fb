package commands

import (
	"database/sql"

	"github.com/evalkit/idjoin/config"
	"github.com/evalkit/idjoin/db"
	"github.com/evalkit/idjoin/errors"
	"github.com/evalkit/idjoin/logger"
)

// openDatabase opens the configured database and applies pending migrations.
func openDatabase() (*sql.DB, error) {
	dbPath, err := config.GetDatabasePath()
	if err != nil {
		return nil, errors.Wrap(err, "resolve database path")
	}

	database, err := db.OpenWithMigrations(dbPath, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "open database %s", dbPath)
	}
	return database, nil
}
