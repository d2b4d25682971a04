package db

import (
	migrate "github.com/rubenv/sql-migrate"

	"github.com/docanchor/docanchor/log"
)

// RunMigrations applies the given migrations to the sqlite DB at dbPath.
func RunMigrations(dbPath string, migrations migrate.MigrationSource) error {
	db, err := NewSQLiteDB(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	nMigrations, err := migrate.Exec(db, "sqlite3", migrations, migrate.Up)
	if err != nil {
		return err
	}
	log.Infof("successfully ran %d migrations", nMigrations)
	return nil
}
