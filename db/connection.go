package db

import (
	"database/sql"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/sym"
)

// SQLiteBusyTimeoutMS is how long SQLite waits on a locked database.
const SQLiteBusyTimeoutMS = 5000

// Open opens a database for the given dialect.
// For SQLite, dsn is a file path; for Postgres, a lib/pq connection string.
// If logger is provided, logs database operations; otherwise operates silently.
func Open(dialect Dialect, dsn string, logger *zap.SugaredLogger) (*sql.DB, error) {
	if logger != nil {
		logger.Debugw("Opening database", "driver", dialect, "symbol", sym.DB)
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	switch dialect {
	case SQLite:
		if err := configureSQLite(db); err != nil {
			db.Close()
			return nil, err
		}
	case Postgres:
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "failed to reach postgres")
		}
	}

	if logger != nil {
		logger.Infow("Database opened successfully",
			"driver", dialect,
			"symbol", sym.DB,
		)
	}

	return db, nil
}

func configureSQLite(db *sql.DB) error {
	// WAL lets the HTTP API read while a pass writes
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return errors.Wrap(err, "failed to enable WAL mode")
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return errors.Wrap(err, "failed to enable foreign keys")
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return errors.Wrap(err, "failed to set busy timeout")
	}
	return nil
}

// OpenWithMigrations opens the database and applies pending migrations.
func OpenWithMigrations(dialect Dialect, dsn string, logger *zap.SugaredLogger) (*sql.DB, error) {
	db, err := Open(dialect, dsn, logger)
	if err != nil {
		return nil, err
	}

	if err := Migrate(db, dialect, logger); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to run migrations")
	}

	return db, nil
}
