// Package database opens the sqlite store and brings its schema up to head
// via the embedded goose migrations. All callers, tests included, go through
// Open so pragmas and schema stay uniform.
package database

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Applied to every connection. WAL keeps readers unblocked during session
// writes; busy_timeout queues concurrent finalizations instead of failing
// them with SQLITE_BUSY.
const pragmas = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// Open opens the database at path, verifies connectivity, and migrates the
// schema to the latest version.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+pragmas)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}
