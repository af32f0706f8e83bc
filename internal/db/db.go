// Package db is the SQLite run index: one row per extraction run, with its
// calibration, counters and final status. The schema is managed by embedded
// golang-migrate migrations.
package db

import (
	"database/sql"
	"embed"
	"fmt"

	_ "modernc.org/sqlite"
)

// DefaultFileName is the index database created inside a working directory.
const DefaultFileName = "runs.db"

//go:embed migrations/*.sql
var migrationsFS embed.FS

type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the index at path and migrates it to the
// latest schema.
func Open(path string) (*DB, error) {
	d, err := openRaw(path)
	if err != nil {
		return nil, err
	}
	if err := d.MigrateUp(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// openRaw opens the index without touching its schema.
func openRaw(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run index %s: %w", path, err)
	}
	// One connection keeps the PRAGMAs below in effect for every statement.
	sqlDB.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	return &DB{sqlDB}, nil
}
