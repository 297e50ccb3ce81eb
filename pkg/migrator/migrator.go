// Package migrator applies the embedded goose migrations of the lending
// schema. cmd/api runs Up at boot in postgres mode; cmd/migrate exposes the
// other goose commands for operators.
package migrator

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"slices"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Commands lists the goose commands cmd/migrate accepts.
var Commands = []string{"up", "up-by-one", "down", "redo", "reset", "status", "version"}

// Run opens dbURL and executes one goose command against the migrations in
// files. Unknown commands are rejected before a connection is opened.
func Run(ctx context.Context, dbURL string, files fs.FS, command string, args ...string) error {
	if !slices.Contains(Commands, command) {
		return fmt.Errorf("unknown migrate command %q, want one of %v", command, Commands)
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	return withFS(files, func() error {
		if err := goose.RunContext(ctx, command, db, ".", args...); err != nil {
			return fmt.Errorf("migrate %s: %w", command, err)
		}
		return nil
	})
}

// Up applies pending migrations on an open connection. Tests prepare their
// scratch database through it too.
func Up(db *sql.DB, files fs.FS) error {
	return withFS(files, func() error {
		if err := goose.Up(db, "."); err != nil {
			return fmt.Errorf("up migrations: %w", err)
		}
		return nil
	})
}

// Version reports the schema version recorded in the goose table.
func Version(ctx context.Context, db *sql.DB) (int64, error) {
	if err := goose.SetDialect("postgres"); err != nil {
		return 0, fmt.Errorf("set goose dialect: %w", err)
	}
	v, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("schema version: %w", err)
	}
	return v, nil
}

// goose keeps its base FS and dialect in package state.
func withFS(files fs.FS, fn func() error) error {
	goose.SetBaseFS(files)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return fn()
}
