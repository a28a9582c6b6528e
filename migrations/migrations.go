// Package migrations embeds the goose SQL migrations for every storage backend.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed clickhouse/*.sql sqlite/*.sql
var FS embed.FS

// dialects maps a storage backend name to its goose dialect and directory
var dialects = map[string]string{
	"clickhouse": "clickhouse",
	"sqlite":     "sqlite3",
}

// Prepare points goose at the embedded migrations for backend and returns the
// directory to pass to goose commands
func Prepare(backend string) (string, error) {
	dialect, ok := dialects[backend]
	if !ok {
		return "", fmt.Errorf("no migrations for storage backend %q", backend)
	}

	goose.SetBaseFS(FS)
	if err := goose.SetDialect(dialect); err != nil {
		return "", fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return backend, nil
}

// Up applies all pending migrations for backend
func Up(db *sql.DB, backend string) error {
	dir, err := Prepare(backend)
	if err != nil {
		return err
	}
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("failed to run %s migrations: %w", backend, err)
	}
	return nil
}
