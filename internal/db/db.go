// Package db opens the workspace SQLite database backing homeline.
// All durable state (listings, checkpoints, events) lives in a single
// file under the .homeline dot-directory.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	dotDir = ".homeline"
	dbFile = "homeline.db"
)

type Config struct {
	Workspace string
}

// EnsureWorkspace creates the workspace dot-directory if missing and
// returns its path.
func EnsureWorkspace(workspace string) (string, error) {
	if workspace == "" {
		workspace = "."
	}
	dir := filepath.Join(workspace, dotDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Open opens (creating if needed) the workspace database. WAL keeps
// checkpoint writes durable without blocking readers, and the busy
// timeout absorbs short lock contention between the engine and the
// webhook dispatcher.
func Open(cfg Config) (*sql.DB, error) {
	dir, err := EnsureWorkspace(cfg.Workspace)
	if err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
		filepath.Join(dir, dbFile))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Path returns the database path for a workspace without creating it.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, dotDir, dbFile)
}
