// Package migrations applies the numbered SQL scripts embedded under scripts/.
// A script named 003_add_index.sql has version 3; versions apply in order,
// each in its own transaction, and are recorded in schema_version.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

//go:embed scripts/*.sql
var scripts embed.FS

// Script is one versioned migration.
type Script struct {
	Version int
	Name    string
	SQL     string
}

// Scripts returns the embedded scripts ordered by version.
func Scripts() ([]Script, error) {
	names, err := fs.Glob(scripts, "scripts/*.sql")
	if err != nil {
		return nil, err
	}
	out := make([]Script, 0, len(names))
	for _, name := range names {
		base := path.Base(name)
		version, err := parseVersion(base)
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", base, err)
		}
		body, err := fs.ReadFile(scripts, name)
		if err != nil {
			return nil, err
		}
		out = append(out, Script{Version: version, Name: base, SQL: string(body)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Run applies every script newer than the current schema version and returns
// the versions it applied.
func Run(ctx context.Context, db *sql.DB) ([]int, error) {
	pending, err := Pending(ctx, db)
	if err != nil {
		return nil, err
	}
	applied := make([]int, 0, len(pending))
	for _, s := range pending {
		if err := apply(ctx, db, s); err != nil {
			return applied, fmt.Errorf("apply migration %s: %w", s.Name, err)
		}
		applied = append(applied, s.Version)
	}
	return applied, nil
}

// Version returns the highest applied version, 0 for a fresh database.
func Version(ctx context.Context, db *sql.DB) (int, error) {
	if err := ensureVersionTable(ctx, db); err != nil {
		return 0, err
	}
	var v int
	err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&v)
	return v, err
}

// Pending returns the scripts newer than the current version.
func Pending(ctx context.Context, db *sql.DB) ([]Script, error) {
	current, err := Version(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("read schema version: %w", err)
	}
	all, err := Scripts()
	if err != nil {
		return nil, err
	}
	var pending []Script
	for _, s := range all {
		if s.Version > current {
			pending = append(pending, s)
		}
	}
	return pending, nil
}

func ensureVersionTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}
	return nil
}

func parseVersion(name string) (int, error) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, fmt.Errorf("name must start with <version>_")
	}
	v, err := strconv.Atoi(prefix)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid version %q", prefix)
	}
	return v, nil
}

func apply(ctx context.Context, db *sql.DB, s Script) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", s.Version); err != nil {
		return err
	}
	return tx.Commit()
}
