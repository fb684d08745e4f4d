package migrations

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestScriptsOrdered(t *testing.T) {
	scripts, err := Scripts()
	if err != nil {
		t.Fatalf("Scripts: %v", err)
	}
	if len(scripts) < 2 {
		t.Fatalf("got %d scripts, want at least 2", len(scripts))
	}
	for i, s := range scripts {
		if s.Version != i+1 {
			t.Errorf("script %d (%s) has version %d", i, s.Name, s.Version)
		}
		if s.SQL == "" {
			t.Errorf("script %s is empty", s.Name)
		}
	}
}

func TestRunCreatesSchema(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	applied, err := Run(ctx, db)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	scripts, _ := Scripts()
	if len(applied) != len(scripts) {
		t.Errorf("applied %v, want %d scripts", applied, len(scripts))
	}

	v, err := Version(ctx, db)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v != scripts[len(scripts)-1].Version {
		t.Errorf("version = %d", v)
	}

	for _, table := range []string{"conversations", "messages", "schema_version"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestRunTwiceAppliesNothing(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if _, err := Run(ctx, db); err != nil {
		t.Fatalf("first run: %v", err)
	}
	applied, err := Run(ctx, db)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("second run applied %v", applied)
	}
	pending, err := Pending(ctx, db)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after run = %v", pending)
	}
}

func TestPendingOnFreshDatabase(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	pending, err := Pending(ctx, db)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) == 0 || pending[0].Version != 1 {
		t.Errorf("pending = %v, want versions from 1", pending)
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name    string
		want    int
		wantErr bool
	}{
		{"002_conversation_metadata.sql", 2, false},
		{"init.sql", 0, true},
		{"x_init.sql", 0, true},
		{"000_zero.sql", 0, true},
	}
	for _, tt := range tests {
		got, err := parseVersion(tt.name)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseVersion(%q) = %d, %v", tt.name, got, err)
		}
	}
}
