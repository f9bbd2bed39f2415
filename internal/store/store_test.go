package store

import (
	"path/filepath"
	"testing"
)

func TestInitCreatesDatabase(t *testing.T) {
	tmpDir := t.TempDir()

	db, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer db.Close()

	version, err := GetUserVersion(db)
	if err != nil {
		t.Fatalf("GetUserVersion failed: %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, CurrentSchemaVersion)
	}

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		t.Fatalf("journal_mode query failed: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %q, want wal", journalMode)
	}
}

func TestInitIdempotent(t *testing.T) {
	tmpDir := t.TempDir()

	db, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("first Init failed: %v", err)
	}
	db.Close()

	// Re-opening an existing database must not re-run migration 1.
	db, err = Init(tmpDir)
	if err != nil {
		t.Fatalf("second Init failed: %v", err)
	}
	defer db.Close()

	version, err := GetUserVersion(db)
	if err != nil {
		t.Fatalf("GetUserVersion failed: %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, CurrentSchemaVersion)
	}
}

func TestInitUsesExpectedFilename(t *testing.T) {
	tmpDir := t.TempDir()

	db, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer db.Close()

	var name string
	row := db.QueryRow("SELECT file FROM pragma_database_list WHERE name = 'main'")
	if err := row.Scan(&name); err != nil {
		t.Fatalf("pragma_database_list failed: %v", err)
	}
	if filepath.Base(name) != "ctxkeep.db" {
		t.Errorf("database file = %q, want ctxkeep.db", filepath.Base(name))
	}
}
