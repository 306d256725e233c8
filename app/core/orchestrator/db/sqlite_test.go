package db

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func TestNewSQLiteDBCreatesSchema(t *testing.T) {
	tempDir := t.TempDir()
	database, err := NewSQLiteDB(tempDir)
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	defer database.Close()

	var version string
	err = database.Conn().QueryRow(`SELECT value FROM schema_meta WHERE key = 'schema_version'`).Scan(&version)
	if err != nil {
		t.Fatalf("read schema version: %v", err)
	}
	if version != "1" {
		t.Fatalf("expected schema version 1, got %s", version)
	}

	if _, err := database.Conn().Exec(`SELECT id, user_id, description, due_date, priority, category, status FROM todos LIMIT 1`); err != nil {
		t.Fatalf("todos table missing expected columns: %v", err)
	}
}

func TestNewSQLiteDBIsIdempotent(t *testing.T) {
	tempDir := t.TempDir()
	first, err := NewSQLiteDB(tempDir)
	if err != nil {
		t.Fatalf("first init failed: %v", err)
	}
	if _, err := first.Conn().Exec(`INSERT INTO todos (user_id, description, created_at, updated_at) VALUES ('u1', 'probe', 1, 1)`); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	first.Close()

	second, err := NewSQLiteDB(tempDir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer second.Close()

	var count int
	if err := second.Conn().QueryRow(`SELECT COUNT(*) FROM todos`).Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("reopen must keep existing rows, got %d", count)
	}
}

func TestNewSQLiteDBRejectsNewerSchema(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "todochat.db")

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := conn.Exec(`CREATE TABLE schema_meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		t.Fatalf("create meta: %v", err)
	}
	if _, err := conn.Exec(`INSERT INTO schema_meta (key, value) VALUES ('schema_version', '99')`); err != nil {
		t.Fatalf("seed version: %v", err)
	}
	conn.Close()

	if _, err := NewSQLiteDB(tempDir); err == nil {
		t.Fatal("expected error for schema from a newer runtime")
	}
}
