package repository

import (
	"context"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

type recordingExecer struct {
	statements []string
}

func (r *recordingExecer) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	r.statements = append(r.statements, sql)
	return pgconn.CommandTag{}, nil
}

func migrationsDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine test file path")
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}

func TestMigrateAppliesSchemaFiles(t *testing.T) {
	db := &recordingExecer{}
	if err := Migrate(context.Background(), db, migrationsDir(t)); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if len(db.statements) == 0 {
		t.Fatal("no migration files applied")
	}

	joined := strings.Join(db.statements, "\n")
	for _, table := range []string{"accounts", "ledger_entries", "tasks", "guides", "artifacts"} {
		if !strings.Contains(joined, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("missing DDL for %s", table)
		}
	}
}

func TestMigrateMissingDir(t *testing.T) {
	if err := Migrate(context.Background(), &recordingExecer{}, "does-not-exist"); err == nil {
		t.Fatal("expected error for missing migrations dir")
	}
}
