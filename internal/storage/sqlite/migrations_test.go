package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"
)

// openLedgerDB returns a private in-memory database with only the
// migration ledger created, the same starting point Open gives
// runMigrations before baseSchema ever runs.
func openLedgerDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:migtest-%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, ledgerSchema); err != nil {
		t.Fatalf("create ledger: %v", err)
	}
	return db
}

func createLegacyTables(t *testing.T, db *sql.DB) {
	t.Helper()
	ctx := context.Background()
	stmts := []string{
		`CREATE TABLE offline_requests (id INTEGER PRIMARY KEY, method TEXT, url TEXT)`,
		`CREATE TABLE sync_conflicts (id INTEGER PRIMARY KEY, resource_id TEXT)`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			t.Fatalf("create legacy table: %v", err)
		}
	}
}

func mustTableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	ok, err := tableExists(context.Background(), db, name)
	if err != nil {
		t.Fatalf("tableExists(%s): %v", name, err)
	}
	return ok
}

func TestRenameLegacyTablesRenamesWhenPresent(t *testing.T) {
	db := openLedgerDB(t)
	createLegacyTables(t, db)

	if err := runMigrations(context.Background(), db); err != nil {
		t.Fatalf("runMigrations: %v", err)
	}

	if mustTableExists(t, db, "offline_requests") {
		t.Error("offline_requests still present after migration")
	}
	if mustTableExists(t, db, "sync_conflicts") {
		t.Error("sync_conflicts still present after migration")
	}
	if !mustTableExists(t, db, "sync_queue") {
		t.Error("sync_queue missing after migration")
	}
	if !mustTableExists(t, db, "conflict_log") {
		t.Error("conflict_log missing after migration")
	}
}

func TestRenameLegacyTablesNoopWhenAbsent(t *testing.T) {
	db := openLedgerDB(t)

	if err := runMigrations(context.Background(), db); err != nil {
		t.Fatalf("runMigrations: %v", err)
	}

	if mustTableExists(t, db, "sync_queue") {
		t.Error("sync_queue should not exist: nothing to rename and baseSchema never ran")
	}
	if mustTableExists(t, db, "offline_requests") {
		t.Error("offline_requests should not have been created out of nowhere")
	}
}

func TestRenameLegacyTablesIdempotent(t *testing.T) {
	db := openLedgerDB(t)
	createLegacyTables(t, db)

	if err := runMigrations(context.Background(), db); err != nil {
		t.Fatalf("first runMigrations: %v", err)
	}
	if err := runMigrations(context.Background(), db); err != nil {
		t.Fatalf("second runMigrations: %v", err)
	}

	applied, err := appliedVersions(context.Background(), db)
	if err != nil {
		t.Fatalf("appliedVersions: %v", err)
	}
	if len(applied) != 1 {
		t.Fatalf("schema_migrations has %d rows, want 1 (re-run must not re-record)", len(applied))
	}
	if !mustTableExists(t, db, "sync_queue") {
		t.Error("sync_queue missing after idempotent re-run")
	}
}

func TestRenameLegacyTablesLeavesCanonicalWinsWhenBothPresent(t *testing.T) {
	db := openLedgerDB(t)
	createLegacyTables(t, db)
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `CREATE TABLE sync_queue (id INTEGER PRIMARY KEY)`); err != nil {
		t.Fatalf("create canonical table: %v", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		t.Fatalf("runMigrations: %v", err)
	}

	if !mustTableExists(t, db, "offline_requests") {
		t.Error("offline_requests should be left alone when sync_queue already exists")
	}
	if !mustTableExists(t, db, "sync_queue") {
		t.Error("sync_queue should still exist")
	}
}
