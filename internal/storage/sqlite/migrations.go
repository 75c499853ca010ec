package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is one step applied at most once, tracked by version in
// schema_migrations. Migrations run before baseSchema so a migration that
// renames a table into a canonical name still has somewhere to rename from.
type migration struct {
	version int
	name    string
	apply   func(ctx context.Context, db *sql.DB) error
}

var migrations = []migration{
	{
		version: 1,
		name:    "rename_legacy_tables",
		apply:   renameLegacyTables,
	},
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		if err := m.apply(ctx, db); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// tableExists probes sqlite_master the way the teacher's migration 001
// probed for a column before altering — cheap, and avoids relying on
// driver-specific "duplicate table" error matching.
func tableExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT count(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// renameLegacyTables upgrades a pre-existing database that used the old
// issue-tracker table names for the same storage role: offline_requests
// becomes sync_queue, sync_conflicts becomes conflict_log. Safe to run on a
// fresh database (both probes report false, nothing happens) and safe to
// run twice (skipped once schema_migrations records version 1).
func renameLegacyTables(ctx context.Context, db *sql.DB) error {
	renames := []struct {
		from, to string
	}{
		{"offline_requests", "sync_queue"},
		{"sync_conflicts", "conflict_log"},
	}

	for _, r := range renames {
		fromExists, err := tableExists(ctx, db, r.from)
		if err != nil {
			return fmt.Errorf("probe %s: %w", r.from, err)
		}
		if !fromExists {
			continue
		}
		toExists, err := tableExists(ctx, db, r.to)
		if err != nil {
			return fmt.Errorf("probe %s: %w", r.to, err)
		}
		if toExists {
			// Both names present already; nothing sane to do but leave it,
			// the canonical table wins.
			continue
		}
		if _, err := db.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s RENAME TO %s`, r.from, r.to)); err != nil {
			return fmt.Errorf("rename %s to %s: %w", r.from, r.to, err)
		}
	}
	return nil
}
