package sqlite

// ledgerSchema creates only the migration ledger. It must exist before the
// legacy-rename migration runs, and before the canonical tables are created,
// so the ledger can record that the rename happened.
const ledgerSchema = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version     INTEGER PRIMARY KEY,
	applied_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// baseSchema creates the canonical tables if they don't already exist. It
// runs after the legacy-rename migration, so on an upgraded database the
// legacy tables have already become sync_queue/conflict_log by the time
// these CREATE TABLE IF NOT EXISTS statements run (and are therefore no-ops
// for the renamed tables, but still create request_cache/sync_log/sync_metadata
// on a database that predates them).
const baseSchema = `
CREATE TABLE IF NOT EXISTS sync_queue (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	method           TEXT NOT NULL,
	url              TEXT NOT NULL,
	headers          TEXT NOT NULL DEFAULT '{}',
	body             BLOB,
	request_hash     TEXT NOT NULL UNIQUE,
	status           TEXT NOT NULL DEFAULT 'pending',
	retry_count      INTEGER NOT NULL DEFAULT 0,
	next_retry_at    TIMESTAMP,
	created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	error_message    TEXT,
	resource_id      TEXT,
	resource_type    TEXT,
	resource_version TEXT
);
CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status);
CREATE INDEX IF NOT EXISTS idx_sync_queue_url ON sync_queue(url);
CREATE INDEX IF NOT EXISTS idx_sync_queue_next_retry_at ON sync_queue(next_retry_at);
CREATE INDEX IF NOT EXISTS idx_sync_queue_created_at ON sync_queue(created_at);

CREATE TABLE IF NOT EXISTS request_cache (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	request_hash  TEXT NOT NULL UNIQUE,
	response_data BLOB NOT NULL,
	cached_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS conflict_log (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	resource_id        TEXT,
	resource_type      TEXT,
	local_request_id   INTEGER REFERENCES sync_queue(id) ON DELETE SET NULL,
	local_data         TEXT,
	server_data        TEXT,
	server_version     TEXT,
	conflict_type      TEXT NOT NULL,
	resolution_status  TEXT NOT NULL DEFAULT 'pending',
	resolved_at        TIMESTAMP,
	created_at         TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_conflict_log_resource ON conflict_log(resource_id, resource_type);
CREATE INDEX IF NOT EXISTS idx_conflict_log_resolution_status ON conflict_log(resolution_status);

CREATE TABLE IF NOT EXISTS sync_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	queue_id    INTEGER REFERENCES sync_queue(id) ON DELETE SET NULL,
	event_type  TEXT NOT NULL,
	message     TEXT,
	meta        TEXT,
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_sync_log_queue_id ON sync_log(queue_id);
CREATE INDEX IF NOT EXISTS idx_sync_log_created_at ON sync_log(created_at);

CREATE TABLE IF NOT EXISTS sync_metadata (
	key        TEXT PRIMARY KEY,
	value      TEXT,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
