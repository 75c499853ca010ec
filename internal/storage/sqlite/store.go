// Package sqlite implements the durable relational store the sync engine
// is built on: a single SQLite database opened through the pure-Go
// ncruces/go-sqlite3 driver, with WAL journaling and foreign keys enabled.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	sqlite3 "github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver" // registers the "sqlite3" database/sql driver
	_ "github.com/ncruces/go-sqlite3/embed"  // embeds the WASM SQLite binary
	"github.com/tetratelabs/wazero"
)

func init() {
	// Avoid ~200ms of WASM JIT compilation on every process start by caching
	// the compiled module under the user cache directory.
	cacheDir := ""
	if userCache, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(userCache, "syncd", "wasm")
	}
	var cache wazero.CompilationCache
	if cacheDir != "" {
		if c, err := wazero.NewCompilationCacheWithDir(cacheDir); err == nil {
			cache = c
		}
	}
	if cache == nil {
		cache = wazero.NewCompilationCache()
	}
	sqlite3.RuntimeConfig = wazero.NewRuntimeConfig().WithCompilationCache(cache)
}

// Store owns the database handle. Every other component receives a *Store
// by reference; none may hold a cursor open across calls to WithTx.
type Store struct {
	db          *sql.DB
	path        string
	closed      atomic.Bool
	busyTimeout time.Duration
}

// Option configures Open.
type Option func(*openConfig)

type openConfig struct {
	busyTimeout time.Duration
}

// WithBusyTimeout overrides the default 30s SQLite busy_timeout.
func WithBusyTimeout(d time.Duration) Option {
	return func(c *openConfig) { c.busyTimeout = d }
}

// Open opens (creating if necessary) the SQLite database at path and brings
// its schema up to the latest migration. path may be ":memory:" for a
// private, single-connection in-memory database (used by tests).
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	cfg := openConfig{busyTimeout: 30 * time.Second}
	for _, o := range opts {
		o(&cfg)
	}

	timeoutMs := int64(cfg.busyTimeout / time.Millisecond)
	isMemory := path == ":memory:"

	var connStr string
	switch {
	case isMemory:
		connStr = fmt.Sprintf("file:memdb-%d?mode=memory&cache=shared&_pragma=journal_mode(DELETE)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(%d)&_time_format=sqlite", time.Now().UnixNano(), timeoutMs)
	case strings.HasPrefix(path, "file:"):
		connStr = path
		if !strings.Contains(path, "_pragma=foreign_keys") {
			connStr += fmt.Sprintf("&_pragma=foreign_keys(ON)&_pragma=busy_timeout(%d)&_time_format=sqlite", timeoutMs)
		}
	default:
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		connStr = fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=busy_timeout(%d)&_time_format=sqlite", path, timeoutMs)
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if isMemory {
		// SQLite's in-memory databases are per-connection unless a single
		// connection is enforced; without this, pooled connections would
		// each see an empty database.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(runtime.NumCPU() + 1)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(0)
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, ledgerSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize migration ledger: %w", err)
	}

	// Migrations (including the legacy-table rename) must run before
	// baseSchema: baseSchema's CREATE TABLE IF NOT EXISTS would otherwise
	// create empty canonical tables first and leave the rename with
	// nothing to rename into.
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, baseSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	absPath := path
	if !isMemory {
		if abs, err := filepath.Abs(path); err == nil {
			absPath = abs
		}
	}

	return &Store{db: db, path: absPath, busyTimeout: cfg.busyTimeout}, nil
}

// DB returns the underlying connection pool. Components use it for
// prepared statements outside of a transaction; they must never close it.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the absolute path to the database file ("" for :memory:).
func (s *Store) Path() string { return s.path }

// Close checkpoints the WAL and closes the connection pool.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// IsClosed reports whether Close has been called.
func (s *Store) IsClosed() bool { return s.closed.Load() }

// WithTx runs fn inside a single transaction: commits on nil return,
// rolls back otherwise. A panicking fn still rolls back, then re-panics.
// This is the "transaction(closure)" primitive. The queue, conflict store
// and resolver do not run through it: conflict resolution's persist and
// re-queue steps are separate statements.
func (s *Store) WithTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
