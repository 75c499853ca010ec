// Package daemonlock guards a sync engine's database with a single-instance
// flock so at most one syncd process drains a given database at a time.
package daemonlock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// ErrLocked is returned when another process already holds the lock.
var ErrLocked = errors.New("daemonlock: already held by another process")

// Info is the metadata written into the lock file for diagnostic reads.
type Info struct {
	PID       int       `json:"pid"`
	Database  string    `json:"database"`
	StartedAt time.Time `json:"started_at"`
}

// Lock represents a held exclusive lock on a daemon.lock file.
type Lock struct {
	file *os.File
}

// Acquire takes an exclusive, non-blocking lock on <dir>/daemon.lock and
// stamps it with Info describing this process. Returns ErrLocked if another
// process already holds it.
func Acquire(dir string, database string) (*Lock, error) {
	lockPath := filepath.Join(dir, "daemon.lock")

	// #nosec G304 - controlled path under the engine's own data directory
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("daemonlock: open %s: %w", lockPath, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("daemonlock: flock %s: %w", lockPath, err)
	}

	info := Info{PID: os.Getpid(), Database: database, StartedAt: time.Now().UTC()}
	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("daemonlock: truncate: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("daemonlock: seek: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(info); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("daemonlock: write metadata: %w", err)
	}
	_ = f.Sync()

	return &Lock{file: f}, nil
}

// Release closes the lock file, which releases the underlying flock.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Probe reports whether a daemon currently holds dir's lock, without
// blocking and without disturbing an existing lock. pid is best-effort,
// read from the lock file's JSON metadata.
func Probe(dir string) (running bool, pid int) {
	lockPath := filepath.Join(dir, "daemon.lock")

	// #nosec G304 - controlled path under the engine's own data directory
	f, err := os.OpenFile(lockPath, os.O_RDWR, 0)
	if err != nil {
		return false, 0
	}
	defer func() { _ = f.Close() }()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			var info Info
			if err := json.NewDecoder(f).Decode(&info); err == nil {
				return true, info.PID
			}
			return true, 0
		}
		return false, 0
	}

	// We acquired it: no daemon running. Release immediately.
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return false, 0
}

// ReadInfo reads and parses dir's lock file without acquiring or probing it.
func ReadInfo(dir string) (*Info, error) {
	lockPath := filepath.Join(dir, "daemon.lock")
	// #nosec G304 - controlled path under the engine's own data directory
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return nil, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("daemonlock: parse %s: %w", lockPath, err)
	}
	return &info, nil
}
