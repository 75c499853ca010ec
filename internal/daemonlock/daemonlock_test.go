package daemonlock

import "testing"

func TestAcquireThenSecondFails(t *testing.T) {
	dir := t.TempDir()

	l1, err := Acquire(dir, "test.db")
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	defer l1.Release()

	if _, err := Acquire(dir, "test.db"); err != ErrLocked {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestReleaseAllowsReacquire(t *testing.T) {
	dir := t.TempDir()

	l1, err := Acquire(dir, "test.db")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := l1.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}

	l2, err := Acquire(dir, "test.db")
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	defer l2.Release()
}

func TestProbeReportsRunning(t *testing.T) {
	dir := t.TempDir()

	if running, _ := Probe(dir); running {
		t.Fatal("expected no daemon before any lock exists")
	}

	l, err := Acquire(dir, "test.db")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer l.Release()

	running, pid := Probe(dir)
	if !running {
		t.Fatal("expected Probe to report running while lock is held")
	}
	if pid == 0 {
		t.Fatal("expected a non-zero pid from lock metadata")
	}
}

func TestReadInfoReturnsMetadata(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir, "test.db")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer l.Release()

	info, err := ReadInfo(dir)
	if err != nil {
		t.Fatalf("read info: %v", err)
	}
	if info.Database != "test.db" {
		t.Fatalf("unexpected database: %q", info.Database)
	}
}
