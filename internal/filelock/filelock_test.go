package filelock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestAcquireRelease(t *testing.T) {
	resource := filepath.Join(t.TempDir(), "data.txt")

	lock, err := Acquire(context.Background(), resource, time.Second, true)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	if lock.Path() != resource+".lock" {
		t.Errorf("lock path = %q, want sidecar next to resource", lock.Path())
	}
	if _, err := os.Stat(lock.Path()); err != nil {
		t.Errorf("sidecar lock file missing while held: %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	// Sidecar is best-effort removed after a clean release.
	if _, err := os.Stat(lock.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("stale lock file left behind: stat err = %v", err)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	resource := filepath.Join(t.TempDir(), "data.txt")

	lock, err := Acquire(context.Background(), resource, time.Second, true)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("first release failed: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("second release must be a no-op, got %v", err)
	}
}

func TestContentionTimesOut(t *testing.T) {
	resource := filepath.Join(t.TempDir(), "contested.txt")

	held, err := Acquire(context.Background(), resource, time.Second, true)
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	defer held.Release()

	start := time.Now()
	_, err = Acquire(context.Background(), resource, 200*time.Millisecond, true)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took %s, expected prompt failure", elapsed)
	}
}

func TestTimeoutErrorOmitsDirectory(t *testing.T) {
	dir := t.TempDir()
	resource := filepath.Join(dir, "secretdir", "file.txt")

	held, err := Acquire(context.Background(), resource, time.Second, true)
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	defer held.Release()

	_, err = Acquire(context.Background(), resource, 100*time.Millisecond, true)
	if err == nil {
		t.Fatal("expected timeout")
	}
	if strings.Contains(err.Error(), dir) {
		t.Errorf("timeout error leaks directory: %q", err.Error())
	}
}

func TestSharedLocksCoexist(t *testing.T) {
	resource := filepath.Join(t.TempDir(), "shared.txt")

	first, err := Acquire(context.Background(), resource, time.Second, false)
	if err != nil {
		t.Fatalf("first shared acquire failed: %v", err)
	}
	defer first.Release()

	second, err := Acquire(context.Background(), resource, time.Second, false)
	if err != nil {
		t.Fatalf("second shared acquire must succeed: %v", err)
	}
	defer second.Release()

	if first.Exclusive() || second.Exclusive() {
		t.Error("shared locks must not report exclusive")
	}
}

func TestSharedBlocksExclusive(t *testing.T) {
	resource := filepath.Join(t.TempDir(), "mixed.txt")

	reader, err := Acquire(context.Background(), resource, time.Second, false)
	if err != nil {
		t.Fatalf("shared acquire failed: %v", err)
	}
	defer reader.Release()

	if _, err := Acquire(context.Background(), resource, 150*time.Millisecond, true); !errors.Is(err, ErrTimeout) {
		t.Fatalf("exclusive acquire should time out against a reader, got %v", err)
	}
}

func TestCreatesMissingParentDirectory(t *testing.T) {
	resource := filepath.Join(t.TempDir(), "a", "b", "c", "file.txt")

	lock, err := Acquire(context.Background(), resource, time.Second, true)
	if err != nil {
		t.Fatalf("acquire with missing parents failed: %v", err)
	}
	defer lock.Release()
}

func TestSerializesConcurrentHolders(t *testing.T) {
	resource := filepath.Join(t.TempDir(), "counter.txt")

	const workers = 4
	var inCritical int32
	errs := make(chan error, workers)

	for range workers {
		go func() {
			lock, err := Acquire(context.Background(), resource, 5*time.Second, true)
			if err != nil {
				errs <- err
				return
			}
			defer lock.Release()

			if n := atomic.AddInt32(&inCritical, 1); n != 1 {
				errs <- errors.New("two holders inside critical section")
				return
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&inCritical, -1)
			errs <- nil
		}()
	}

	for range workers {
		if err := <-errs; err != nil {
			t.Fatal(err)
		}
	}
}
