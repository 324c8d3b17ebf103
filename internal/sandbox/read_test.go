package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestReadFile(t *testing.T) {
	root := t.TempDir()
	sb, err := New(root, true, 64)
	if err != nil {
		t.Fatalf("creating sandbox: %v", err)
	}

	mustWrite := func(name string, content []byte) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(sb.Root(), name), content, 0o600); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}

	mustWrite("ok.txt", []byte("short content"))
	mustWrite("big.txt", make([]byte, 200))
	mustWrite("blob.bin", []byte{0x7F, 'E', 'L', 'F', 0, 0})

	t.Run("reads text inside sandbox", func(t *testing.T) {
		got, err := sb.ReadFile("ok.txt")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "short content" {
			t.Errorf("content mismatch: %q", got)
		}
	})

	t.Run("rejects oversized file", func(t *testing.T) {
		_, err := sb.ReadFile("big.txt")
		if !errors.Is(err, ErrTooLarge) {
			t.Fatalf("expected ErrTooLarge, got %v", err)
		}
	})

	t.Run("rejects binary file", func(t *testing.T) {
		_, err := sb.ReadFile("blob.bin")
		if !errors.Is(err, ErrBinaryFile) {
			t.Fatalf("expected ErrBinaryFile, got %v", err)
		}
	})

	t.Run("rejects path outside sandbox", func(t *testing.T) {
		_, err := sb.ReadFile("/etc/passwd")
		if !errors.Is(err, ErrOutsideSandbox) {
			t.Fatalf("expected ErrOutsideSandbox, got %v", err)
		}
	})

	t.Run("missing file surfaces the open error", func(t *testing.T) {
		_, err := sb.ReadFile("absent.txt")
		if err == nil {
			t.Fatal("expected error for missing file")
		}
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected wrapped os.ErrNotExist, got %v", err)
		}
	})
}
