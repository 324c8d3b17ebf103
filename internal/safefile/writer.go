// Package safefile performs atomic, backed-up file writes inside the sandbox.
//
// A write holds an exclusive cross-process file lock for its whole duration,
// backs up the prior content, stages the new content in a temp file in the
// target's own directory (same filesystem, so the final rename is atomic),
// verifies the staged bytes by hash, restores the original permission bits
// and renames over the target. A concurrent reader sees either the fully-old
// or the fully-new file, never a mix.
//
// Failures are returned as a structured WriteResult, never panics or raw OS
// errors; when a backup was created before the failure its path is included
// so the caller can recover manually.
package safefile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"geminimcp/internal/filelock"
	"geminimcp/internal/sandbox"
)

const (
	// BackupDirName is the hidden backup tree under the sandbox root.
	BackupDirName = ".gemini_backups"

	// DefaultMaxBackups is how many timestamped copies are kept per file.
	DefaultMaxBackups = 5

	// hashLen is the length of the hex content hash carried in results.
	hashLen = 16
)

// WriteResult reports the outcome of a single atomic write.
type WriteResult struct {
	Success bool

	// Path is the validated target path on success, the caller-supplied
	// path on validation failure.
	Path string

	// BackupPath is set when a backup of the prior content was created,
	// including on failures that happened after the backup step.
	BackupPath string

	// ContentHash is the truncated SHA-256 of the written content.
	ContentHash string

	// PreservedMode is the original permission bits re-applied to the new
	// file, zero for brand-new files.
	PreservedMode fs.FileMode

	// Error is a short human-readable failure description. Empty on
	// success. Never contains rejected absolute paths.
	Error string
}

// Writer performs sandboxed atomic writes. Safe for concurrent use; writes
// to the same path serialize on the per-path file lock.
type Writer struct {
	sandbox     *sandbox.Sandbox
	lockTimeout time.Duration
	maxBackups  int
	logger      *slog.Logger
}

// New creates a Writer. maxBackups <= 0 selects DefaultMaxBackups.
func New(sb *sandbox.Sandbox, lockTimeout time.Duration, maxBackups int, logger *slog.Logger) *Writer {
	if maxBackups <= 0 {
		maxBackups = DefaultMaxBackups
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		sandbox:     sb,
		lockTimeout: lockTimeout,
		maxBackups:  maxBackups,
		logger:      logger,
	}
}

// Write atomically replaces path with content. createBackup controls whether
// a pre-existing target is copied into the backup tree first; brand-new
// files never get a backup.
func (w *Writer) Write(ctx context.Context, path, content string, createBackup bool) WriteResult {
	validated, err := w.sandbox.Validate(path)
	if err != nil {
		// The sandbox error text is already generic.
		return WriteResult{Path: path, Error: err.Error()}
	}

	lock, err := filelock.Acquire(ctx, validated, w.lockTimeout, true)
	if err != nil {
		if errors.Is(err, filelock.ErrTimeout) {
			return WriteResult{Path: validated, Error: fmt.Sprintf("file is locked by another writer (waited %s); retry later", w.lockTimeout)}
		}
		return WriteResult{Path: validated, Error: "could not lock file for writing"}
	}
	defer func() {
		if relErr := lock.Release(); relErr != nil {
			w.logger.Warn("releasing write lock", "error", relErr)
		}
	}()

	return w.writeLocked(validated, content, createBackup)
}

// writeLocked runs the backup + stage + verify + rename sequence while the
// exclusive lock is held.
func (w *Writer) writeLocked(target, content string, createBackup bool) WriteResult {
	var (
		preservedMode fs.FileMode
		backupPath    string
		exists        bool
	)

	if info, err := os.Stat(target); err == nil {
		exists = true
		preservedMode = info.Mode().Perm()
	}

	if exists && createBackup {
		bp, err := w.backup(target)
		if err != nil {
			return WriteResult{Path: target, Error: "backup failed; write aborted before touching the target"}
		}
		backupPath = bp
	}

	wantHash := ContentHash(content)

	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return WriteResult{Path: target, BackupPath: backupPath, Error: "could not create parent directory"}
	}

	// Temp file in the target's directory: rename across filesystems is not
	// atomic, same-directory rename is.
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return WriteResult{Path: target, BackupPath: backupPath, Error: "could not create temporary file"}
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		cleanup()
		return WriteResult{Path: target, BackupPath: backupPath, Error: "writing temporary file failed"}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return WriteResult{Path: target, BackupPath: backupPath, Error: "flushing temporary file failed"}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return WriteResult{Path: target, BackupPath: backupPath, Error: "closing temporary file failed"}
	}

	// Re-read and verify before the rename. Catches partial writes and any
	// encoding corruption between the buffer and the disk.
	staged, err := os.ReadFile(tmpPath) // #nosec G304 -- path we just created
	if err != nil || ContentHash(string(staged)) != wantHash {
		cleanup()
		return WriteResult{Path: target, BackupPath: backupPath, Error: "content verification failed after staging; write aborted"}
	}

	if exists && preservedMode != 0 {
		if err := os.Chmod(tmpPath, preservedMode); err != nil {
			cleanup()
			return WriteResult{Path: target, BackupPath: backupPath, Error: "restoring file permissions failed"}
		}
	}

	if err := os.Rename(tmpPath, target); err != nil {
		cleanup()
		return WriteResult{Path: target, BackupPath: backupPath, Error: "atomic replace failed"}
	}

	w.logger.Debug("file written",
		"path", filepath.Base(target), "bytes", len(content), "backup", backupPath != "")

	return WriteResult{
		Success:       true,
		Path:          target,
		BackupPath:    backupPath,
		ContentHash:   wantHash,
		PreservedMode: preservedMode,
	}
}

// ContentHash returns the truncated SHA-256 hex digest used for write
// verification and caller-side idempotence checks.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:hashLen]
}
