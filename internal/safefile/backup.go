package safefile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// backup copies target into the backup tree and rotates old copies.
// Layout: <root>/.gemini_backups/<relative-dir>/<name>.<timestamp>.bak,
// mirroring the file's position under the sandbox root.
func (w *Writer) backup(target string) (string, error) {
	backupRoot := filepath.Join(w.sandbox.Root(), BackupDirName)
	if err := os.MkdirAll(backupRoot, 0o750); err != nil {
		return "", fmt.Errorf("creating backup root: %w", err)
	}

	// Marker so the backup tree is excluded from version control and from
	// any scanner that honors gitignore.
	gitignore := filepath.Join(backupRoot, ".gitignore")
	if _, err := os.Stat(gitignore); os.IsNotExist(err) {
		_ = os.WriteFile(gitignore, []byte("*\n"), 0o600)
	}

	rel, err := filepath.Rel(w.sandbox.Root(), target)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(target)
	}

	subdir := filepath.Join(backupRoot, filepath.Dir(rel))
	if err := os.MkdirAll(subdir, 0o750); err != nil {
		return "", fmt.Errorf("creating backup subdirectory: %w", err)
	}

	name := filepath.Base(target)
	now := time.Now()
	stamp := fmt.Sprintf("%s_%04d", now.Format("20060102_150405"), now.Nanosecond()/100_000)
	backupPath := filepath.Join(subdir, fmt.Sprintf("%s.%s.bak", name, stamp))

	if err := copyFile(target, backupPath); err != nil {
		return "", fmt.Errorf("copying backup: %w", err)
	}

	// Rotation failure is logged, not fatal: the primary write must not be
	// blocked by stale backups, the next successful write re-rotates.
	if err := w.rotate(subdir, name); err != nil {
		w.logger.Warn("backup rotation failed", "error", err)
	}

	return backupPath, nil
}

// rotate keeps only the maxBackups most recent backups of name, oldest
// removed first by modification time.
func (w *Writer) rotate(dir, name string) error {
	matches, err := filepath.Glob(filepath.Join(dir, name+".*.bak"))
	if err != nil {
		return err
	}
	if len(matches) <= w.maxBackups {
		return nil
	}

	type entry struct {
		path  string
		mtime time.Time
	}
	entries := make([]entry, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		entries = append(entries, entry{path: m, mtime: info.ModTime()})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].mtime.After(entries[j].mtime) })

	var firstErr error
	for _, old := range entries[min(w.maxBackups, len(entries)):] {
		if err := os.Remove(old.path); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// copyFile copies src to dst preserving the permission bits and, best
// effort, the timestamps.
func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 -- validated by the caller
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm()) // #nosec G304
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())
	return nil
}
