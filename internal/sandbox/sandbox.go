// Package sandbox confines all tool filesystem access to a configured root
// directory.
//
// Validation resolves symlinks before the boundary check: a symlink inside
// the root may point anywhere, and a lexical ".."-collapse alone would miss
// it. A validated path is only a snapshot of the filesystem at validation
// time; callers that open the path afterwards must re-check properties such
// as size on the open file descriptor, not on the path string (TOCTOU).
//
// Rejection errors carry a generic message. The resolved absolute path is
// deliberately not echoed back to avoid disclosing filesystem layout.
package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel errors checked with errors.Is().
var (
	// ErrOutsideSandbox indicates the path resolves outside the sandbox root.
	ErrOutsideSandbox = errors.New("access denied: path is outside allowed directory")

	// ErrInvalidPath indicates the path could not be resolved at all.
	ErrInvalidPath = errors.New("invalid path")

	// ErrTooLarge indicates a file exceeds the configured size limit.
	ErrTooLarge = errors.New("file too large")

	// ErrBinaryFile indicates a binary file was rejected by a text read.
	ErrBinaryFile = errors.New("cannot read binary file as text; use a specialized tool for this file type")

	// ErrNotUTF8 indicates file content is not valid UTF-8 text.
	ErrNotUTF8 = errors.New("cannot decode file as UTF-8 text; file may be binary or use a different encoding")
)

// Sandbox validates filesystem paths against a fixed root directory.
// The root is set once at construction and is immutable for the process
// lifetime. Sandbox is safe for concurrent use.
type Sandbox struct {
	root    string // absolute, symlink-resolved
	enabled bool
	maxSize int64
}

// New creates a Sandbox rooted at root. The directory is created if missing
// so the root can be symlink-resolved up front. If enabled is false,
// Validate performs no boundary check and only normalizes paths.
func New(root string, enabled bool, maxSize int64) (*Sandbox, error) {
	if !enabled {
		return &Sandbox{enabled: false, maxSize: maxSize}, nil
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving sandbox root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("creating sandbox root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolving sandbox root symlinks: %w", err)
	}

	return &Sandbox{root: resolved, enabled: true, maxSize: maxSize}, nil
}

// Root returns the resolved sandbox root. Empty when the sandbox is disabled.
func (s *Sandbox) Root() string { return s.root }

// MaxFileSize returns the configured per-file size limit in bytes.
func (s *Sandbox) MaxFileSize() int64 { return s.maxSize }

// Validate resolves path and checks it lies within the sandbox root.
// Relative paths are joined to the root first. The returned path is absolute
// with all symlinks resolved; for paths that do not exist yet, the deepest
// existing ancestor is resolved and checked instead, so a new file can be
// created through a validated parent.
func (s *Sandbox) Validate(path string) (string, error) {
	return s.validate(path, false)
}

// ValidateEscape is Validate with an explicit escape hatch: when allowEscape
// is true the boundary check is skipped and the path is only normalized.
// Reserved for explicitly trusted system paths; tool handlers never set it.
func (s *Sandbox) ValidateEscape(path string, allowEscape bool) (string, error) {
	return s.validate(path, allowEscape)
}

func (s *Sandbox) validate(path string, allowEscape bool) (string, error) {
	if !s.enabled || allowEscape {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
		}
		return abs, nil
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	resolved, err := resolveExisting(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	if !s.contains(resolved) {
		// Generic message only; never leak the rejected absolute path.
		return "", ErrOutsideSandbox
	}

	return resolved, nil
}

// contains reports whether p equals the root or is a descendant of it.
// Comparison appends the separator so /var/data never matches /var/database.
func (s *Sandbox) contains(p string) bool {
	if p == s.root {
		return true
	}
	return strings.HasPrefix(p, s.root+string(filepath.Separator))
}

// resolveExisting resolves all symlinks in path. For paths whose tail does
// not exist yet, the deepest existing ancestor is resolved and the
// non-existent remainder re-joined, so writes to new files still get their
// parent directories checked.
func resolveExisting(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	dir, base := filepath.Split(filepath.Clean(path))
	dir = filepath.Clean(dir)
	if dir == path {
		// Reached the filesystem root without finding an existing ancestor.
		return path, nil
	}
	resolvedDir, err := resolveExisting(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedDir, base), nil
}
