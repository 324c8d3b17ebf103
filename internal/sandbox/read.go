package sandbox

import (
	"fmt"
	"io"
	"os"
	"unicode/utf8"
)

// ReadFile reads a text file with path validation, binary gating and a size
// limit.
//
// The size is checked with fstat on the open descriptor, not on the
// pre-validated path string, so a file swap between validation and open
// cannot bypass the limit.
func (s *Sandbox) ReadFile(path string) (string, error) {
	validated, err := s.Validate(path)
	if err != nil {
		return "", err
	}

	if IsBinary(validated, true) {
		return "", ErrBinaryFile
	}

	f, err := os.Open(validated) // #nosec G304 -- validated above
	if err != nil {
		return "", fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat: %w", err)
	}
	if info.Size() > s.maxSize {
		return "", fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, info.Size(), s.maxSize)
	}

	// LimitReader as a second bound: the fstat result can be stale the
	// moment it returns.
	data, err := io.ReadAll(io.LimitReader(f, s.maxSize+1))
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return "", fmt.Errorf("%w: grew past %d bytes during read", ErrTooLarge, s.maxSize)
	}

	if !utf8.Valid(data) {
		return "", ErrNotUTF8
	}

	return string(data), nil
}
