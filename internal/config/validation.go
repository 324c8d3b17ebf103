package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// Sandbox validation. The root must be absolute: a relative root would
	// silently depend on the process working directory, which defeats the
	// point of a fixed boundary.
	if c.SandboxEnabled {
		if c.SandboxRoot == "" {
			return fmt.Errorf("%w: sandbox_root cannot be empty while sandbox is enabled", ErrInvalidSandboxRoot)
		}
		if !filepath.IsAbs(c.SandboxRoot) {
			return fmt.Errorf("%w: sandbox_root must be an absolute path, got %q", ErrInvalidSandboxRoot, c.SandboxRoot)
		}
	}

	if c.MaxFileSize < 1 || c.MaxFileSize > MaxAllowedFileSize {
		return fmt.Errorf("%w: must be between 1 and %d bytes, got %d",
			ErrInvalidMaxFileSize, MaxAllowedFileSize, c.MaxFileSize)
	}

	// TTL range: 1 minute to 30 days.
	if c.ConversationTTL < time.Minute || c.ConversationTTL > 30*24*time.Hour {
		return fmt.Errorf("%w: must be between 1m and 720h, got %s", ErrInvalidTTL, c.ConversationTTL)
	}

	if c.MaxTurns < 1 || c.MaxTurns > MaxAllowedTurns {
		return fmt.Errorf("%w: must be between 1 and %d, got %d", ErrInvalidMaxTurns, MaxAllowedTurns, c.MaxTurns)
	}

	if c.LockTimeout < 100*time.Millisecond || c.LockTimeout > time.Minute {
		return fmt.Errorf("%w: must be between 100ms and 1m, got %s", ErrInvalidLockTimeout, c.LockTimeout)
	}

	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		return fmt.Errorf("%w: must be %q or %q, got %q", ErrInvalidLogFormat, LogFormatText, LogFormatJSON, c.LogFormat)
	}

	return nil
}
