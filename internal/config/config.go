// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (GEMINI_MCP_* prefix, runtime override)
//  2. Config file (~/.geminimcp/config.yaml)
//  3. Default values
//
// All limits consumed by the security and persistence layer are injected
// from here: sandbox root, max file size, conversation TTL, turn cap, lock
// timeout. Components never read the environment directly.
//
// Error Handling: sentinel errors for Go-idiomatic checking with errors.Is(),
// wrapped with context via fmt.Errorf("%w: details", ErrXxx).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidSandboxRoot indicates the sandbox root is empty or not absolute.
	ErrInvalidSandboxRoot = errors.New("invalid sandbox root")

	// ErrInvalidMaxFileSize indicates the max file size is out of range.
	ErrInvalidMaxFileSize = errors.New("invalid max file size")

	// ErrInvalidTTL indicates the conversation TTL is out of range.
	ErrInvalidTTL = errors.New("invalid conversation TTL")

	// ErrInvalidMaxTurns indicates the per-thread turn cap is out of range.
	ErrInvalidMaxTurns = errors.New("invalid max turns")

	// ErrInvalidLockTimeout indicates the lock timeout is out of range.
	ErrInvalidLockTimeout = errors.New("invalid lock timeout")

	// ErrInvalidLogFormat indicates the log format is not "text" or "json".
	ErrInvalidLogFormat = errors.New("invalid log format")
)

const (
	// DefaultMaxFileSize bounds a single secure read or write (10 MiB).
	DefaultMaxFileSize int64 = 10 * 1024 * 1024

	// MaxAllowedFileSize is the absolute ceiling to prevent OOM (100 MiB).
	MaxAllowedFileSize int64 = 100 * 1024 * 1024

	// DefaultConversationTTL is the inactivity window before a thread expires.
	DefaultConversationTTL = 3 * time.Hour

	// DefaultMaxTurns caps the turns stored per conversation thread.
	DefaultMaxTurns = 50

	// MaxAllowedTurns is the absolute per-thread cap.
	MaxAllowedTurns = 1000

	// DefaultLockTimeout bounds file lock acquisition.
	DefaultLockTimeout = 5 * time.Second

	// MinCleanupInterval is the floor for the background sweep interval.
	MinCleanupInterval = 5 * time.Minute
)

// Log format identifiers used in Config.LogFormat.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config stores application configuration.
type Config struct {
	// Sandbox configuration
	SandboxRoot    string `mapstructure:"sandbox_root" json:"sandbox_root"`
	SandboxEnabled bool   `mapstructure:"sandbox_enabled" json:"sandbox_enabled"`
	MaxFileSize    int64  `mapstructure:"max_file_size" json:"max_file_size"`

	// Conversation persistence configuration
	DBPath          string        `mapstructure:"db_path" json:"db_path"`
	ConversationTTL time.Duration `mapstructure:"conversation_ttl" json:"conversation_ttl"`
	MaxTurns        int           `mapstructure:"max_turns" json:"max_turns"`

	// File locking configuration
	LockTimeout time.Duration `mapstructure:"lock_timeout" json:"lock_timeout"`

	// Logging configuration
	LogFormat string `mapstructure:"log_format" json:"log_format"`
	LogLevel  string `mapstructure:"log_level" json:"log_level"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".geminimcp")
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v, home, configDir)

	v.SetEnvPrefix("GEMINI_MCP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper, home, configDir string) {
	v.SetDefault("sandbox_root", filepath.Join(home, "gemini-sandbox"))
	v.SetDefault("sandbox_enabled", true)
	v.SetDefault("max_file_size", DefaultMaxFileSize)

	v.SetDefault("db_path", filepath.Join(configDir, "conversations.db"))
	v.SetDefault("conversation_ttl", DefaultConversationTTL)
	v.SetDefault("max_turns", DefaultMaxTurns)

	v.SetDefault("lock_timeout", DefaultLockTimeout)

	v.SetDefault("log_format", LogFormatText)
	v.SetDefault("log_level", "info")
}

// CleanupInterval derives the background sweep interval from the TTL.
// One tenth of the TTL, floored at MinCleanupInterval, so short TTLs do not
// turn the sweeper into a busy loop.
func (c *Config) CleanupInterval() time.Duration {
	interval := c.ConversationTTL / 10
	if interval < MinCleanupInterval {
		return MinCleanupInterval
	}
	return interval
}

// LogLevelSlog maps the configured level string to a slog.Level.
// Unknown values fall back to Info.
func (c *Config) LogLevelSlog() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
