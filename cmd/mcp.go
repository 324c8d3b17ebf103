package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"

	mcpSdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"geminimcp/internal/config"
	"geminimcp/internal/conversation"
	"geminimcp/internal/log"
	"geminimcp/internal/mcp"
	"geminimcp/internal/redact"
	"geminimcp/internal/safefile"
	"geminimcp/internal/sandbox"
)

// runMCP wires the components and serves MCP over stdio until SIGINT or
// SIGTERM.
func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{
		Level: cfg.LogLevelSlog(),
		JSON:  cfg.LogFormat == config.LogFormatJSON,
	})
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sb, err := sandbox.New(cfg.SandboxRoot, cfg.SandboxEnabled, cfg.MaxFileSize)
	if err != nil {
		return fmt.Errorf("initializing sandbox: %w", err)
	}

	redactor := redact.New(logger)
	writer := safefile.New(sb, cfg.LockTimeout, safefile.DefaultMaxBackups, logger)

	store, err := conversation.Open(cfg.DBPath, cfg.ConversationTTL, cfg.MaxTurns, logger)
	if err != nil {
		return fmt.Errorf("opening conversation store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Warn("closing conversation store", "error", closeErr)
		}
	}()

	var wg sync.WaitGroup
	sweeper := conversation.NewSweeper(store, cfg.CleanupInterval(), logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()
	// The transport can close without a signal (stdin EOF); cancel before
	// waiting so the sweeper is told to stop.
	defer func() {
		cancel()
		wg.Wait()
	}()

	server, err := mcp.NewServer(mcp.Config{
		Name:     "gemini-mcp",
		Version:  AppVersion,
		Sandbox:  sb,
		Writer:   writer,
		Store:    store,
		Redactor: redactor,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	logger.Info("MCP server ready",
		"version", AppVersion, "transport", "stdio", "sandbox_root", cfg.SandboxRoot)

	if err := server.Run(ctx, &mcpSdk.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}

	logger.Info("MCP server shut down gracefully")
	return nil
}
