package cmd

import (
	"context"
	"fmt"

	"geminimcp/internal/config"
	"geminimcp/internal/conversation"
	"geminimcp/internal/log"
)

// runCleanup purges expired conversations once and reports what was done.
// Useful from cron when the server itself runs only on demand.
func runCleanup() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{
		Level: cfg.LogLevelSlog(),
		JSON:  cfg.LogFormat == config.LogFormatJSON,
	})

	store, err := conversation.Open(cfg.DBPath, cfg.ConversationTTL, cfg.MaxTurns, logger)
	if err != nil {
		return fmt.Errorf("opening conversation store: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	n, err := store.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("purging expired conversations: %w", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("collecting stats: %w", err)
	}

	fmt.Printf("Purged %d expired conversation(s); %d live thread(s) with %d turn(s) remain.\n",
		n, stats.Threads, stats.Turns)
	return nil
}
