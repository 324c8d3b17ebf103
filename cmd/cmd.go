// Package cmd provides the CLI commands for the Gemini MCP server.
//
// Commands:
//   - mcp: Model Context Protocol server on stdio (the primary mode)
//   - cleanup: purge expired conversations and exit
//
// Signal handling and graceful shutdown are implemented via context
// cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
)

// Execute is the main entry point for the application.
func Execute() error {
	// Minimal logger until the configured one takes over. Stderr only:
	// stdout is reserved for JSON-RPC.
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "mcp":
		return runMCP()
	case "cleanup":
		return runCleanup()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("gemini-mcp - sandboxed file and conversation tools over MCP")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  gemini-mcp mcp        Start the MCP server on stdio (for Claude Desktop/Cursor)")
	fmt.Println("  gemini-mcp cleanup    Purge expired conversations and exit")
	fmt.Println("  gemini-mcp --version  Show version information")
	fmt.Println("  gemini-mcp --help     Show this help")
	fmt.Println()
	fmt.Println("Environment Variables (prefix GEMINI_MCP_):")
	fmt.Println("  GEMINI_MCP_SANDBOX_ROOT       Directory the file tools may touch (required)")
	fmt.Println("  GEMINI_MCP_MAX_FILE_SIZE      Per-file size limit in bytes")
	fmt.Println("  GEMINI_MCP_CONVERSATION_TTL   Thread lifetime after last activity")
	fmt.Println("  GEMINI_MCP_MAX_TURNS          Per-thread turn cap")
	fmt.Println("  GEMINI_MCP_DB_PATH            Conversation database location")
	fmt.Println("  DEBUG                         Enable debug logging")
}
