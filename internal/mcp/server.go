// Package mcp exposes the sandboxed file and conversation operations as MCP
// tools over the official SDK. Handlers build their responses inline, in the
// style of net/http handlers; expected failures become IsError tool results
// with a short taxonomy-coded message, and only genuine system faults
// propagate as protocol errors.
package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"geminimcp/internal/conversation"
	"geminimcp/internal/redact"
	"geminimcp/internal/safefile"
	"geminimcp/internal/sandbox"
)

// Server wraps the MCP SDK server and the components its tools operate on.
type Server struct {
	mcpServer *mcp.Server
	sandbox   *sandbox.Sandbox
	writer    *safefile.Writer
	store     *conversation.Store
	redactor  *redact.Redactor
	generator Generator
	logger    *slog.Logger

	maxContextChars int
}

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string

	Sandbox  *sandbox.Sandbox
	Writer   *safefile.Writer
	Store    *conversation.Store
	Redactor *redact.Redactor

	// Generator produces assistant replies for continueConversation. Nil
	// selects the echo generator, useful for tests and dry runs.
	Generator Generator

	// MaxContextChars bounds the transcript rebuilt for the generator.
	// <= 0 selects a default.
	MaxContextChars int

	Logger *slog.Logger
}

const defaultMaxContextChars = 32_000

// NewServer creates the MCP server and registers all tools.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Sandbox == nil || cfg.Writer == nil || cfg.Store == nil || cfg.Redactor == nil {
		return nil, fmt.Errorf("sandbox, writer, store and redactor are all required")
	}
	if cfg.Generator == nil {
		cfg.Generator = EchoGenerator{}
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = defaultMaxContextChars
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		sandbox:         cfg.Sandbox,
		writer:          cfg.Writer,
		store:           cfg.Store,
		redactor:        cfg.Redactor,
		generator:       cfg.Generator,
		logger:          cfg.Logger,
		maxContextChars: cfg.MaxContextChars,
	}

	if err := s.registerFileTools(); err != nil {
		return nil, err
	}
	if err := s.registerConversationTools(); err != nil {
		return nil, err
	}

	return s, nil
}

// Run starts the MCP server on the given transport. Blocks until the
// transport closes or ctx is canceled.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}
