package mcp

import (
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"geminimcp/internal/filelock"
	"geminimcp/internal/sandbox"
)

// Error codes exposed to clients. These are a controlled vocabulary; raw
// paths, OS error text and stack traces never leave the server.
const (
	codeOutsideSandbox = "OUTSIDE_SANDBOX"
	codeInvalidPath    = "INVALID_PATH"
	codeInvalidInput   = "INVALID_INPUT"
	codeTooLarge       = "TOO_LARGE"
	codeBinaryFile     = "BINARY_FILE"
	codeDecodeError    = "DECODE_ERROR"
	codeLockTimeout    = "LOCK_TIMEOUT"
	codeMaxTurns       = "MAX_TURNS_EXCEEDED"
	codeNotFound       = "NOT_FOUND"
	codeWriteFailed    = "WRITE_FAILED"
	codeInternal       = "INTERNAL"
)

// textResult builds a success result, redacting the text first so secrets
// read from user files never reach the client transcript.
func (s *Server) textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: s.redactor.Sanitize(text)}},
	}
}

// errorResult builds an IsError tool result with a taxonomy code. message
// must already be generic; it is still passed through the redactor as a
// second line of defense.
func (s *Server) errorResult(code, message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: "[" + code + "] " + s.redactor.Sanitize(message)}},
		IsError: true,
	}
}

// classify maps component sentinel errors onto the client-facing taxonomy.
// Unrecognized errors become INTERNAL with a fixed message, never the raw
// error text.
func classify(err error) (code, message string) {
	switch {
	case errors.Is(err, sandbox.ErrOutsideSandbox):
		return codeOutsideSandbox, err.Error()
	case errors.Is(err, sandbox.ErrInvalidPath):
		return codeInvalidPath, "path could not be resolved"
	case errors.Is(err, sandbox.ErrTooLarge):
		return codeTooLarge, err.Error()
	case errors.Is(err, sandbox.ErrBinaryFile):
		return codeBinaryFile, err.Error()
	case errors.Is(err, sandbox.ErrNotUTF8):
		return codeDecodeError, err.Error()
	case errors.Is(err, filelock.ErrTimeout):
		return codeLockTimeout, "resource is locked by another operation; retry later"
	default:
		return codeInternal, "operation failed; see server logs"
	}
}
