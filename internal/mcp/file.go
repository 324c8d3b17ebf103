package mcp

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"geminimcp/internal/sandbox"
)

// ReadFileInput defines the input schema for readFile.
type ReadFileInput struct {
	Path string `json:"path" jsonschema:"The file path to read (absolute or relative to the sandbox root)"`
}

// WriteFileInput defines the input schema for writeFile.
type WriteFileInput struct {
	Path    string `json:"path" jsonschema:"The file path to write (absolute or relative to the sandbox root)"`
	Content string `json:"content" jsonschema:"The complete new file content"`
	Backup  *bool  `json:"backup,omitempty" jsonschema:"Whether to keep a backup of the previous content (default true)"`
}

// ListFilesInput defines the input schema for listFiles.
type ListFilesInput struct {
	Path string `json:"path,omitempty" jsonschema:"Directory to list, relative to the sandbox root (default: the root itself)"`
}

// FileInfoInput defines the input schema for fileInfo.
type FileInfoInput struct {
	Path string `json:"path" jsonschema:"The file to inspect"`
}

func (s *Server) registerFileTools() error {
	if err := s.registerReadFile(); err != nil {
		return fmt.Errorf("registering readFile: %w", err)
	}
	if err := s.registerWriteFile(); err != nil {
		return fmt.Errorf("registering writeFile: %w", err)
	}
	if err := s.registerListFiles(); err != nil {
		return fmt.Errorf("registering listFiles: %w", err)
	}
	if err := s.registerFileInfo(); err != nil {
		return fmt.Errorf("registering fileInfo: %w", err)
	}
	return nil
}

func (s *Server) registerReadFile() error {
	inputSchema, err := jsonschema.For[ReadFileInput](nil)
	if err != nil {
		return err
	}

	tool := &mcp.Tool{
		Name:        "readFile",
		Description: "Read the complete content of a text file inside the sandbox. Binary files and files over the size limit are rejected.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in ReadFileInput) (*mcp.CallToolResult, any, error) {
		content, err := s.sandbox.ReadFile(in.Path)
		if err != nil {
			code, msg := classify(err)
			s.logger.Debug("readFile rejected", "code", code, "error", err)
			return s.errorResult(code, msg), nil, nil
		}
		return s.textResult(content), nil, nil
	})
	return nil
}

func (s *Server) registerWriteFile() error {
	inputSchema, err := jsonschema.For[WriteFileInput](nil)
	if err != nil {
		return err
	}

	tool := &mcp.Tool{
		Name:        "writeFile",
		Description: "Atomically write a text file inside the sandbox. The previous content is backed up unless backup is false.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in WriteFileInput) (*mcp.CallToolResult, any, error) {
		backup := in.Backup == nil || *in.Backup

		res := s.writer.Write(ctx, in.Path, in.Content, backup)
		if !res.Success {
			s.logger.Debug("writeFile failed", "error", res.Error)
			return s.errorResult(codeWriteFailed, res.Error), nil, nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Wrote %d bytes (hash %s).", len(in.Content), res.ContentHash)
		if res.BackupPath != "" {
			b.WriteString(" Previous content backed up.")
		}
		return s.textResult(b.String()), nil, nil
	})
	return nil
}

func (s *Server) registerListFiles() error {
	inputSchema, err := jsonschema.For[ListFilesInput](nil)
	if err != nil {
		return err
	}

	tool := &mcp.Tool{
		Name:        "listFiles",
		Description: "List the entries of a directory inside the sandbox.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in ListFilesInput) (*mcp.CallToolResult, any, error) {
		path := in.Path
		if path == "" {
			path = "."
		}
		validated, err := s.sandbox.Validate(path)
		if err != nil {
			code, msg := classify(err)
			return s.errorResult(code, msg), nil, nil
		}

		entries, err := os.ReadDir(validated)
		if err != nil {
			return s.errorResult(codeNotFound, "directory could not be read"), nil, nil
		}

		names := make([]string, 0, len(entries))
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() {
				name += "/"
			}
			names = append(names, name)
		}
		sort.Strings(names)

		if len(names) == 0 {
			return s.textResult("(empty directory)"), nil, nil
		}
		return s.textResult(strings.Join(names, "\n")), nil, nil
	})
	return nil
}

func (s *Server) registerFileInfo() error {
	inputSchema, err := jsonschema.For[FileInfoInput](nil)
	if err != nil {
		return err
	}

	tool := &mcp.Tool{
		Name:        "fileInfo",
		Description: "Report size, modification time and text/binary classification for a file inside the sandbox.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in FileInfoInput) (*mcp.CallToolResult, any, error) {
		validated, err := s.sandbox.Validate(in.Path)
		if err != nil {
			code, msg := classify(err)
			return s.errorResult(code, msg), nil, nil
		}

		info, err := os.Stat(validated)
		if err != nil {
			return s.errorResult(codeNotFound, "file not found"), nil, nil
		}

		kind := "text"
		if info.IsDir() {
			kind = "directory"
		} else if sandbox.IsBinary(validated, true) {
			kind = "binary"
		}

		out := fmt.Sprintf("name: %s\nsize: %d bytes\nmodified: %s\ntype: %s",
			info.Name(), info.Size(), info.ModTime().Format("2006-01-02 15:04:05"), kind)
		return s.textResult(out), nil, nil
	})
	return nil
}
