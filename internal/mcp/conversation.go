package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"geminimcp/internal/conversation"
)

// ContinueConversationInput defines the input schema for continueConversation.
type ContinueConversationInput struct {
	Prompt         string   `json:"prompt" jsonschema:"The user's message"`
	ContinuationID string   `json:"continuationId,omitempty" jsonschema:"Thread ID from a previous response; omit to start a new conversation"`
	Files          []string `json:"files,omitempty" jsonschema:"Sandbox-relative file paths referenced by this message"`
	Mode           string   `json:"mode,omitempty" jsonschema:"Storage mode label for the thread (default chat)"`
}

// ListConversationsInput defines the input schema for listConversations.
type ListConversationsInput struct {
	Mode   string `json:"mode,omitempty" jsonschema:"Only list threads with this storage mode"`
	Search string `json:"search,omitempty" jsonschema:"Substring to match against titles and first prompts"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of threads to return (default 20)"`
}

// DeleteConversationInput defines the input schema for deleteConversation.
type DeleteConversationInput struct {
	ThreadID string `json:"threadId" jsonschema:"The conversation thread to delete"`
}

func (s *Server) registerConversationTools() error {
	if err := s.registerContinueConversation(); err != nil {
		return fmt.Errorf("registering continueConversation: %w", err)
	}
	if err := s.registerListConversations(); err != nil {
		return fmt.Errorf("registering listConversations: %w", err)
	}
	if err := s.registerDeleteConversation(); err != nil {
		return fmt.Errorf("registering deleteConversation: %w", err)
	}
	return nil
}

func (s *Server) registerContinueConversation() error {
	inputSchema, err := jsonschema.For[ContinueConversationInput](nil)
	if err != nil {
		return err
	}

	tool := &mcp.Tool{
		Name:        "continueConversation",
		Description: "Send a prompt, resuming the thread named by continuationId when it is still alive, or starting a fresh one otherwise. The reply includes the thread ID to pass back for the next turn.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in ContinueConversationInput) (*mcp.CallToolResult, any, error) {
		if strings.TrimSpace(in.Prompt) == "" {
			return s.errorResult(codeInvalidInput, "prompt must not be empty"), nil, nil
		}
		mode := in.Mode
		if mode == "" {
			mode = "chat"
		}

		threadID, isNew, _, err := s.store.GetOrCreateThread(ctx, in.ContinuationID, conversation.GenerateTitle(in.Prompt), mode)
		if err != nil {
			s.logger.Error("get-or-create thread", "error", err)
			return s.errorResult(codeInternal, "conversation store unavailable"), nil, nil
		}

		history := ""
		if !isNew {
			history, err = s.store.BuildContext(ctx, threadID, s.maxContextChars)
			if err != nil {
				s.logger.Error("building context", "thread_id", threadID, "error", err)
				return s.errorResult(codeInternal, "conversation store unavailable"), nil, nil
			}
		}

		ok, err := s.store.AddTurn(ctx, threadID, conversation.Turn{
			Role:    conversation.RoleUser,
			Content: in.Prompt,
			Files:   in.Files,
		})
		if err != nil {
			s.logger.Error("appending user turn", "thread_id", threadID, "error", err)
			return s.errorResult(codeInternal, "conversation store unavailable"), nil, nil
		}
		if !ok {
			return s.errorResult(codeMaxTurns, conversation.ErrTurnLimit.Error()+"; start a new conversation"), nil, nil
		}

		reply, err := s.generator.Generate(ctx, in.Prompt, history)
		if err != nil {
			s.logger.Error("generation failed", "thread_id", threadID, "error", err)
			return s.errorResult(codeInternal, "generation failed; retry later"), nil, nil
		}

		// A full thread still returns the reply; only persistence of the
		// assistant turn is skipped, and the client is told to rotate.
		stored, err := s.store.AddTurn(ctx, threadID, conversation.Turn{
			Role:     conversation.RoleAssistant,
			Content:  reply,
			ToolName: "continueConversation",
		})
		if err != nil {
			s.logger.Error("appending assistant turn", "thread_id", threadID, "error", err)
		}

		var b strings.Builder
		b.WriteString(reply)
		fmt.Fprintf(&b, "\n\n[continuationId: %s]", threadID)
		if !stored {
			b.WriteString("\n[note: thread is full; pass no continuationId to start fresh]")
		}
		return s.textResult(b.String()), nil, nil
	})
	return nil
}

func (s *Server) registerListConversations() error {
	inputSchema, err := jsonschema.For[ListConversationsInput](nil)
	if err != nil {
		return err
	}

	tool := &mcp.Tool{
		Name:        "listConversations",
		Description: "List stored conversation threads, most recently used first.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in ListConversationsInput) (*mcp.CallToolResult, any, error) {
		entries, err := s.store.ListConversations(ctx, conversation.ListFilter{
			Mode:   in.Mode,
			Search: in.Search,
			Limit:  in.Limit,
		})
		if err != nil {
			s.logger.Error("listing conversations", "error", err)
			return s.errorResult(codeInternal, "conversation store unavailable"), nil, nil
		}
		if len(entries) == 0 {
			return s.textResult("No conversations found."), nil, nil
		}

		var b strings.Builder
		for _, e := range entries {
			fmt.Fprintf(&b, "%s  [%s, %d turns, last used %s]\n  %s\n",
				e.Title, e.Mode, e.TurnCount, e.LastUsed.Format("2006-01-02 15:04"), e.ThreadID)
		}
		return s.textResult(strings.TrimRight(b.String(), "\n")), nil, nil
	})
	return nil
}

func (s *Server) registerDeleteConversation() error {
	inputSchema, err := jsonschema.For[DeleteConversationInput](nil)
	if err != nil {
		return err
	}

	tool := &mcp.Tool{
		Name:        "deleteConversation",
		Description: "Delete a conversation thread and all of its turns.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in DeleteConversationInput) (*mcp.CallToolResult, any, error) {
		t, err := s.store.GetThread(ctx, in.ThreadID)
		if err != nil {
			s.logger.Error("loading thread for delete", "error", err)
			return s.errorResult(codeInternal, "conversation store unavailable"), nil, nil
		}
		if t == nil {
			return s.errorResult(codeNotFound, "conversation not found or already expired"), nil, nil
		}
		if err := s.store.DeleteThread(ctx, in.ThreadID); err != nil {
			s.logger.Error("deleting thread", "error", err)
			return s.errorResult(codeInternal, "conversation store unavailable"), nil, nil
		}
		return s.textResult("Conversation deleted."), nil, nil
	})
	return nil
}
