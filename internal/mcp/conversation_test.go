package mcp

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var continuationRe = regexp.MustCompile(`\[continuationId: ([0-9a-f-]+)\]`)

func extractContinuationID(t *testing.T, text string) string {
	t.Helper()
	m := continuationRe.FindStringSubmatch(text)
	if m == nil {
		t.Fatalf("response missing continuation ID: %q", text)
	}
	return m[1]
}

func callContinue(t *testing.T, session *mcp.ClientSession, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "continueConversation",
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(continueConversation) unexpected error: %v", err)
	}
	return result
}

func TestCallTool_ContinueConversation_NewThread(t *testing.T) {
	session, h := connectTestServer(t)

	result := callContinue(t, session, map[string]any{"prompt": "hello there"})
	if result.IsError {
		t.Fatalf("continueConversation errored: %s", textContent(t, result))
	}

	text := textContent(t, result)
	id := extractContinuationID(t, text)

	thread, err := h.store.GetThread(context.Background(), id)
	if err != nil {
		t.Fatalf("loading thread: %v", err)
	}
	if thread == nil {
		t.Fatal("returned continuation ID does not resolve to a thread")
	}
	// One user turn plus the assistant reply.
	if thread.TurnCount != 2 {
		t.Errorf("thread has %d turns, want 2", thread.TurnCount)
	}
	if thread.Title != "hello there" {
		t.Errorf("auto title = %q", thread.Title)
	}
}

func TestCallTool_ContinueConversation_Resumes(t *testing.T) {
	session, _ := connectTestServer(t)

	first := textContent(t, callContinue(t, session, map[string]any{"prompt": "first message"}))
	id := extractContinuationID(t, first)

	second := textContent(t, callContinue(t, session, map[string]any{
		"prompt":         "second message",
		"continuationId": id,
	}))
	if got := extractContinuationID(t, second); got != id {
		t.Errorf("resumed call returned a new thread: %s != %s", got, id)
	}
	if !strings.Contains(second, "continuing an existing conversation") {
		t.Errorf("generator did not receive history: %q", second)
	}
}

func TestCallTool_ContinueConversation_UnknownContinuation(t *testing.T) {
	session, _ := connectTestServer(t)

	// An ID that never existed starts a fresh thread rather than failing.
	text := textContent(t, callContinue(t, session, map[string]any{
		"prompt":         "resume attempt",
		"continuationId": "00000000-0000-0000-0000-000000000000",
	}))
	if id := extractContinuationID(t, text); id == "00000000-0000-0000-0000-000000000000" {
		t.Error("dead continuation ID was reused")
	}
}

func TestCallTool_ContinueConversation_EmptyPrompt(t *testing.T) {
	session, _ := connectTestServer(t)

	result := callContinue(t, session, map[string]any{"prompt": "   "})
	if !result.IsError || !strings.Contains(textContent(t, result), "INVALID_INPUT") {
		t.Errorf("blank prompt not rejected: %s", textContent(t, result))
	}
}

func TestCallTool_ListConversations(t *testing.T) {
	session, _ := connectTestServer(t)

	callContinue(t, session, map[string]any{"prompt": "inventory question"})

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "listConversations",
		Arguments: map[string]any{},
	})
	if err != nil {
		t.Fatalf("CallTool(listConversations) unexpected error: %v", err)
	}
	text := textContent(t, result)
	if !strings.Contains(text, "inventory question") {
		t.Errorf("listing missing thread: %q", text)
	}
}

func TestCallTool_ListConversations_Empty(t *testing.T) {
	session, _ := connectTestServer(t)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "listConversations",
		Arguments: map[string]any{},
	})
	if err != nil {
		t.Fatalf("CallTool(listConversations) unexpected error: %v", err)
	}
	if !strings.Contains(textContent(t, result), "No conversations") {
		t.Errorf("empty store listing = %q", textContent(t, result))
	}
}

func TestCallTool_DeleteConversation(t *testing.T) {
	session, h := connectTestServer(t)
	ctx := context.Background()

	text := textContent(t, callContinue(t, session, map[string]any{"prompt": "delete me"}))
	id := extractContinuationID(t, text)

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "deleteConversation",
		Arguments: map[string]any{"threadId": id},
	})
	if err != nil {
		t.Fatalf("CallTool(deleteConversation) unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("delete errored: %s", textContent(t, result))
	}

	if thread, _ := h.store.GetThread(ctx, id); thread != nil {
		t.Error("thread survived deletion")
	}

	// Second delete reports NOT_FOUND.
	result, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "deleteConversation",
		Arguments: map[string]any{"threadId": id},
	})
	if err != nil {
		t.Fatalf("CallTool(deleteConversation) unexpected error: %v", err)
	}
	if !result.IsError || !strings.Contains(textContent(t, result), "NOT_FOUND") {
		t.Errorf("redundant delete = %s", textContent(t, result))
	}
}
