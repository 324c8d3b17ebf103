package mcp

import (
	"context"
	"strings"
)

// Generator produces an assistant reply from a prompt and the rebuilt
// conversation context. The real backend is injected by the caller; the
// server itself has no model dependency.
type Generator interface {
	Generate(ctx context.Context, prompt, history string) (string, error)
}

// EchoGenerator is the fallback Generator: it acknowledges the prompt
// without calling any model. Used in tests and when no backend is wired.
type EchoGenerator struct{}

func (EchoGenerator) Generate(_ context.Context, prompt, history string) (string, error) {
	var b strings.Builder
	b.WriteString("Received: ")
	b.WriteString(prompt)
	if history != "" {
		b.WriteString("\n(continuing an existing conversation)")
	}
	return b.String(), nil
}
