package conversation

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Turn roles. Turns are immutable once appended.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	// titleMaxLen bounds auto-generated thread titles.
	titleMaxLen = 50

	// firstPromptMaxLen bounds the snippet kept in the index for search.
	firstPromptMaxLen = 200
)

// Thread is a conversation's metadata without its turns.
type Thread struct {
	ID           string
	Title        string
	Mode         string
	CreatedAt    time.Time
	LastActivity time.Time
	TurnCount    int
}

// Turn is a single exchange entry. ToolName and Files are optional
// provenance: which tool produced the turn and which files it referenced.
type Turn struct {
	Role      string
	Content   string
	Timestamp time.Time
	ToolName  string
	Files     []string
}

// IndexEntry is the denormalized listing row kept alongside each thread so
// listing and search never load full turn histories.
type IndexEntry struct {
	ThreadID    string
	Title       string
	Mode        string
	FirstPrompt string
	TurnCount   int
	LastUsed    time.Time
}

// ListFilter narrows ListConversations. Zero value lists everything up to
// the default limit.
type ListFilter struct {
	// Mode restricts results to one storage mode when non-empty.
	Mode string

	// Search matches a substring of the title or first prompt.
	Search string

	// Limit caps the result count; <= 0 selects a default of 20.
	Limit int
}

// Stats summarizes the store's contents.
type Stats struct {
	Threads    int
	Turns      int
	OldestUsed time.Time
	NewestUsed time.Time
}

// GenerateTitle derives a short human-readable title from a prompt: the
// first non-empty line, truncated on a rune boundary.
func GenerateTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if utf8.RuneCountInString(line) <= titleMaxLen {
			return line
		}
		runes := []rune(line)
		return strings.TrimSpace(string(runes[:titleMaxLen-3])) + "..."
	}
	return "Untitled conversation"
}

func snippet(content string) string {
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) <= firstPromptMaxLen {
		return content
	}
	return string([]rune(content)[:firstPromptMaxLen])
}
