package sandbox

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestIsBinaryByExtension(t *testing.T) {
	// Content is plain text, but the extension wins without inspection.
	path := writeTemp(t, "image.png", []byte("not really an image"))
	if !IsBinary(path, false) {
		t.Error("known binary extension should classify as binary without content check")
	}
}

func TestIsBinaryContent(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content []byte
		want    bool
	}{
		{
			name:    "plain text",
			file:    "readme.txt",
			content: []byte("hello, world\nline two\n"),
			want:    false,
		},
		{
			name:    "empty file is text",
			file:    "empty",
			content: nil,
			want:    false,
		},
		{
			name:    "png magic bytes",
			file:    "disguised.txt",
			content: append([]byte{0x89, 'P', 'N', 'G'}, []byte("rest")...),
			want:    true,
		},
		{
			name:    "elf magic bytes",
			file:    "program",
			content: []byte{0x7F, 'E', 'L', 'F', 2, 1, 1},
			want:    true,
		},
		{
			name:    "nul byte",
			file:    "data",
			content: []byte("text\x00more"),
			want:    true,
		},
		{
			name:    "valid utf8 multibyte",
			file:    "unicode.txt",
			content: []byte("héllo wörld — 日本語"),
			want:    false,
		},
		{
			name:    "invalid utf8 high control ratio",
			file:    "garbage",
			content: append([]byte{0xFE, 0xFF}, bytes.Repeat([]byte{0x01, 0x02, 0x03, 'a'}, 64)...),
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTemp(t, tt.file, tt.content)
			if got := IsBinary(path, true); got != tt.want {
				t.Errorf("IsBinary(%s) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestIsBinaryUnreadableFailsOpen(t *testing.T) {
	// Nonexistent file: detector must report text, not raise.
	if IsBinary(filepath.Join(t.TempDir(), "missing.txt"), true) {
		t.Error("unreadable file should be treated as text (fail-open)")
	}
}
