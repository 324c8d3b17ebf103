package cmd

import (
	"os"
	"strings"
	"testing"
)

func TestExecuteUnknownCommand(t *testing.T) {
	orig := os.Args
	defer func() { os.Args = orig }()

	os.Args = []string{"gemini-mcp", "frobnicate"}
	err := Execute()
	if err == nil {
		t.Fatal("unknown command accepted")
	}
	if !strings.Contains(err.Error(), "frobnicate") {
		t.Errorf("error does not name the command: %v", err)
	}
}

func TestExecuteVersion(t *testing.T) {
	orig := os.Args
	defer func() { os.Args = orig }()

	os.Args = []string{"gemini-mcp", "--version"}
	if err := Execute(); err != nil {
		t.Errorf("version command errored: %v", err)
	}
}

func TestExecuteNoArgsShowsHelp(t *testing.T) {
	orig := os.Args
	defer func() { os.Args = orig }()

	os.Args = []string{"gemini-mcp"}
	if err := Execute(); err != nil {
		t.Errorf("bare invocation errored: %v", err)
	}
}
