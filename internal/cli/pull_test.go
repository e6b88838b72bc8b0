package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/notemirror/notemirror/internal/engine"
)

func TestWritePulledNote(t *testing.T) {
	dir := t.TempDir()

	n := engine.PulledNote{Folder: "Work", Title: "Project Plan", Content: "# Project Plan\n\nShip it.\n"}
	if err := writePulledNote(dir, n); err != nil {
		t.Fatalf("Failed to write pulled note: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "Work", "Project Plan.md"))
	if err != nil {
		t.Fatalf("Failed to read written note: %v", err)
	}
	if string(got) != n.Content {
		t.Errorf("Content mismatch. Expected %q, got %q", n.Content, string(got))
	}
}

func TestWritePulledNote_UnsafeTitle(t *testing.T) {
	dir := t.TempDir()

	n := engine.PulledNote{Folder: "Work", Title: "a/b", Content: "body"}
	if err := writePulledNote(dir, n); err != nil {
		t.Fatalf("Failed to write pulled note: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "Work", "a-b.md")); err != nil {
		t.Errorf("Expected sanitized file name a-b.md: %v", err)
	}
}

func TestSafeName(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{input: "Plan", expected: "Plan"},
		{input: "a/b/c", expected: "a-b-c"},
		{input: "", expected: ""},
	}

	for _, tc := range testCases {
		if got := safeName(tc.input); got != tc.expected {
			t.Errorf("safeName(%q) mismatch. Expected %q, got %q", tc.input, tc.expected, got)
		}
	}
}
