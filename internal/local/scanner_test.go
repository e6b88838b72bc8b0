package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/notemirror/notemirror/internal/model"
)

func writeNote(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
}

func TestDirScanner_Snapshot(t *testing.T) {
	root := t.TempDir()
	writeNote(t, filepath.Join(root, "Work", "plan.md"), "# Project Plan\n\nShip the mirror.\n")
	writeNote(t, filepath.Join(root, "Work", "scratch.md"), "no heading here\n")
	writeNote(t, filepath.Join(root, "Work", ".draft.md"), "# Hidden draft\n")
	writeNote(t, filepath.Join(root, "Work", "raw.txt"), "not markdown\n")
	writeNote(t, filepath.Join(root, "Personal", "journal.md"), "## Journal\n\nDear diary.\n")
	writeNote(t, filepath.Join(root, ".archive", "old.md"), "# Old\n")
	writeNote(t, filepath.Join(root, "loose.md"), "# Loose\n")
	if err := os.MkdirAll(filepath.Join(root, "Empty"), 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}

	got, err := NewDirScanner(root).Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	want := &model.Snapshot{
		Folders: []model.Folder{
			{Name: "Empty"},
			{Name: "Personal", Notes: []model.Note{
				{Title: "Journal", Content: "## Journal\n\nDear diary.\n"},
			}},
			{Name: "Work", Notes: []model.Note{
				{Title: "Project Plan", Content: "# Project Plan\n\nShip the mirror.\n"},
				{Title: "scratch", Content: "no heading here\n"},
			}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Snapshot mismatch (-want +got):\n%s", diff)
	}
	if got.NoteCount() != 3 {
		t.Errorf("Expected 3 notes, got %d", got.NoteCount())
	}
}

func TestDirScanner_MissingRoot(t *testing.T) {
	_, err := NewDirScanner(filepath.Join(t.TempDir(), "nope")).Snapshot(context.Background())
	if err == nil {
		t.Fatal("Expected error for missing root")
	}
}

func TestDirScanner_CancelledContext(t *testing.T) {
	root := t.TempDir()
	writeNote(t, filepath.Join(root, "Work", "plan.md"), "# Plan\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewDirScanner(root).Snapshot(ctx); err != context.Canceled {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

func TestTitleFromContent(t *testing.T) {
	s := NewDirScanner("")
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"atx heading", "# Plan\n\nbody\n", "Plan"},
		{"deeper heading", "### Weekly Review\n", "Weekly Review"},
		{"styled heading", "# **Bold** plan\n", "Bold plan"},
		{"heading after prose", "intro paragraph\n\n## Later\n", "Later"},
		{"setext heading", "Setext\n======\n", "Setext"},
		{"no heading", "just text\n", ""},
		{"missing space", "#not-a-heading\n", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.titleFromContent([]byte(tt.source)); got != tt.want {
				t.Errorf("titleFromContent(%q) = %q, want %q", tt.source, got, tt.want)
			}
		})
	}
}

func TestContentHash(t *testing.T) {
	if got := ContentHash("hello"); got != "5d41402abc4b2a76b9719d911017c592" {
		t.Errorf("ContentHash(hello) = %s", got)
	}
	if ContentHash("# Plan\n") != ContentHash("# Plan\n") {
		t.Error("Expected stable hash for identical content")
	}
	if ContentHash("a") == ContentHash("b") {
		t.Error("Expected different hashes for different content")
	}
}
