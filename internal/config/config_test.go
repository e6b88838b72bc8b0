package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		"NOTEMIRROR_NOTES_DIR",
		"NOTEMIRROR_ROOT_FOLDER",
		"GOOGLE_CLIENT_ID",
		"GOOGLE_CLIENT_SECRET",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("Failed to resolve home: %v", err)
	}
	if want := filepath.Join(home, "Notes"); cfg.NotesDir != want {
		t.Errorf("NotesDir mismatch. Expected %q, got %q", want, cfg.NotesDir)
	}
	if cfg.AutoSyncMinutes != defaultAutoSyncMinutes {
		t.Errorf("AutoSyncMinutes mismatch. Expected %d, got %d", defaultAutoSyncMinutes, cfg.AutoSyncMinutes)
	}
	if cfg.RootFolderName != "" {
		t.Errorf("Expected empty RootFolderName, got %q", cfg.RootFolderName)
	}
}

func TestLoad_FromFile(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	raw := "notesDir: /tmp/notes\nrootFolder: Journal\nautoSyncMinutes: 5\nuploadWorkers: 2\nclientId: abc\nclientSecret: shh\n"
	if err := os.WriteFile(filepath.Join(dir, configFilename), []byte(raw), 0600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.NotesDir != "/tmp/notes" {
		t.Errorf("NotesDir mismatch. Expected %q, got %q", "/tmp/notes", cfg.NotesDir)
	}
	if cfg.RootFolderName != "Journal" {
		t.Errorf("RootFolderName mismatch. Expected %q, got %q", "Journal", cfg.RootFolderName)
	}
	if cfg.AutoSyncMinutes != 5 {
		t.Errorf("AutoSyncMinutes mismatch. Expected 5, got %d", cfg.AutoSyncMinutes)
	}
	if cfg.UploadWorkers != 2 {
		t.Errorf("UploadWorkers mismatch. Expected 2, got %d", cfg.UploadWorkers)
	}
	if cfg.ClientID != "abc" || cfg.ClientSecret != "shh" {
		t.Errorf("Client credentials mismatch. Got id %q secret %q", cfg.ClientID, cfg.ClientSecret)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	raw := "notesDir: /tmp/notes\nclientId: from-file\n"
	if err := os.WriteFile(filepath.Join(dir, configFilename), []byte(raw), 0600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Setenv("NOTEMIRROR_NOTES_DIR", "/tmp/other")
	t.Setenv("GOOGLE_CLIENT_ID", "from-env")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.NotesDir != "/tmp/other" {
		t.Errorf("NotesDir mismatch. Expected %q, got %q", "/tmp/other", cfg.NotesDir)
	}
	if cfg.ClientID != "from-env" {
		t.Errorf("ClientID mismatch. Expected %q, got %q", "from-env", cfg.ClientID)
	}
}

func TestWriteThenLoad(t *testing.T) {
	clearEnv(t)

	dir := filepath.Join(t.TempDir(), "nested")
	want := Config{
		NotesDir:        "/srv/notes",
		RootFolderName:  "Notes App",
		AutoSyncMinutes: 30,
		UploadWorkers:   8,
		ClientID:        "id",
		ClientSecret:    "secret",
	}

	if err := Write(dir, want); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, configFilename))
	if err != nil {
		t.Fatalf("Failed to stat config file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("Config file permission mismatch. Expected 0600, got %v", perm)
	}

	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if got != want {
		t.Errorf("Config mismatch. Expected %+v, got %+v", want, got)
	}
}

func TestOAuth(t *testing.T) {
	cfg := Config{ClientID: "id", ClientSecret: "secret"}

	oc := cfg.OAuth()
	if oc.ClientID != "id" || oc.ClientSecret != "secret" {
		t.Errorf("Client credentials mismatch. Got id %q secret %q", oc.ClientID, oc.ClientSecret)
	}
	if oc.RedirectURL != oobRedirectURL {
		t.Errorf("RedirectURL mismatch. Expected %q, got %q", oobRedirectURL, oc.RedirectURL)
	}
	if len(oc.Scopes) != 1 || oc.Scopes[0] != driveFileScope {
		t.Errorf("Scopes mismatch. Got %v", oc.Scopes)
	}
}
