package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/notemirror/notemirror/internal/model"
)

const (
	tokenFileName = "google_drive_tokens.json"
	stateFileName = "sync_state.json"
)

// FileTokenStore keeps the OAuth token in a JSON file. Writes go
// through a temp file and rename so a crash never leaves a partial
// token on disk.
type FileTokenStore struct {
	path string
}

// NewFileTokenStore stores the token under dir.
func NewFileTokenStore(dir string) *FileTokenStore {
	return &FileTokenStore{path: filepath.Join(dir, tokenFileName)}
}

// Path returns the token file location.
func (s *FileTokenStore) Path() string {
	return s.path
}

func (s *FileTokenStore) Load(ctx context.Context) (*model.Token, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read token file: %w", err)
	}

	var token model.Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("unable to parse token file: %w", err)
	}
	if token.Empty() {
		return nil, ErrNoToken
	}
	return &token, nil
}

func (s *FileTokenStore) Save(ctx context.Context, token *model.Token) error {
	raw, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to encode token: %w", err)
	}
	// Tokens are credentials, keep them owner-only.
	if err := writeFileAtomic(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("unable to write token file: %w", err)
	}
	return nil
}

func (s *FileTokenStore) Clear(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unable to remove token file: %w", err)
	}
	return nil
}

// FileStateStore keeps sync bookkeeping in a JSON file next to the
// token.
type FileStateStore struct {
	path string
}

func NewFileStateStore(dir string) *FileStateStore {
	return &FileStateStore{path: filepath.Join(dir, stateFileName)}
}

func (s *FileStateStore) LoadState(ctx context.Context) (*model.SyncState, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &model.SyncState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read state file: %w", err)
	}

	var state model.SyncState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("unable to parse state file: %w", err)
	}
	return &state, nil
}

func (s *FileStateStore) SaveState(ctx context.Context, state *model.SyncState) error {
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to encode state: %w", err)
	}
	if err := writeFileAtomic(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("unable to write state file: %w", err)
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the target directory
// and renames it into place.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
