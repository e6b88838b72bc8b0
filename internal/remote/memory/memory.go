// Package memory implements remote.Store on an in-memory map. It backs
// tests and local dry runs, mimicking Drive closely enough that the
// engine cannot tell the difference: ids are opaque, note names carry
// the .md extension internally, and listings report an MD5 checksum of
// the stored content.
package memory

import (
	"context"
	"crypto/md5"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/notemirror/notemirror/internal/remote"
)

const (
	mdExt      = ".md"
	folderMIME = "application/vnd.google-apps.folder"
	noteMIME   = "text/markdown"
)

// toMemoryName appends .md extension for storage.
func toMemoryName(name string) string {
	if strings.HasSuffix(name, mdExt) {
		return name
	}
	return name + mdExt
}

// fromMemoryName strips .md extension when returning titles.
func fromMemoryName(name string) string {
	return strings.TrimSuffix(name, mdExt)
}

type entry struct {
	id       string
	name     string
	mime     string
	parentID string
	content  []byte
	md5sum   string
}

// Store implements remote.Store.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// FindFolder searches folders by name. An empty parentID matches a
// folder anywhere, mirroring an unscoped Drive query.
func (s *Store) FindFolder(ctx context.Context, name, parentID string) (*remote.FolderRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.mime != folderMIME || e.name != name {
			continue
		}
		if parentID != "" && e.parentID != parentID {
			continue
		}
		return &remote.FolderRef{ID: e.id, Name: e.name}, nil
	}
	return nil, remote.ErrNotFound
}

func (s *Store) CreateFolder(ctx context.Context, name, parentID string) (*remote.FolderRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if parentID == "" {
		parentID = "root"
	}
	e := &entry{
		id:       uuid.New().String(),
		name:     name,
		mime:     folderMIME,
		parentID: parentID,
	}
	s.entries[e.id] = e
	return &remote.FolderRef{ID: e.id, Name: e.name}, nil
}

// UploadNote validates the request, then creates or replaces the note.
// Invalid requests leave the store untouched.
func (s *Store) UploadNote(ctx context.Context, up remote.UploadRequest) (*remote.NoteRef, error) {
	if err := remote.ValidateUpload(up); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	content := []byte(up.Content)
	sum := fmt.Sprintf("%x", md5.Sum(content))

	if up.NoteID != "" {
		e, ok := s.entries[up.NoteID]
		if !ok {
			return nil, remote.ErrNotFound
		}
		e.name = toMemoryName(up.Title)
		e.content = content
		e.md5sum = sum
		return &remote.NoteRef{ID: e.id, Title: up.Title, MD5: sum}, nil
	}

	e := &entry{
		id:       uuid.New().String(),
		name:     toMemoryName(up.Title),
		mime:     noteMIME,
		parentID: up.ParentID,
		content:  content,
		md5sum:   sum,
	}
	s.entries[e.id] = e
	return &remote.NoteRef{ID: e.id, Title: up.Title, MD5: sum}, nil
}

func (s *Store) ListChildFolders(ctx context.Context, parentID string) ([]remote.FolderRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	folders := []remote.FolderRef{}
	for _, e := range s.entries {
		if e.mime == folderMIME && e.parentID == parentID {
			folders = append(folders, remote.FolderRef{ID: e.id, Name: e.name})
		}
	}
	return folders, nil
}

func (s *Store) ListChildFiles(ctx context.Context, parentID string) ([]remote.NoteRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notes := []remote.NoteRef{}
	for _, e := range s.entries {
		if e.mime != folderMIME && e.parentID == parentID {
			notes = append(notes, remote.NoteRef{ID: e.id, Title: fromMemoryName(e.name), MD5: e.md5sum})
		}
	}
	return notes, nil
}

func (s *Store) DownloadNote(ctx context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, remote.ErrNotFound
	}
	content := make([]byte, len(e.content))
	copy(content, e.content)
	return content, nil
}

func (s *Store) DeleteNote(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return remote.ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

// Len reports how many entries the store holds.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
