package remote

import (
	"context"
	"strings"
)

// FolderRef identifies a folder on the remote store.
type FolderRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NoteRef describes a note document on the remote store. MD5 is the
// content checksum reported by the store's listing, when it reports one;
// it is empty otherwise and hash comparison falls back to the engine's
// cached local-origin hashes.
type NoteRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	MD5   string `json:"md5Checksum,omitempty"`
}

// UploadRequest carries one note upload. An empty NoteID creates a new
// document; a non-empty NoteID updates the existing one in place.
type UploadRequest struct {
	NoteID   string
	Title    string
	Content  string
	ParentID string
}

// Store defines the interface for the remote object store.
// This abstraction allows switching between providers (Google Drive,
// the in-memory fake used by tests) without changing the sync engine.
type Store interface {
	// FindFolder searches for a folder by name. An empty parentID
	// searches the whole drive; at most the first match is returned.
	// Returns ErrNotFound when no folder matches.
	FindFolder(ctx context.Context, name, parentID string) (*FolderRef, error)

	// CreateFolder creates a folder under the given parent. An empty
	// parentID creates it at the top level.
	CreateFolder(ctx context.Context, name, parentID string) (*FolderRef, error)

	// UploadNote writes a note via the two-phase resumable protocol:
	// metadata first, then the content bytes. Content failing the
	// validation guard is rejected with ValidationError before any
	// request is made.
	UploadNote(ctx context.Context, up UploadRequest) (*NoteRef, error)

	// ListChildFolders enumerates the folders directly under parentID,
	// one level only.
	ListChildFolders(ctx context.Context, parentID string) ([]FolderRef, error)

	// ListChildFiles enumerates the non-folder documents directly under
	// parentID, one level only.
	ListChildFiles(ctx context.Context, parentID string) ([]NoteRef, error)

	// DownloadNote retrieves a note's content bytes by id.
	DownloadNote(ctx context.Context, id string) ([]byte, error)

	// DeleteNote removes a note by id.
	DeleteNote(ctx context.Context, id string) error
}

// ValidateUpload is the guard every Store implementation applies before
// touching the network. Empty content, whitespace-only content, and
// content that is just the title echoed back indicate an upstream
// data-passing bug rather than a legitimate empty note.
func ValidateUpload(up UploadRequest) error {
	if up.Content == "" {
		return &ValidationError{Reason: "note content is empty"}
	}
	trimmed := strings.TrimSpace(up.Content)
	if trimmed == "" {
		return &ValidationError{Reason: "note content is only whitespace"}
	}
	if trimmed == strings.TrimSpace(up.Title) {
		return &ValidationError{Reason: "note content is just the title"}
	}
	return nil
}
