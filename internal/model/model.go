package model

import "time"

// Token represents the OAuth2 credentials as persisted by a token store.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
}

// Empty reports whether the token carries no credentials at all.
func (t *Token) Empty() bool {
	return t == nil || (t.AccessToken == "" && t.RefreshToken == "")
}

// AccountToken represents a managed account's OAuth2 token stored in DynamoDB.
type AccountToken struct {
	AccountID             string    `json:"account_id" dynamodbav:"account_id"`
	EncryptedRefreshToken string    `json:"encrypted_refresh_token" dynamodbav:"encrypted_refresh_token"`
	RootFolderID          string    `json:"root_folder_id" dynamodbav:"root_folder_id"` // Remote root for the account
	UpdatedAt             time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// RunLock represents an active sync lease on an account.
type RunLock struct {
	AccountID string `json:"account_id" dynamodbav:"account_id"`
	OwnerID   string `json:"owner_id" dynamodbav:"owner_id"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix timestamp)
}

// Note is one titled document inside a snapshot folder.
type Note struct {
	Title   string
	Content string
}

// Folder is one named group of notes under the sync root.
type Folder struct {
	Name  string
	Notes []Note
}

// Snapshot is the local folder tree captured once at session start.
// The engine never re-reads it mid-session, so edits made while a sync
// is running are picked up by the next session.
type Snapshot struct {
	Folders []Folder
}

// NoteCount returns the total number of notes across all folders.
func (s *Snapshot) NoteCount() int {
	n := 0
	for _, f := range s.Folders {
		n += len(f.Notes)
	}
	return n
}

// PendingChange records a note whose upload failed and must be retried
// by the next session regardless of hash comparison.
type PendingChange struct {
	Folder    string    `json:"folder"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
}

// SyncState is the engine state persisted between sessions.
type SyncState struct {
	LastSync         time.Time       `json:"last_sync"`
	RootFolderID     string          `json:"root_folder_id,omitempty"`
	AutoSyncEnabled  bool            `json:"auto_sync_enabled"`
	AutoSyncInterval int             `json:"auto_sync_interval"` // minutes
	PendingChanges   []PendingChange `json:"pending_changes,omitempty"`
}
