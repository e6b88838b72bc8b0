// Package googledrive implements remote.Store against the Google Drive
// v3 API. Folder search, listing, download and delete ride the generated
// Drive client; note uploads speak the resumable upload protocol
// directly (see upload.go) because the generated surface hides the
// session URL the protocol requires to be observable.
package googledrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/notemirror/notemirror/internal/remote"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	mdExt      = ".md"
	folderMIME = "application/vnd.google-apps.folder"
	noteMIME   = "text/markdown"

	defaultUploadBase  = "https://www.googleapis.com/upload/drive/v3"
	defaultSettleDelay = time.Second
)

// toDriveName appends the .md extension for storage on Google Drive.
func toDriveName(title string) string {
	if strings.HasSuffix(title, mdExt) {
		return title
	}
	return title + mdExt
}

// fromDriveName strips the .md extension when mapping back to a title.
func fromDriveName(name string) string {
	return strings.TrimSuffix(name, mdExt)
}

// escapeQuery escapes single quotes for interpolation into a Drive
// query string.
func escapeQuery(s string) string {
	return strings.ReplaceAll(s, `'`, `\'`)
}

// Store implements remote.Store for Google Drive.
type Store struct {
	service *drive.Service
	client  *http.Client

	// uploadBase and settleDelay are overridden by tests; settleDelay
	// gives Drive time to register freshly created metadata before the
	// fallback content write.
	uploadBase  string
	settleDelay time.Duration
}

// NewStore creates a Store. client must be an authenticated http.Client
// carrying the account's credentials; extra options are passed through
// to the Drive service (tests use option.WithEndpoint).
func NewStore(ctx context.Context, client *http.Client, opts ...option.ClientOption) (*Store, error) {
	all := append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	srv, err := drive.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive client: %w", err)
	}
	return &Store{
		service:     srv,
		client:      client,
		uploadBase:  defaultUploadBase,
		settleDelay: defaultSettleDelay,
	}, nil
}

// FindFolder searches for a folder by name. With a parentID the search
// is scoped to that parent's direct children.
func (s *Store) FindFolder(ctx context.Context, name, parentID string) (*remote.FolderRef, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escapeQuery(name), folderMIME)
	if parentID != "" {
		q += fmt.Sprintf(" and '%s' in parents", escapeQuery(parentID))
	}

	r, err := s.service.Files.List().
		Context(ctx).
		Q(q).
		Spaces("drive").
		PageSize(10).
		Fields("files(id, name)").
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to search for folder: %w", mapErr(err))
	}
	if len(r.Files) == 0 {
		return nil, remote.ErrNotFound
	}

	f := r.Files[0]
	return &remote.FolderRef{ID: f.Id, Name: f.Name}, nil
}

// CreateFolder creates a folder under the given parent.
func (s *Store) CreateFolder(ctx context.Context, name, parentID string) (*remote.FolderRef, error) {
	f := &drive.File{
		Name:     name,
		MimeType: folderMIME,
	}
	if parentID != "" {
		f.Parents = []string{parentID}
	}

	res, err := s.service.Files.Create(f).
		Context(ctx).
		Fields("id, name").
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to create folder: %w", mapErr(err))
	}
	return &remote.FolderRef{ID: res.Id, Name: res.Name}, nil
}

// ListChildFolders enumerates the folders directly under parentID.
func (s *Store) ListChildFolders(ctx context.Context, parentID string) ([]remote.FolderRef, error) {
	q := fmt.Sprintf("'%s' in parents and mimeType = '%s' and trashed = false", escapeQuery(parentID), folderMIME)

	r, err := s.service.Files.List().
		Context(ctx).
		Q(q).
		Spaces("drive").
		Fields("files(id, name)").
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to list folders: %w", mapErr(err))
	}

	folders := []remote.FolderRef{}
	for _, f := range r.Files {
		folders = append(folders, remote.FolderRef{ID: f.Id, Name: f.Name})
	}
	return folders, nil
}

// ListChildFiles enumerates the note documents directly under parentID.
func (s *Store) ListChildFiles(ctx context.Context, parentID string) ([]remote.NoteRef, error) {
	q := fmt.Sprintf("'%s' in parents and mimeType != '%s' and trashed = false", escapeQuery(parentID), folderMIME)

	r, err := s.service.Files.List().
		Context(ctx).
		Q(q).
		Spaces("drive").
		Fields("files(id, name, md5Checksum)").
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to list files: %w", mapErr(err))
	}

	notes := []remote.NoteRef{}
	for _, f := range r.Files {
		notes = append(notes, remote.NoteRef{
			ID:    f.Id,
			Title: fromDriveName(f.Name),
			MD5:   f.Md5Checksum,
		})
	}
	return notes, nil
}

// DownloadNote retrieves a note's content bytes.
func (s *Store) DownloadNote(ctx context.Context, id string) ([]byte, error) {
	resp, err := s.service.Files.Get(id).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("unable to download note: %w", mapErr(err))
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read note content: %w", err)
	}
	return content, nil
}

// DeleteNote removes a note by id.
func (s *Store) DeleteNote(ctx context.Context, id string) error {
	if err := s.service.Files.Delete(id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("unable to delete note: %w", mapErr(err))
	}
	return nil
}

// mapErr translates googleapi errors into the remote taxonomy.
func mapErr(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		switch gErr.Code {
		case http.StatusUnauthorized:
			return &remote.AuthError{Op: "request", Err: err}
		case http.StatusNotFound:
			return remote.ErrNotFound
		}
		return &remote.APIError{StatusCode: gErr.Code, Message: gErr.Message}
	}
	return err
}
