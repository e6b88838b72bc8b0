package googledrive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/notemirror/notemirror/internal/remote"
)

// uploadMetadata is the file resource sent in the first phase of an
// upload. Parents may only be set when creating; Drive rejects it on
// updates.
type uploadMetadata struct {
	Name     string   `json:"name"`
	MimeType string   `json:"mimeType"`
	Parents  []string `json:"parents,omitempty"`
}

// uploadedFile is the slice of the file resource we read back from
// upload responses.
type uploadedFile struct {
	ID string `json:"id"`
}

// UploadNote writes a note to Drive using the resumable upload
// protocol. The request is validated before any network traffic. Phase
// one sends metadata; when Drive answers with an upload session URL the
// content is written there, otherwise the content is written to the
// file id from the response body after a short settle delay.
func (s *Store) UploadNote(ctx context.Context, up remote.UploadRequest) (*remote.NoteRef, error) {
	if err := remote.ValidateUpload(up); err != nil {
		return nil, err
	}

	sessionURL, fileID, err := s.beginUpload(ctx, up)
	if err != nil {
		return nil, err
	}

	switch {
	case sessionURL != "":
		id, err := s.uploadToSession(ctx, sessionURL, up.Content)
		if err != nil {
			return nil, err
		}
		if id == "" {
			id = fileID
		}
		return &remote.NoteRef{ID: id, Title: up.Title}, nil

	case fileID != "":
		// Drive sometimes acknowledges the metadata request with the
		// file resource instead of a session URL. Give it a moment to
		// register the file, then write the content directly.
		if err := s.settle(ctx); err != nil {
			return nil, err
		}
		if err := s.uploadMedia(ctx, fileID, up.Content); err != nil {
			return nil, err
		}
		return &remote.NoteRef{ID: fileID, Title: up.Title}, nil

	default:
		return nil, &remote.ProtocolError{Message: "upload response carried neither a session URL nor a file id"}
	}
}

// beginUpload performs the metadata phase and reports the session URL
// and/or file id Drive answered with.
func (s *Store) beginUpload(ctx context.Context, up remote.UploadRequest) (sessionURL, fileID string, err error) {
	meta := uploadMetadata{
		Name:     toDriveName(up.Title),
		MimeType: noteMIME,
	}

	method := http.MethodPost
	url := s.uploadBase + "/files?uploadType=resumable"
	if up.NoteID != "" {
		method = http.MethodPatch
		url = fmt.Sprintf("%s/files/%s?uploadType=resumable", s.uploadBase, up.NoteID)
	} else if up.ParentID != "" {
		meta.Parents = []string{up.ParentID}
	}

	body, err := json.Marshal(meta)
	if err != nil {
		return "", "", fmt.Errorf("unable to encode upload metadata: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("unable to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Type", noteMIME)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("unable to start upload: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "start upload"); err != nil {
		return "", "", err
	}

	if loc := resp.Header.Get("Location"); loc != "" {
		return loc, "", nil
	}

	var f uploadedFile
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil || f.ID == "" {
		return "", "", nil
	}
	return "", f.ID, nil
}

// uploadToSession writes the content bytes to a resumable upload
// session and returns the file id from the final response.
func (s *Store) uploadToSession(ctx context.Context, sessionURL, content string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, sessionURL, strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("unable to build content request: %w", err)
	}
	req.Header.Set("Content-Type", noteMIME+"; charset=utf-8")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("unable to upload note content: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "upload content"); err != nil {
		return "", err
	}

	var f uploadedFile
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return "", nil
	}
	return f.ID, nil
}

// uploadMedia writes the content bytes directly to an existing file.
func (s *Store) uploadMedia(ctx context.Context, fileID, content string) error {
	url := fmt.Sprintf("%s/files/%s?uploadType=media", s.uploadBase, fileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, strings.NewReader(content))
	if err != nil {
		return fmt.Errorf("unable to build content request: %w", err)
	}
	req.Header.Set("Content-Type", noteMIME+"; charset=utf-8")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("unable to upload note content: %w", err)
	}
	defer resp.Body.Close()

	return checkStatus(resp, "upload content")
}

// settle pauses for the configured delay, honoring cancellation.
func (s *Store) settle(ctx context.Context) error {
	if s.settleDelay <= 0 {
		return nil
	}
	select {
	case <-time.After(s.settleDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// checkStatus maps a non-2xx upload response into the remote taxonomy.
func checkStatus(resp *http.Response, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return &remote.AuthError{Op: op, Err: fmt.Errorf("server returned %s", resp.Status)}
	}
	return &remote.APIError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp)}
}

// readErrorMessage extracts the error message from a Drive error body,
// falling back to the raw body text.
func readErrorMessage(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(raw) == 0 {
		return resp.Status
	}

	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return strings.TrimSpace(string(raw))
}
