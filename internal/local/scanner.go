// Package local captures the on-disk notes tree as an immutable snapshot.
//
// A snapshot is taken once per sync session. The scanner walks exactly one
// folder level below the root: every top-level directory becomes a folder
// and every Markdown file inside it becomes a note. Deeper nesting and
// loose files at the root are ignored.
package local

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/notemirror/notemirror/internal/model"
)

const mdExt = ".md"

// Source produces the local snapshot a sync session works from.
type Source interface {
	Snapshot(ctx context.Context) (*model.Snapshot, error)
}

// DirScanner reads a notes directory from disk.
type DirScanner struct {
	root string
	md   goldmark.Markdown
}

// NewDirScanner creates a scanner rooted at the given directory.
func NewDirScanner(root string) *DirScanner {
	return &DirScanner{
		root: root,
		md:   goldmark.New(),
	}
}

// Snapshot walks one folder level below the root and returns the captured
// tree. Entries are ordered by name. Hidden entries are skipped.
func (s *DirScanner) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	dirs, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("unable to read notes root %s: %w", s.root, err)
	}

	snapshot := &model.Snapshot{}
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !dir.IsDir() || hidden(dir.Name()) {
			continue
		}
		folder, err := s.scanFolder(dir.Name())
		if err != nil {
			return nil, err
		}
		snapshot.Folders = append(snapshot.Folders, folder)
	}
	return snapshot, nil
}

func (s *DirScanner) scanFolder(name string) (model.Folder, error) {
	folder := model.Folder{Name: name}
	entries, err := os.ReadDir(filepath.Join(s.root, name))
	if err != nil {
		return folder, fmt.Errorf("unable to read folder %s: %w", name, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || hidden(entry.Name()) || filepath.Ext(entry.Name()) != mdExt {
			continue
		}
		content, err := os.ReadFile(filepath.Join(s.root, name, entry.Name()))
		if err != nil {
			return folder, fmt.Errorf("unable to read note %s: %w", entry.Name(), err)
		}
		title := s.titleFromContent(content)
		if title == "" {
			title = strings.TrimSuffix(entry.Name(), mdExt)
		}
		folder.Notes = append(folder.Notes, model.Note{
			Title:   title,
			Content: string(content),
		})
	}
	return folder, nil
}

// titleFromContent returns the text of the first heading in the document,
// or "" when the document has none.
func (s *DirScanner) titleFromContent(source []byte) string {
	doc := s.md.Parser().Parse(text.NewReader(source))

	var title string
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		title = headingText(heading, source)
		return ast.WalkStop, nil
	})
	return strings.TrimSpace(title)
}

// headingText collects the plain text of a heading, flattening any inline
// styling nodes.
func headingText(heading *ast.Heading, source []byte) string {
	var sb strings.Builder
	ast.Walk(heading, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if t, ok := n.(*ast.Text); ok {
				sb.Write(t.Segment.Value(source))
			}
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// ContentHash returns the hex MD5 digest of a note body, matching the
// checksum the remote store reports for uploaded content.
func ContentHash(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}
