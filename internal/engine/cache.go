package engine

// noteKey scopes a note title to its folder so equal titles in
// different folders stay distinct.
type noteKey struct {
	folder string
	title  string
}

// noteEntry is the cached identity of one remote note: its object id
// and the content hash of the last known-synced copy.
type noteEntry struct {
	id   string
	hash string
}

// StructureCache maps local names onto remote ids for one sync session.
// It is owned by a single run and never shared across goroutines, so it
// needs no locking. A fresh cache is built for every session to keep
// stale ids from leaking between runs.
type StructureCache struct {
	folders map[string]string
	notes   map[noteKey]noteEntry
}

// NewStructureCache returns an empty cache.
func NewStructureCache() *StructureCache {
	return &StructureCache{
		folders: make(map[string]string),
		notes:   make(map[noteKey]noteEntry),
	}
}

// FolderID returns the remote id recorded for a folder name.
func (c *StructureCache) FolderID(name string) (string, bool) {
	id, ok := c.folders[name]
	return id, ok
}

// PutFolder records a folder's remote id.
func (c *StructureCache) PutFolder(name, id string) {
	c.folders[name] = id
}

// Note returns the remote id and last-synced content hash recorded for
// a note.
func (c *StructureCache) Note(folder, title string) (id, hash string, ok bool) {
	entry, ok := c.notes[noteKey{folder, title}]
	return entry.id, entry.hash, ok
}

// PutNote records a note's remote id and content hash.
func (c *StructureCache) PutNote(folder, title, id, hash string) {
	c.notes[noteKey{folder, title}] = noteEntry{id: id, hash: hash}
}

// Clear drops everything the cache has learned.
func (c *StructureCache) Clear() {
	c.folders = make(map[string]string)
	c.notes = make(map[noteKey]noteEntry)
}
