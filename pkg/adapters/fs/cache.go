package fs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// indexEntry locates one annotation file.
type indexEntry struct {
	DocumentID string `json:"documentId"`
	Path       string `json:"path"` // relative to the store root, slash separated
}

// index is the persisted lookup table, keyed by annotation id.
type index struct {
	Version int                    `json:"version"`
	Entries map[string]*indexEntry `json:"entries"`
	dirty   bool
	mu      sync.RWMutex
}

// cache maps annotation ids to their files so Get avoids a directory scan.
// It is advisory: a stale or missing entry falls back to a glob.
type cache struct {
	Path  string
	index *index
}

func newCache(root, systemDir string) *cache {
	return &cache{
		Path: filepath.Join(root, systemDir, "index.json"),
		index: &index{
			Version: 1,
			Entries: make(map[string]*indexEntry),
		},
	}
}

// Load reads the index from disk. A missing or corrupt file yields an empty index.
func (c *cache) Load() error {
	c.index.mu.Lock()
	defer c.index.mu.Unlock()

	data, err := os.ReadFile(c.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}

	if err := json.Unmarshal(data, c.index); err != nil || c.index.Entries == nil {
		c.index.Entries = make(map[string]*indexEntry)
	}
	c.index.dirty = false
	return nil
}

// Save persists the index when it changed since the last Load or Save.
func (c *cache) Save() error {
	c.index.mu.RLock()
	if !c.index.dirty {
		c.index.mu.RUnlock()
		return nil
	}
	data, err := json.MarshalIndent(c.index, "", "  ")
	c.index.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := writeFileAtomic(c.Path, data, 0644); err != nil {
		return err
	}

	c.index.mu.Lock()
	c.index.dirty = false
	c.index.mu.Unlock()
	return nil
}

func (c *cache) Get(id string) (*indexEntry, bool) {
	c.index.mu.RLock()
	defer c.index.mu.RUnlock()
	e, ok := c.index.Entries[id]
	return e, ok
}

func (c *cache) Set(id string, e *indexEntry) {
	c.index.mu.Lock()
	defer c.index.mu.Unlock()
	if cur, ok := c.index.Entries[id]; ok && *cur == *e {
		return
	}
	c.index.Entries[id] = e
	c.index.dirty = true
}

func (c *cache) Delete(id string) {
	c.index.mu.Lock()
	defer c.index.mu.Unlock()
	if _, ok := c.index.Entries[id]; ok {
		delete(c.index.Entries, id)
		c.index.dirty = true
	}
}

// DeleteDocument drops every entry owned by docID.
func (c *cache) DeleteDocument(docID string) {
	c.index.mu.Lock()
	defer c.index.mu.Unlock()
	for id, e := range c.index.Entries {
		if e.DocumentID == docID {
			delete(c.index.Entries, id)
			c.index.dirty = true
		}
	}
}

// Prune drops entries not in keep.
func (c *cache) Prune(keep map[string]bool) {
	c.index.mu.Lock()
	defer c.index.mu.Unlock()
	for id := range c.index.Entries {
		if !keep[id] {
			delete(c.index.Entries, id)
			c.index.dirty = true
		}
	}
}

func (c *cache) Len() int {
	c.index.mu.RLock()
	defer c.index.mu.RUnlock()
	return len(c.index.Entries)
}
