// Package history persists recently used paths and options across runs.
// The pipeline only hands paths in and out; where and how they are stored
// is owned entirely by this package.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// History holds the values remembered between runs.
type History struct {
	SourceDirectory  string    `json:"source_directory"`
	OutputDirectory  string    `json:"output_directory"`
	ArchiveDirectory string    `json:"archive_directory"`
	ArchiveFormat    string    `json:"archive_format"`
	Quality          int       `json:"quality"`
	Concurrency      int       `json:"concurrency"`
	DeleteOriginals  bool      `json:"delete_originals"`
	Recursive        bool      `json:"recursive"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Store loads and saves run history. Implementations own the persistence
// format and location.
type Store interface {
	Load() (*History, error)
	Save(*History) error
}

// FileStore keeps history as a JSON file.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the given file path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the stored history. A missing file yields an empty history,
// not an error.
func (s *FileStore) Load() (*History, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &History{}, nil
		}
		return nil, fmt.Errorf("read history file: %w", err)
	}

	var h History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("parse history file: %w", err)
	}
	return &h, nil
}

// Save writes the history, creating parent directories as needed.
func (s *FileStore) Save(h *History) error {
	h.UpdatedAt = time.Now()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write history file: %w", err)
	}
	return nil
}
