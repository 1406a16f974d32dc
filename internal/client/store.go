package client

import (
	"encoding/json"
	"os"
	"path/filepath"

	"lsat-session-service/internal/domain"
)

// FileCache persists a tests mapping to a single JSON file, the desktop
// analog of the browser tool's fixed local-storage key. A participant's
// pre-join snapshot lands here so it survives a client restart.
type FileCache struct {
	path string
}

func NewFileCache(path string) *FileCache {
	return &FileCache{path: path}
}

// Save writes the mapping atomically (temp file plus rename).
func (c *FileCache) Save(tests domain.Tests) error {
	data, err := json.MarshalIndent(tests, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

// Load reads the mapping back; a missing file is an empty mapping.
func (c *FileCache) Load() (domain.Tests, error) {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return domain.Tests{}, nil
	}
	if err != nil {
		return nil, err
	}
	var tests domain.Tests
	if err := json.Unmarshal(data, &tests); err != nil {
		return nil, err
	}
	if tests == nil {
		tests = domain.Tests{}
	}
	return tests, nil
}
