package rotation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps the map as one JSON document on disk.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created on the
// first Persist; a missing file loads as an empty map.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// LoadAll reads the whole file.
func (s *FileStore) LoadAll(ctx context.Context) (Map, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Map{}, nil
	}
	if err != nil {
		return nil, loadErr("file", err)
	}
	if len(data) == 0 {
		return Map{}, nil
	}

	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, loadErr("file", fmt.Errorf("decode %s: %w", s.path, err))
	}
	return m, nil
}

// Persist writes the map atomically: temp file in the same directory, then
// rename over the old file.
func (s *FileStore) Persist(ctx context.Context, m Map) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return persistErr("file", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return persistErr("file", err)
	}

	tmp, err := os.CreateTemp(dir, ".rotation-*.json")
	if err != nil {
		return persistErr("file", err)
	}
	tmpName := tmp.Name()
	// No-op once the rename succeeds.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return persistErr("file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return persistErr("file", err)
	}
	if err := tmp.Close(); err != nil {
		return persistErr("file", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return persistErr("file", err)
	}
	return nil
}
