package persist

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"avaneesh/pnio-go/pkg/types"
)

const fileVersion = 1

type fileRecord struct {
	Version  int                   `yaml:"version"`
	Identity types.StationIdentity `yaml:"identity"`
}

// FileStore keeps the identity in a YAML file. Saves replace the file
// atomically so a power loss leaves either the old or the new identity.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store at path. The directory must exist.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("file store: path is required")
	}
	return &FileStore{path: path}, nil
}

// Load implements Store
func (s *FileStore) Load() (types.StationIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return types.StationIdentity{}, ErrNotFound
	}
	if err != nil {
		return types.StationIdentity{}, fmt.Errorf("read %s: %w", s.path, err)
	}
	var rec fileRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return types.StationIdentity{}, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if rec.Version != fileVersion {
		return types.StationIdentity{}, fmt.Errorf("%s: unsupported version %d", s.path, rec.Version)
	}
	return rec.Identity, nil
}

// Save implements Store
func (s *FileStore) Save(id types.StationIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(fileRecord{Version: fileVersion, Identity: id})
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".identity-*")
	if err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save identity: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("save identity: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

// Reset implements Store
func (s *FileStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reset identity: %w", err)
	}
	return nil
}

// Close implements Store
func (s *FileStore) Close() error { return nil }
