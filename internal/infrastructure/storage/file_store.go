package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"portfolio_tracker/internal/app/port"
)

const (
	filePerm = 0o600
	dirPerm  = 0o700
)

// FileStorage keeps every state record in its own JSON file under dir.
type FileStorage struct {
	dir string
	mu  sync.Mutex
}

// NewFileStorage creates dir if needed and returns a storage rooted at it.
func NewFileStorage(dir string) (port.StateStorage, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("storage dir cannot be empty")
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
	}
	return &FileStorage{dir: dir}, nil
}

func (s *FileStorage) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid state key %q", key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}

// Load implements port.StateStorage.
func (s *FileStorage) Load(_ context.Context, key string) ([]byte, bool, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	return data, true, nil
}

// Save implements port.StateStorage. The file is replaced atomically.
func (s *FileStorage) Save(_ context.Context, key string, data []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return atomicWriteFile(path, data, filePerm)
}

func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	_ = os.Remove(tmp)

	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("write tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
