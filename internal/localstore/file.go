package localstore

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// FileBackend stores each key as a JSON file in a directory.
type FileBackend struct {
	fs       afero.Fs
	basePath string
}

// NewFileBackend creates a FileBackend and ensures the base directory exists.
func NewFileBackend(fs afero.Fs, basePath string) (*FileBackend, error) {
	if err := fs.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}
	return &FileBackend{fs: fs, basePath: basePath}, nil
}

// keyPath escapes the key so week names like "Week - 1" and user ids are safe
// as file names.
func (b *FileBackend) keyPath(key string) string {
	return filepath.Join(b.basePath, url.PathEscape(key)+".json")
}

func (b *FileBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := afero.ReadFile(b.fs, b.keyPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, true, nil
}

// Put writes through a temporary file so a crash never leaves half a value.
func (b *FileBackend) Put(_ context.Context, key string, value []byte) error {
	path := b.keyPath(key)
	tmp := path + ".tmp"
	if err := afero.WriteFile(b.fs, tmp, value, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := b.fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", key, err)
	}
	return nil
}

func (b *FileBackend) Delete(_ context.Context, key string) error {
	if err := b.fs.Remove(b.keyPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}
