package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FileSource reads import files from disk. With a root, names are resolved
// inside it and may not escape it.
type FileSource struct {
	root string
}

// NewFileSource creates a FileSource. An empty root accepts any path.
func NewFileSource(root string) *FileSource {
	return &FileSource{root: root}
}

func (s *FileSource) resolve(name string) (string, error) {
	if name == "" {
		return "", errors.New("file name is required")
	}
	if s.root == "" {
		return name, nil
	}
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("file %q is outside the import directory", name)
	}
	return filepath.Join(s.root, name), nil
}

// Open opens the named file
func (s *FileSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("open import file: %w", err)
	}
	return f, nil
}

// Exists reports whether the named regular file exists
func (s *FileSource) Exists(_ context.Context, name string) (bool, error) {
	path, err := s.resolve(name)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat import file: %w", err)
	}
	return info.Mode().IsRegular(), nil
}

var _ Source = (*FileSource)(nil)
