package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// FSStore serves objects from a filesystem. Keys are file paths.
type FSStore struct {
	fs afero.Fs
}

// NewFSStore creates a store on top of any afero filesystem.
func NewFSStore(fsys afero.Fs) *FSStore {
	return &FSStore{fs: fsys}
}

// NewOSStore creates a store on the local filesystem.
func NewOSStore() *FSStore {
	return NewFSStore(afero.NewOsFs())
}

// List walks the directory containing prefix and returns every regular
// file whose path starts with prefix. As with S3, the prefix need not end
// at a path separator.
func (s *FSStore) List(ctx context.Context, prefix string) ([]Object, error) {
	root := prefix
	if info, err := s.fs.Stat(prefix); err != nil || !info.IsDir() {
		root = filepath.Dir(prefix)
	}

	var objects []Object
	err := afero.Walk(s.fs, root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if info.IsDir() || !strings.HasPrefix(p, filepath.Clean(prefix)) {
			return nil
		}
		objects = append(objects, Object{Key: p, Size: info.Size()})
		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// Open opens a file.
func (s *FSStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := s.fs.Open(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, err
	}
	return f, nil
}

// Put writes a file, creating parent directories as needed.
func (s *FSStore) Put(_ context.Context, key string, r io.Reader) error {
	if err := s.fs.MkdirAll(filepath.Dir(key), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}
	f, err := s.fs.Create(key)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", key, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return f.Close()
}
