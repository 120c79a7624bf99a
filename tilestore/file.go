package tilestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hupe1980/tilecache/internal/fs"
)

// FileStore stores one file per tile under a root directory. Writes go to a
// temporary file that is synced and renamed into place.
type FileStore struct {
	root string
	fsys fs.FileSystem
}

// NewFileStore creates a FileStore rooted at root. fsys may be nil.
func NewFileStore(root string, fsys fs.FileSystem) *FileStore {
	if fsys == nil {
		fsys = fs.Default
	}
	return &FileStore{root: root, fsys: fsys}
}

func (s *FileStore) path(key Key) string {
	return filepath.Join(s.root, filepath.FromSlash(key.Path()))
}

func (s *FileStore) Get(ctx context.Context, key Key) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(s.fsys, s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *FileStore) Put(ctx context.Context, key Key, data []byte) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := s.path(key)
	dir := filepath.Dir(target)
	if err := s.fsys.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, tmp, err := s.fsys.CreateTemp(dir, ".tile-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = s.fsys.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync %s: %w", key, err)
	}
	if err = f.Close(); err != nil {
		return err
	}
	return s.fsys.Rename(tmp, target)
}

func (s *FileStore) Delete(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.fsys.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
