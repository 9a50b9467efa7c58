package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/img-relay/pkg/utils"
)

const fileStoreExt = ".jpg"

// FileStore keeps each entry as <dir>/<key>.jpg
type FileStore struct {
	dir string
	log *logrus.Entry
}

// NewFileStore creates dir if needed and returns a store rooted there
func NewFileStore(dir string, log *logrus.Entry) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: file store directory is empty", utils.ErrFilesystem)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create cache directory %s: %w", utils.ErrFilesystem, dir, err)
	}
	log.Infof("Image cache directory: %s", dir)
	return &FileStore{dir: dir, log: log}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+fileStoreExt)
}

// Exists implements BlobStore
func (s *FileStore) Exists(_ context.Context, key string) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("%w: stat %s: %w", utils.ErrFilesystem, key, err)
}

// Get implements BlobStore
func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", utils.ErrCacheMiss, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", utils.ErrFilesystem, key, err)
	}
	return data, nil
}

// Put implements BlobStore. The entry appears atomically: data goes to a
// temp file in the same directory and is renamed into place.
func (s *FileStore) Put(_ context.Context, key string, data []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, "."+key+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp for %s: %w", utils.ErrFilesystem, key, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: write %s: %w", utils.ErrFilesystem, key, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: close %s: %w", utils.ErrFilesystem, key, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		s.log.Debugf("chmod %s: %v", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		cleanup()
		return fmt.Errorf("%w: rename %s: %w", utils.ErrFilesystem, key, err)
	}
	return nil
}

// Close implements BlobStore
func (s *FileStore) Close() error { return nil }
