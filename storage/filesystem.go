package storage

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
)

// Filesystem is a local-disk Storage, used for a single-process development receiver where a
// Redis/S3 deployment would be overkill. Root is the directory session files are written under.
type Filesystem struct {
	Root string
}

// NewFilesystem returns a Filesystem backend rooted at root. The directory is created lazily on
// first write.
func NewFilesystem(root string) *Filesystem {
	return &Filesystem{Root: root}
}

func (f *Filesystem) Read(ctx context.Context, key string) ([]byte, error) {
	filename := f.buildPath(key)

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil, ErrNotFound
	}

	return ioutil.ReadFile(filename)
}

func (f *Filesystem) Write(ctx context.Context, key string, value []byte, opts *Options) error {
	filename := f.buildPath(key)

	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}

	return ioutil.WriteFile(filename, value, 0644)
}

func (f *Filesystem) Remove(ctx context.Context, key string) error {
	err := os.Remove(f.buildPath(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (f *Filesystem) buildPath(key string) string {
	return filepath.Join(f.Root, key)
}
