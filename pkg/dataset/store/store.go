// Package store abstracts the object storage the published dataset lives
// in: an S3-compatible service for shared deployments, or a local directory
// for development and tests.
//
// The publisher needs only three operations (get, put, list-by-prefix)
// and never deletes: dataset versions are immutable once written.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotFound is returned when an object key does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectStore is the minimal object storage surface used by the publisher.
type ObjectStore interface {
	// Get reads the object at key. Returns ErrNotFound if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put writes data at key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte) error

	// List returns all keys under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Open selects a backend from a dataset target: "s3://bucket/prefix" opens
// an S3 store using credentials from the environment, anything else is
// treated as a local directory.
func Open(target string) (ObjectStore, error) {
	if strings.HasPrefix(target, "s3://") {
		return NewS3FromEnv(target)
	}
	if target == "" {
		return nil, fmt.Errorf("dataset target is required")
	}
	return NewFSStore(target)
}

// FSStore keeps objects as files under a root directory, mimicking object
// store semantics for local targets and tests.
type FSStore struct {
	root string
}

// NewFSStore creates a directory-backed store rooted at dir.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{root: dir}, nil
}

// Get reads the file backing key.
func (s *FSStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return data, err
}

// Put writes key atomically: a temp file rename, so a crashed write never
// leaves a half-written object visible.
func (s *FSStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// List walks the tree under prefix and returns slash-separated keys.
func (s *FSStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return walkErr
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FSStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

var _ ObjectStore = (*FSStore)(nil)
