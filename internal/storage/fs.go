package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// errStopWalk ends a directory walk early once a match is found
var errStopWalk = errors.New("stop walk")

// FSStore serves the same key layout from a local directory.
// Keys map to paths relative to the root.
type FSStore struct {
	root string
}

// NewFSStore creates a store rooted at dir
func NewFSStore(dir string) *FSStore {
	return &FSStore{root: dir}
}

func (s *FSStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Exists reports whether any regular file lives under prefix
func (s *FSStore) Exists(ctx context.Context, prefix string) (bool, error) {
	found := false
	err := s.walk(ctx, prefix, func(string, fs.FileInfo) error {
		found = true
		return errStopWalk
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// Latest returns the file under prefix with the newest modification time
func (s *FSStore) Latest(ctx context.Context, prefix string) (Object, error) {
	var latest Object
	found := false
	err := s.walk(ctx, prefix, func(key string, info fs.FileInfo) error {
		if !found || info.ModTime().After(latest.Updated) {
			latest = Object{Key: key, Size: info.Size(), Updated: info.ModTime()}
			found = true
		}
		return nil
	})
	if err != nil {
		return Object{}, err
	}
	if !found {
		return Object{}, fmt.Errorf("%s: %w", prefix, ErrObjectNotFound)
	}
	return latest, nil
}

// Read returns the file contents for key
func (s *FSStore) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// Write stores data at key, creating parent directories
func (s *FSStore) Write(key string, data []byte) error {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// walk visits every regular file below prefix. A missing prefix directory is not
// an error; entries removed while the walk is running are skipped.
func (s *FSStore) walk(ctx context.Context, prefix string, visit func(key string, info fs.FileInfo) error) error {
	dir := s.path(strings.TrimSuffix(ensureTrailingSlash(prefix), "/"))

	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to list %s: %w", prefix, err)
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path != dir && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		return visit(filepath.ToSlash(rel), info)
	})

	if errors.Is(err, errStopWalk) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	return nil
}
