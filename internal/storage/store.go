package storage

import (
	"context"
	"errors"
	"time"
)

// ErrObjectNotFound is returned when no object exists under a key or prefix
var ErrObjectNotFound = errors.New("object not found")

// Object describes one stored object
type Object struct {
	Key     string
	Size    int64
	Updated time.Time
}

// Store is the destination store the scrape service exports into.
// The backfill only reads from it: existence checks for resume and
// read-back of the shared events payload.
type Store interface {
	// Exists reports whether at least one object is stored under prefix
	Exists(ctx context.Context, prefix string) (bool, error)
	// Latest returns the most recently written object under prefix
	Latest(ctx context.Context, prefix string) (Object, error)
	// Read returns the full contents of the object at key
	Read(ctx context.Context, key string) ([]byte, error)
}

// ReadLatest reads the most recently written object under prefix
func ReadLatest(ctx context.Context, s Store, prefix string) ([]byte, Object, error) {
	obj, err := s.Latest(ctx, prefix)
	if err != nil {
		return nil, Object{}, err
	}
	data, err := s.Read(ctx, obj.Key)
	if err != nil {
		return nil, obj, err
	}
	return data, obj, nil
}
