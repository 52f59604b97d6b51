package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
)

// GCSStore reads exported objects from a Google Cloud Storage bucket
type GCSStore struct {
	client *gcs.Client
	bucket string
}

// NewGCSStore creates a store backed by bucket using application default credentials
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	log.Info().Str("bucket", bucket).Msg("GCS destination store initialized")

	return &GCSStore{client: client, bucket: bucket}, nil
}

// Close releases the underlying storage client
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// Exists lists at most one object under prefix
func (s *GCSStore) Exists(ctx context.Context, prefix string) (bool, error) {
	query := &gcs.Query{Prefix: ensureTrailingSlash(prefix)}
	if err := query.SetAttrSelection([]string{"Name"}); err != nil {
		return false, fmt.Errorf("failed to build query: %w", err)
	}

	it := s.client.Bucket(s.bucket).Objects(ctx, query)
	_, err := it.Next()
	if errors.Is(err, iterator.Done) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	return true, nil
}

// Latest scans every object under prefix and returns the most recently updated one
func (s *GCSStore) Latest(ctx context.Context, prefix string) (Object, error) {
	query := &gcs.Query{Prefix: ensureTrailingSlash(prefix)}
	if err := query.SetAttrSelection([]string{"Name", "Size", "Updated"}); err != nil {
		return Object{}, fmt.Errorf("failed to build query: %w", err)
	}

	var latest Object
	found := false
	it := s.client.Bucket(s.bucket).Objects(ctx, query)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return Object{}, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		if !found || attrs.Updated.After(latest.Updated) {
			latest = Object{Key: attrs.Name, Size: attrs.Size, Updated: attrs.Updated}
			found = true
		}
	}

	if !found {
		return Object{}, fmt.Errorf("%s: %w", prefix, ErrObjectNotFound)
	}
	return latest, nil
}

// Read downloads the object at key
func (s *GCSStore) Read(ctx context.Context, key string) ([]byte, error) {
	reader, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}
