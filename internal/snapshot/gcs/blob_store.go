// Package gcs provides a snapshot store backed by Google Cloud Storage.
package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
}

// BlobStore writes markup snapshots to a configured GCS bucket.
type BlobStore struct {
	client *storage.Client
	bucket string
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// Put uploads data to the configured bucket and returns a gs:// URI.
func (s *BlobStore) Put(ctx context.Context, path string, contentType string, data []byte) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	writer := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	// Snapshots are content-addressed under jobID/hash.html and never
	// rewritten once uploaded.
	writer.CacheControl = "public, max-age=31536000, immutable"
	if jobID, hash, ok := splitSnapshotPath(path); ok {
		writer.Metadata = map[string]string{
			"job-id":       jobID,
			"content-hash": hash,
		}
	}
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, path), nil
}

// splitSnapshotPath decomposes a jobID/hash.ext object path into its job ID
// and content hash. Paths in any other shape yield ok=false.
func splitSnapshotPath(path string) (jobID, hash string, ok bool) {
	jobID, file, found := strings.Cut(path, "/")
	if !found || jobID == "" || strings.Contains(file, "/") {
		return "", "", false
	}
	hash = strings.TrimSuffix(file, ".html")
	if hash == "" {
		return "", "", false
	}
	return jobID, hash, true
}
