// Package storage persists raw and derived attachment bytes in a GCS bucket
// through the Firebase app client. Object paths are deterministic, so
// re-uploads are idempotent overwrites.
package storage

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFilename strips path separators and anything else unsafe for an
// object key.
func SanitizeFilename(name string) string {
	cleaned := strings.TrimSpace(name)
	cleaned = strings.ReplaceAll(cleaned, "\\", "_")
	cleaned = strings.ReplaceAll(cleaned, "/", "_")
	cleaned = unsafeChars.ReplaceAllString(cleaned, "_")
	if cleaned == "" {
		return "file"
	}
	return cleaned
}

// BuildObjectPath is the deterministic layout for one asset of one snapshot.
func BuildObjectPath(accountID, boardID, itemID, snapshotVersion, assetID, filename string) string {
	return fmt.Sprintf("monday/%s/%s/%s/%s/%s/%s",
		accountID, boardID, itemID, snapshotVersion, assetID, filename)
}

// ObjectStore is the durable store consumed by the sync pipeline and the
// signed-url endpoint.
type ObjectStore interface {
	Upload(ctx context.Context, path string, r io.Reader, contentType string) error
	SignedURL(path string, ttl time.Duration) (string, error)
}

// GCSStore implements ObjectStore on a single GCS bucket.
type GCSStore struct {
	bucket *gcs.BucketHandle
}

func NewGCSStore(ctx context.Context, bucketName, credentialsFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{StorageBucket: bucketName}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket %s: %w", bucketName, err)
	}

	return &GCSStore{bucket: bucket}, nil
}

// Upload streams r into the bucket at path. Writing to an existing path
// overwrites it, which is exactly what snapshot re-ingestion wants.
func (s *GCSStore) Upload(ctx context.Context, path string, r io.Reader, contentType string) error {
	w := s.bucket.Object(path).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("failed to write object %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize object %s: %w", path, err)
	}
	return nil
}

// SignedURL returns a time-limited download URL for one object.
func (s *GCSStore) SignedURL(path string, ttl time.Duration) (string, error) {
	url, err := s.bucket.SignedURL(path, &gcs.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign url for %s: %w", path, err)
	}
	return url, nil
}
