package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GCSStore keeps certificate files in a Cloud Storage bucket
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
}

// NewGCSStore opens the bucket with application default credentials
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("storage bucket is required for the gcs backend")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &GCSStore{
		client: client,
		bucket: client.Bucket(bucket),
		name:   bucket,
	}, nil
}

// PutIfAbsent writes the object with a does-not-exist precondition. A failed
// precondition means the object is already there and is not an error.
func (s *GCSStore) PutIfAbsent(ctx context.Context, name string, data []byte, contentType string) (string, bool, error) {
	objectURL := s.objectURL(name)

	writer := s.bucket.Object(name).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		_ = writer.Close()
		if isPreconditionFailed(err) {
			return objectURL, false, nil
		}
		return "", false, fmt.Errorf("write object %s: %w", name, err)
	}

	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			return objectURL, false, nil
		}
		return "", false, fmt.Errorf("finalize object %s: %w", name, err)
	}
	return objectURL, true, nil
}

// Close releases the storage client
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) objectURL(name string) string {
	return (&url.URL{
		Scheme: "https",
		Host:   "storage.googleapis.com",
		Path:   "/" + s.name + "/" + name,
	}).String()
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
