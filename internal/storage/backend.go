package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ppiankov/certverify/internal/model"
)

// Backend bundles the ingester and registry of one configured storage backend
type Backend struct {
	Ingester *Ingester
	Registry Registry
	closers  []io.Closer
}

// Open builds the backend named by cfg.Backend: "memory" keeps everything in
// process, "gcs" uses a Cloud Storage bucket and a Firestore collection
func Open(ctx context.Context, cfg model.StorageConfig, maxEntryBytes int64, log *slog.Logger) (*Backend, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		registry := NewMemoryRegistry()
		store := NewMemoryStore("memory://" + cfg.Collection)
		return &Backend{
			Ingester: NewIngester(store, registry, cfg.Prefix, maxEntryBytes, log),
			Registry: registry,
		}, nil

	case "gcs":
		store, err := NewGCSStore(ctx, cfg.Bucket)
		if err != nil {
			return nil, err
		}
		registry, err := NewFirestoreRegistry(ctx, cfg.ProjectID, cfg.Collection)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		return &Backend{
			Ingester: NewIngester(store, registry, cfg.Prefix, maxEntryBytes, log),
			Registry: registry,
			closers:  []io.Closer{store, registry},
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: memory, gcs)", cfg.Backend)
	}
}

// Close releases backend clients
func (b *Backend) Close() error {
	var errs []error
	for _, c := range b.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
