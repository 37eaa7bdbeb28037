package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ppiankov/certverify/internal/model"
)

// MemoryStore is an in-process ObjectStore
type MemoryStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string][]byte
}

// NewMemoryStore creates an empty store whose object URLs start with baseURL
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		objects: make(map[string][]byte),
	}
}

// PutIfAbsent implements ObjectStore
func (s *MemoryStore) PutIfAbsent(ctx context.Context, name string, data []byte, contentType string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	objectURL := s.baseURL + "/" + name
	if _, exists := s.objects[name]; exists {
		return objectURL, false, nil
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	s.objects[name] = stored
	return objectURL, true, nil
}

// Get returns a stored object
func (s *MemoryStore) Get(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[name]
	return data, ok
}

// MemoryRegistry is an in-process Registry
type MemoryRegistry struct {
	mu      sync.RWMutex
	records map[string]model.CertificateRecord
}

// NewMemoryRegistry creates an empty registry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{records: make(map[string]model.CertificateRecord)}
}

// Save implements Registry
func (r *MemoryRegistry) Save(ctx context.Context, record model.CertificateRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[record.ID]; !ok {
		r.records[record.ID] = record
	}
	return nil
}

// List implements Registry. Newest records come first.
func (r *MemoryRegistry) List(ctx context.Context) ([]model.CertificateRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	records := make([]model.CertificateRecord, 0, len(r.records))
	for _, rec := range r.records {
		records = append(records, rec)
	}
	r.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].FileName < records[j].FileName
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return withTypes(records), nil
}
