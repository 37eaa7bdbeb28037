package storage

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/ppiankov/certverify/internal/model"
)

// ObjectStore holds certificate files
type ObjectStore interface {
	// PutIfAbsent stores data under name unless an object already exists there.
	// It returns the object's URL and whether it was created by this call.
	PutIfAbsent(ctx context.Context, name string, data []byte, contentType string) (objectURL string, created bool, err error)
}

// Registry records the certificates known to the system
type Registry interface {
	// Save records a certificate. A record whose ID is already known is kept
	// as it is, so saving the same record twice is harmless.
	Save(ctx context.Context, record model.CertificateRecord) error
	List(ctx context.Context) ([]model.CertificateRecord, error)
}

// Certificate file types derived from a URL
const (
	TypePDF     = "pdf"
	TypeImage   = "image"
	TypeUnknown = "unknown"
)

// ClassifyURL derives a certificate's file type from its URL extension
func ClassifyURL(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}

	switch strings.ToLower(strings.TrimPrefix(path.Ext(p), ".")) {
	case "pdf":
		return TypePDF
	case "jpg", "jpeg", "png":
		return TypeImage
	default:
		return TypeUnknown
	}
}

// withTypes fills in the classified type of every record
func withTypes(records []model.CertificateRecord) []model.CertificateRecord {
	for i := range records {
		records[i].Type = ClassifyURL(records[i].URL)
	}
	return records
}
