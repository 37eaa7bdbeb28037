package model

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DocumentKind is the subtype hint forwarded to the OCR and visual services
type DocumentKind string

const (
	KindScanned DocumentKind = "scanned" // Photographed or scanned paper certificate
	KindNormal  DocumentKind = "normal"  // Digitally produced certificate
)

// ParseDocumentKind parses a subtype hint. The empty string is allowed and means "not supplied".
func ParseDocumentKind(s string) (DocumentKind, error) {
	switch DocumentKind(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", nil
	case KindScanned:
		return KindScanned, nil
	case KindNormal:
		return KindNormal, nil
	default:
		return "", fmt.Errorf("unknown document type %q (supported: scanned, normal)", s)
	}
}

// Document is an uploaded certificate held in memory for one verification run
type Document struct {
	Name        string       `json:"name"`                   // Original file name
	Content     []byte       `json:"-"`                      // Raw bytes (image or PDF)
	Kind        DocumentKind `json:"kind,omitempty"`         // scanned | normal
	ContentType string       `json:"content_type,omitempty"` // MIME type if known
}

// Empty reports whether the document carries no content
func (d Document) Empty() bool {
	return len(d.Content) == 0
}

// IsPDF reports whether the document looks like a PDF (by magic bytes or extension)
func (d Document) IsPDF() bool {
	if len(d.Content) >= 5 && string(d.Content[:5]) == "%PDF-" {
		return true
	}
	return strings.EqualFold(filepath.Ext(d.Name), ".pdf")
}

// OcrResult holds the recognized text of a document, one entry per page in page order
type OcrResult struct {
	Pages []string `json:"pages"`
}

// Text joins all pages with newline separators. Zero pages yields the empty string.
func (r OcrResult) Text() string {
	return strings.Join(r.Pages, "\n")
}

// DocumentInfo is the report-safe description of a document (no content)
type DocumentInfo struct {
	Name string       `json:"name"`
	Kind DocumentKind `json:"kind,omitempty"`
	Size int          `json:"size_bytes"`
}

// Info returns the report-safe description of the document
func (d Document) Info() DocumentInfo {
	return DocumentInfo{Name: d.Name, Kind: d.Kind, Size: len(d.Content)}
}
