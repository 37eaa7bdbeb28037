package ocr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/ppiankov/certverify/internal/model"
)

// TextLayerRecognizer reads the embedded text of digitally produced PDFs and
// sends everything else (scans, images, PDFs without text) to the service
type TextLayerRecognizer struct {
	fallback Recognizer
	log      *slog.Logger
}

// NewTextLayerRecognizer wraps fallback with local text-layer extraction
func NewTextLayerRecognizer(fallback Recognizer, log *slog.Logger) *TextLayerRecognizer {
	if log == nil {
		log = slog.Default()
	}
	return &TextLayerRecognizer{fallback: fallback, log: log}
}

// Recognize implements Recognizer
func (r *TextLayerRecognizer) Recognize(ctx context.Context, doc model.Document) (*model.OcrResult, error) {
	if doc.Kind == model.KindScanned || !doc.IsPDF() {
		return r.fallback.Recognize(ctx, doc)
	}

	pages, err := pdfTextLayer(doc.Content)
	if err != nil {
		r.log.Debug("text layer unreadable, using OCR service", "document", doc.Name, "error", err)
		return r.fallback.Recognize(ctx, doc)
	}
	if !hasText(pages) {
		r.log.Debug("no embedded text, using OCR service", "document", doc.Name)
		return r.fallback.Recognize(ctx, doc)
	}

	return &model.OcrResult{Pages: pages}, nil
}

// pdfTextLayer returns the plain text of every page, in page order
func pdfTextLayer(content []byte) (pages []string, err error) {
	// The parser panics on some malformed inputs
	defer func() {
		if p := recover(); p != nil {
			pages, err = nil, fmt.Errorf("parse pdf: %v", p)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	numPages := reader.NumPage()
	pages = make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, strings.TrimSpace(text))
	}
	return pages, nil
}

func hasText(pages []string) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}
