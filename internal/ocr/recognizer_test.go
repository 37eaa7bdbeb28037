package ocr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ppiankov/certverify/internal/cache"
	"github.com/ppiankov/certverify/internal/model"
)

// countingRecognizer implements Recognizer
type countingRecognizer struct {
	pages []string
	err   error
	calls int
}

func (c *countingRecognizer) Recognize(ctx context.Context, doc model.Document) (*model.OcrResult, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &model.OcrResult{Pages: c.pages}, nil
}

func TestTextLayerRecognizer_FallsBack(t *testing.T) {
	tests := []struct {
		name string
		doc  model.Document
	}{
		{"scanned pdf", model.Document{Name: "a.pdf", Content: []byte("%PDF-1.4"), Kind: model.KindScanned}},
		{"image", model.Document{Name: "a.png", Content: []byte{0x89, 'P', 'N', 'G'}, Kind: model.KindNormal}},
		{"unreadable pdf", model.Document{Name: "a.pdf", Content: []byte("%PDF-1.4 not really"), Kind: model.KindNormal}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fallback := &countingRecognizer{pages: []string{"from service"}}
			r := NewTextLayerRecognizer(fallback, nil)

			result, err := r.Recognize(context.Background(), tt.doc)
			if err != nil {
				t.Fatalf("Recognize failed: %v", err)
			}
			if fallback.calls != 1 || result.Text() != "from service" {
				t.Errorf("expected service result, got calls=%d text=%q", fallback.calls, result.Text())
			}
		})
	}
}

func TestHasText(t *testing.T) {
	if hasText([]string{"", "  \n"}) {
		t.Error("expected whitespace-only pages to have no text")
	}
	if !hasText([]string{"", "BACHELOR"}) {
		t.Error("expected text to be found")
	}
}

func TestCachingRecognizer(t *testing.T) {
	next := &countingRecognizer{pages: []string{"one", "two"}}
	r := NewCachingRecognizer(next, cache.NewMemoryCache(time.Minute, time.Minute), 0, nil)

	doc := model.Document{Name: "a.pdf", Content: []byte("%PDF-1.4 A"), Kind: model.KindScanned}

	for i := 0; i < 3; i++ {
		result, err := r.Recognize(context.Background(), doc)
		if err != nil {
			t.Fatalf("Recognize failed: %v", err)
		}
		if result.Text() != "one\ntwo" {
			t.Errorf("unexpected text %q", result.Text())
		}
	}
	if next.calls != 1 {
		t.Errorf("expected one upstream call, got %d", next.calls)
	}

	// Same bytes, different kind hint is a different entry
	doc.Kind = model.KindNormal
	if _, err := r.Recognize(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
	if next.calls != 2 {
		t.Errorf("expected kind to be part of the key, got %d calls", next.calls)
	}
}

func TestCachingRecognizer_DoesNotCacheErrors(t *testing.T) {
	next := &countingRecognizer{err: &model.OCRError{Message: "bad image"}}
	r := NewCachingRecognizer(next, cache.NewMemoryCache(time.Minute, time.Minute), 0, nil)
	doc := model.Document{Content: []byte("x")}

	for i := 0; i < 2; i++ {
		_, err := r.Recognize(context.Background(), doc)
		var ocrErr *model.OCRError
		if !errors.As(err, &ocrErr) {
			t.Fatalf("expected OCRError, got %v", err)
		}
	}
	if next.calls != 2 {
		t.Errorf("expected errors to bypass the cache, got %d calls", next.calls)
	}
}
