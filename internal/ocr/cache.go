package ocr

import (
	"context"
	"log/slog"
	"time"

	"github.com/ppiankov/certverify/internal/cache"
	"github.com/ppiankov/certverify/internal/model"
)

// CachingRecognizer memoizes recognition results by document kind and content
type CachingRecognizer struct {
	next  Recognizer
	cache cache.Cache
	ttl   time.Duration
	log   *slog.Logger
}

// NewCachingRecognizer wraps next with c. A zero ttl uses the cache default.
func NewCachingRecognizer(next Recognizer, c cache.Cache, ttl time.Duration, log *slog.Logger) *CachingRecognizer {
	if log == nil {
		log = slog.Default()
	}
	return &CachingRecognizer{next: next, cache: c, ttl: ttl, log: log}
}

// Recognize implements Recognizer. Only successful results are cached.
func (r *CachingRecognizer) Recognize(ctx context.Context, doc model.Document) (*model.OcrResult, error) {
	key := cache.DocumentKey("ocr", []byte(doc.Kind), doc.Content)

	if hit, ok := cache.GetJSON[model.OcrResult](r.cache, key); ok {
		r.log.Debug("ocr cache hit", "document", doc.Name)
		return hit, nil
	}

	result, err := r.next.Recognize(ctx, doc)
	if err != nil {
		return nil, err
	}

	if err := cache.SetJSON(r.cache, key, result, r.ttl); err != nil {
		r.log.Warn("ocr cache write failed", "document", doc.Name, "error", err)
	}
	return result, nil
}
