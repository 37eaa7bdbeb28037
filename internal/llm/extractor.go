package llm

import (
	"context"
	"errors"

	"github.com/ppiankov/certverify/internal/model"
)

// Extractor adapts a Provider to the pipeline's extraction stage and
// converts failures into *model.ExtractionError
type Extractor struct {
	provider Provider
}

// NewExtractor creates a new extractor
func NewExtractor(provider Provider) *Extractor {
	return &Extractor{provider: provider}
}

// Provider returns the underlying provider
func (e *Extractor) Provider() Provider {
	return e.provider
}

// Extract runs one extraction call. Empty text is sent as is.
func (e *Extractor) Extract(ctx context.Context, rawText string) (model.FieldRecord, error) {
	resp, err := e.provider.ExtractFields(ctx, ExtractRequest{RawText: rawText})
	if err != nil {
		return nil, toExtractionError(err)
	}
	if resp == nil || resp.Fields == nil {
		return nil, &model.ExtractionError{Err: ErrMalformedResponse}
	}
	return resp.Fields, nil
}

func toExtractionError(err error) error {
	var extractionErr *model.ExtractionError
	if errors.As(err, &extractionErr) {
		return extractionErr
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Message != "" {
		return &model.ExtractionError{
			Message:    statusErr.Message,
			StatusCode: statusErr.StatusCode,
		}
	}

	return &model.ExtractionError{Err: err}
}
