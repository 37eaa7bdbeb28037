package llm

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/vertexai/genai"
)

// fakeGenerator implements contentGenerator
type fakeGenerator struct {
	text  string
	err   error
	calls int
	last  []genai.Part
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.last = parts
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text(f.text)}}},
		},
		UsageMetadata: &genai.UsageMetadata{TotalTokenCount: 77},
	}, nil
}

func TestGeminiProvider_ExtractFields_Success(t *testing.T) {
	gen := &fakeGenerator{text: validFields}
	provider := &GeminiProvider{generator: gen, model: "gemini-2.5-flash"}

	resp, err := provider.ExtractFields(context.Background(), ExtractRequest{RawText: "JANE DOE"})
	if err != nil {
		t.Fatalf("ExtractFields failed: %v", err)
	}

	if *resp.Fields["year"] != "2021" {
		t.Errorf("unexpected year %q", *resp.Fields["year"])
	}
	if resp.TokensUsed != 77 || resp.Model != "gemini-2.5-flash" {
		t.Errorf("unexpected response metadata: %+v", resp)
	}
	if gen.calls != 1 || len(gen.last) != 1 {
		t.Errorf("expected one call with one prompt part, got %d calls", gen.calls)
	}
}

func TestGeminiProvider_ExtractFields_Malformed(t *testing.T) {
	provider := &GeminiProvider{generator: &fakeGenerator{text: "not json"}}

	_, err := provider.ExtractFields(context.Background(), ExtractRequest{})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestGeminiProvider_ExtractFields_EmptyResponse(t *testing.T) {
	provider := &GeminiProvider{generator: &fakeGenerator{text: "   "}}

	_, err := provider.ExtractFields(context.Background(), ExtractRequest{})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestGeminiProvider_ExtractFields_CallError(t *testing.T) {
	provider := &GeminiProvider{generator: &fakeGenerator{err: errors.New("quota exceeded")}}

	_, err := provider.ExtractFields(context.Background(), ExtractRequest{})
	if err == nil || errors.Is(err, ErrMalformedResponse) {
		t.Errorf("expected transport error, got %v", err)
	}
}

func TestGeminiSchema(t *testing.T) {
	schema := geminiSchema()
	if schema.Type != genai.TypeObject {
		t.Errorf("expected object schema, got %v", schema.Type)
	}
	if len(schema.Required) != 7 || len(schema.Properties) != 7 {
		t.Errorf("expected 7 required properties, got %d/%d", len(schema.Required), len(schema.Properties))
	}
	for name, prop := range schema.Properties {
		if prop.Type != genai.TypeString || !prop.Nullable {
			t.Errorf("expected %s to be a nullable string", name)
		}
	}
}

func TestNewGeminiProvider_RequiresProject(t *testing.T) {
	if _, err := NewGeminiProvider(context.Background(), Config{Region: "us-central1"}); err == nil {
		t.Error("expected error without project ID")
	}
}
