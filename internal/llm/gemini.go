package llm

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/ppiankov/certverify/internal/model"
)

// contentGenerator is the part of *genai.GenerativeModel the provider uses
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiProvider extracts fields with Gemini on Vertex AI using a response schema
type GeminiProvider struct {
	client    *genai.Client
	generator contentGenerator
	model     string
}

// NewGeminiProvider creates a Vertex AI client and a schema-constrained model
func NewGeminiProvider(ctx context.Context, config Config) (*GeminiProvider, error) {
	if config.ProjectID == "" || config.Region == "" {
		return nil, fmt.Errorf("gemini provider: project ID and region are required")
	}

	client, err := genai.NewClient(ctx, config.ProjectID, config.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	name := resolve("", config.Model, "gemini-2.5-flash")
	gm := client.GenerativeModel(name)
	gm.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SystemPrompt)},
	}
	gm.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   geminiSchema(),
		Temperature:      genai.Ptr(config.Temperature),
		MaxOutputTokens:  genai.Ptr(int32(resolveTokens(0, config.MaxTokens))),
	}

	return &GeminiProvider{
		client:    client,
		generator: gm,
		model:     name,
	}, nil
}

// geminiSchema mirrors FieldSchema in Vertex AI's schema type
func geminiSchema() *genai.Schema {
	properties := make(map[string]*genai.Schema, len(model.FieldNames))
	for _, name := range model.FieldNames {
		properties[name] = &genai.Schema{Type: genai.TypeString, Nullable: true}
	}
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: properties,
		Required:   model.FieldNames,
	}
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// IsAvailable reports whether a model is configured. Vertex AI has no cheap ping.
func (p *GeminiProvider) IsAvailable(ctx context.Context) bool {
	return p.generator != nil
}

// ExtractFields generates the field object. Per-request model overrides are
// not supported since the schema is bound to the configured model.
func (p *GeminiProvider) ExtractFields(ctx context.Context, req ExtractRequest) (*ExtractResponse, error) {
	resp, err := p.generator.GenerateContent(ctx, genai.Text(promptFor(req)))
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return nil, fmt.Errorf("%w: empty Gemini response", ErrMalformedResponse)
	}

	fields, err := ParseFields(text)
	if err != nil {
		return nil, err
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &ExtractResponse{
		Fields:     fields,
		Model:      p.model,
		TokensUsed: tokens,
	}, nil
}

// Close releases the Vertex AI client
func (p *GeminiProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// responseText concatenates the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}
