package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/ppiankov/certverify/internal/model"
)

// Provider defines the interface for field extraction backends
type Provider interface {
	// Name returns the provider name
	Name() string

	// ExtractFields turns raw OCR text into a certificate field record
	ExtractFields(ctx context.Context, req ExtractRequest) (*ExtractResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// ExtractRequest contains the input for one extraction call
type ExtractRequest struct {
	// RawText is the OCR output of one certificate. It may be empty.
	RawText string

	// Prompt overrides the default prompt when set
	Prompt string

	// Model overrides the configured model when set
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// ExtractResponse contains the extracted fields
type ExtractResponse struct {
	// Fields holds every declared key, with nil for data the model did not find
	Fields model.FieldRecord

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption when the backend reports it
	TokensUsed int
}

// Config holds provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", "gemini", "relay"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (Ollama, relay, OpenAI-compatible servers)
	BaseURL string

	// ProjectID and Region select the Vertex AI endpoint for Gemini
	ProjectID string
	Region    string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Temperature for generation. Zero keeps output deterministic.
	Temperature float32

	// HTTPClient is used by the plain HTTP providers when set
	HTTPClient *http.Client
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "",
		Timeout:   30,
		MaxTokens: 1000,
	}
}

// ErrMalformedResponse is wrapped by every error caused by a response that is
// not a JSON object matching the field schema
var ErrMalformedResponse = errors.New("malformed extraction response")

// SystemPrompt is shared by every provider
const SystemPrompt = "You extract structured fields from the OCR text of academic certificates. You answer with a single JSON object and nothing else."

// BuildPrompt constructs the default extraction prompt
func BuildPrompt(rawText string) string {
	return fmt.Sprintf(`Extract certificate fields into JSON only.
Fields: %s
Return every field. Use null when the text does not contain a value; never omit a key and never invent one.
Copy values exactly as written in the text.
Input text: """%s"""`, strings.Join(model.FieldNames, ", "), rawText)
}

// FieldSchema returns the JSON schema every response must satisfy
func FieldSchema() json.RawMessage {
	properties := make(map[string]any, len(model.FieldNames))
	for _, name := range model.FieldNames {
		properties[name] = map[string]any{"type": []string{"string", "null"}}
	}
	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             model.FieldNames,
		"additionalProperties": false,
	}
	data, _ := json.Marshal(schema)
	return data
}

// ParseFields validates a model response against the field schema.
// Every declared key must be present with a string or null value.
// Undeclared keys are dropped.
func ParseFields(text string) (model.FieldRecord, error) {
	text = stripCodeBlock(text)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("%w: not a JSON object: %v (raw: %s)", ErrMalformedResponse, err, truncate(text, 200))
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: null response", ErrMalformedResponse)
	}

	record := make(model.FieldRecord, len(model.FieldNames))
	for _, name := range model.FieldNames {
		value, ok := raw[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing key %q", ErrMalformedResponse, name)
		}
		if string(value) == "null" {
			record[name] = nil
			continue
		}
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return nil, fmt.Errorf("%w: key %q is not a string or null", ErrMalformedResponse, name)
		}
		record[name] = &s
	}

	return record, nil
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// StatusError is a non-success HTTP answer from an extraction backend
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, truncate(e.Message, 200))
}

// resolve picks the request value, then the configured value, then the fallback
func resolve(reqValue, configValue, fallback string) string {
	if reqValue != "" {
		return reqValue
	}
	if configValue != "" {
		return configValue
	}
	return fallback
}

func resolveTokens(reqValue, configValue int) int {
	if reqValue > 0 {
		return reqValue
	}
	if configValue > 0 {
		return configValue
	}
	return 1000
}

func promptFor(req ExtractRequest) string {
	if req.Prompt != "" {
		return req.Prompt
	}
	return BuildPrompt(req.RawText)
}
