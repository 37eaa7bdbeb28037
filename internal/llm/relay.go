package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RelayProvider calls another certverify server's /api/extract endpoint
type RelayProvider struct {
	baseURL    string
	httpClient *http.Client
}

type relayRequest struct {
	RawText string `json:"rawText"`
}

type relayResponse struct {
	Fields  json.RawMessage `json:"fields"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// NewRelayProvider creates a new relay provider
func NewRelayProvider(config Config) (*RelayProvider, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("relay provider: base URL is required")
	}

	return &RelayProvider{
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		httpClient: httpClientFor(config, 60*time.Second),
	}, nil
}

// Name returns the provider name
func (p *RelayProvider) Name() string {
	return "relay"
}

// IsAvailable reports whether the relay is configured. The endpoint has no health route.
func (p *RelayProvider) IsAvailable(ctx context.Context) bool {
	return p.baseURL != ""
}

// ExtractFields posts the raw text and validates the returned fields
func (p *RelayProvider) ExtractFields(ctx context.Context, req ExtractRequest) (*ExtractResponse, error) {
	body, err := json.Marshal(relayRequest{RawText: req.RawText})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/extract", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("relay request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp relayResponse
	decodeErr := json.Unmarshal(respBody, &resp)

	if httpResp.StatusCode != http.StatusOK {
		message := resp.Error
		if message == "" {
			message = resp.Message
		}
		if decodeErr != nil || message == "" {
			message = strings.TrimSpace(string(respBody))
		}
		return nil, &StatusError{StatusCode: httpResp.StatusCode, Message: message}
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %v", ErrMalformedResponse, decodeErr)
	}
	if len(resp.Fields) == 0 {
		return nil, fmt.Errorf("%w: response has no fields", ErrMalformedResponse)
	}

	fields, err := ParseFields(string(resp.Fields))
	if err != nil {
		return nil, err
	}

	return &ExtractResponse{Fields: fields, Model: "relay"}, nil
}
