package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaProvider_ExtractFields_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Expected path /api/generate, got %s", r.URL.Path)
		}

		var req ollamaRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Stream {
			t.Error("expected non-streaming request")
		}
		if len(req.Format) == 0 {
			t.Error("expected schema in format")
		}

		_ = json.NewEncoder(w).Encode(ollamaResponse{
			Model:           "llama3.1:8b",
			Response:        validFields,
			Done:            true,
			PromptEvalCount: 10,
			EvalCount:       20,
		})
	}))
	defer server.Close()

	provider, _ := NewOllamaProvider(Config{BaseURL: server.URL, Model: "llama3.1:8b"})

	resp, err := provider.ExtractFields(context.Background(), ExtractRequest{RawText: "JANE DOE"})
	if err != nil {
		t.Fatalf("ExtractFields failed: %v", err)
	}
	if resp.TokensUsed != 30 {
		t.Errorf("expected 30 tokens, got %d", resp.TokensUsed)
	}
	if resp.Model != "llama3.1:8b" {
		t.Errorf("unexpected model %q", resp.Model)
	}
}

func TestOllamaProvider_ExtractFields_NoModel(t *testing.T) {
	provider, _ := NewOllamaProvider(Config{})
	if _, err := provider.ExtractFields(context.Background(), ExtractRequest{}); err == nil {
		t.Error("expected error when model is not set")
	}
}

func TestOllamaProvider_ExtractFields_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'llama9' not found"}`))
	}))
	defer server.Close()

	provider, _ := NewOllamaProvider(Config{BaseURL: server.URL, Model: "llama9"})

	_, err := provider.ExtractFields(context.Background(), ExtractRequest{})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Message != "model 'llama9' not found" {
		t.Errorf("expected StatusError with service message, got %v", err)
	}
}

func TestOllamaProvider_IsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	provider, _ := NewOllamaProvider(Config{BaseURL: server.URL})
	if !provider.IsAvailable(context.Background()) {
		t.Error("expected provider to be available")
	}

	server.Close()
	if provider.IsAvailable(context.Background()) {
		t.Error("expected provider to be unavailable after server shutdown")
	}
}

func TestNewOllamaProvider_DefaultBaseURL(t *testing.T) {
	provider, _ := NewOllamaProvider(Config{})
	if provider.baseURL != "http://localhost:11434" {
		t.Errorf("unexpected default base URL %q", provider.baseURL)
	}
}
