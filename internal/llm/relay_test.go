package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRelayProvider_ExtractFields_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/extract" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req relayRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.RawText != "JANE DOE" {
			t.Errorf("unexpected rawText %q", req.RawText)
		}
		_, _ = w.Write([]byte(`{"fields":` + validFields + `}`))
	}))
	defer server.Close()

	provider, err := NewRelayProvider(Config{BaseURL: server.URL + "/"})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := provider.ExtractFields(context.Background(), ExtractRequest{RawText: "JANE DOE"})
	if err != nil {
		t.Fatalf("ExtractFields failed: %v", err)
	}
	if *resp.Fields["grade"] != "A" {
		t.Errorf("unexpected grade %q", *resp.Fields["grade"])
	}
}

func TestRelayProvider_ExtractFields_ErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"message field", http.StatusBadRequest, `{"message":"Missing rawText in request body"}`, "Missing rawText in request body"},
		{"error field wins", http.StatusInternalServerError, `{"message":"Server error","error":"upstream timeout"}`, "upstream timeout"},
		{"plain body", http.StatusBadGateway, `bad gateway`, "bad gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			provider, _ := NewRelayProvider(Config{BaseURL: server.URL})
			_, err := provider.ExtractFields(context.Background(), ExtractRequest{})

			var statusErr *StatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("expected StatusError, got %v", err)
			}
			if statusErr.StatusCode != tt.status || statusErr.Message != tt.message {
				t.Errorf("got %d %q, want %d %q", statusErr.StatusCode, statusErr.Message, tt.status, tt.message)
			}
		})
	}
}

func TestRelayProvider_ExtractFields_MissingFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	provider, _ := NewRelayProvider(Config{BaseURL: server.URL})

	_, err := provider.ExtractFields(context.Background(), ExtractRequest{})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestNewRelayProvider_RequiresBaseURL(t *testing.T) {
	if _, err := NewRelayProvider(Config{}); err == nil {
		t.Error("expected error without base URL")
	}
}
