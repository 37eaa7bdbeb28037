package visual

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ppiankov/certverify/internal/model"
)

var (
	first  = model.Document{Name: "a.pdf", Content: []byte("%PDF-1.4 a"), Kind: model.KindScanned}
	second = model.Document{Name: "b.png", Content: []byte{0x89, 'P', 'N', 'G'}, Kind: model.KindNormal}
)

func TestClient_Compare_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/compare-images" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if r.FormValue("file_type1") != "scanned" || r.FormValue("file_type2") != "normal" {
			t.Errorf("unexpected type hints %q %q", r.FormValue("file_type1"), r.FormValue("file_type2"))
		}
		for _, field := range []string{"file1", "file2"} {
			if _, _, err := r.FormFile(field); err != nil {
				t.Errorf("missing %s: %v", field, err)
			}
		}

		_, _ = w.Write([]byte(`{"results":{
			"profile":{"error":"no face detected"},
			"sign":{"deep_learning_match":true,"deep_learning_similarity":0.97,"sift_match":false,"sift_similarity":0.41},
			"tampering_suspected":true}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), 1<<20)

	result, err := client.Compare(context.Background(), first, second)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	if !result.TamperingSuspected {
		t.Error("expected tampering flag from service")
	}
	if len(result.Regions) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(result.Regions))
	}

	profile, sign := result.Regions[0], result.Regions[1]
	if profile.Region != "profile" || profile.Error != "no face detected" {
		t.Errorf("unexpected profile region %+v", profile)
	}
	if sign.Region != "sign" || !sign.EmbeddingMatch || sign.EmbeddingSimilarity != 0.97 || sign.KeypointMatch || sign.KeypointSimilarity != 0.41 {
		t.Errorf("unexpected sign region %+v", sign)
	}
}

func TestClient_Compare_IncompleteRegion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":{"sign":{"deep_learning_match":true},"stamp":"oops","tampering_suspected":false}}`))
	}))
	defer server.Close()

	result, err := NewClient(server.URL, server.Client(), 0).Compare(context.Background(), first, second)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	for _, region := range result.Regions {
		if !region.Failed() {
			t.Errorf("expected region %s to carry an error", region.Region)
		}
	}
}

func TestClient_Compare_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantText string
	}{
		{"service message", http.StatusBadRequest, `{"error":"Both files are required"}`, "Both files are required"},
		{"no message", http.StatusInternalServerError, `Internal Server Error`, "visual comparison failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, server.Client(), 0).Compare(context.Background(), first, second)

			var visualErr *model.VisualComparisonError
			if !errors.As(err, &visualErr) {
				t.Fatalf("expected VisualComparisonError, got %v", err)
			}
			if err.Error() != tt.wantText || visualErr.StatusCode != tt.status {
				t.Errorf("got %q/%d, want %q/%d", err.Error(), visualErr.StatusCode, tt.wantText, tt.status)
			}
		})
	}
}

func TestClient_Compare_BadTamperingFlag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":{"tampering_suspected":"maybe"}}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, server.Client(), 0).Compare(context.Background(), first, second)

	var visualErr *model.VisualComparisonError
	if !errors.As(err, &visualErr) {
		t.Errorf("expected VisualComparisonError, got %v", err)
	}
}

func TestClient_Compare_MissingTamperingFlag(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"absent", `{"results":{"profile":{"error":"no face detected"},"sign":{"error":"no signature found"}}}`},
		{"null", `{"results":{"sign":{"error":"no signature found"},"tampering_suspected":null}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			result, err := NewClient(server.URL, server.Client(), 0).Compare(context.Background(), first, second)

			var visualErr *model.VisualComparisonError
			if !errors.As(err, &visualErr) {
				t.Fatalf("expected VisualComparisonError, got result=%+v err=%v", result, err)
			}
			if !strings.Contains(err.Error(), "tampering_suspected") {
				t.Errorf("expected error to name the missing flag, got %q", err.Error())
			}
		})
	}
}

func TestClient_Compare_MissingResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"similarity":0.99,"is_same":true}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, server.Client(), 0).Compare(context.Background(), first, second)
	if err == nil {
		t.Error("expected error when results object is missing")
	}
}
