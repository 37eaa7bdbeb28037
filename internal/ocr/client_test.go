package ocr

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ppiankov/certverify/internal/model"
)

func TestClient_Recognize_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robust-ocr" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("type"); got != "scanned" {
			t.Errorf("expected type scanned, got %q", got)
		}
		_, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing file part: %v", err)
		}
		if header.Filename != "first.pdf" {
			t.Errorf("expected filename first.pdf, got %q", header.Filename)
		}

		// Pages deliberately out of order
		_, _ = w.Write([]byte(`{"results":[{"page":2,"text":"page two"},{"page":1,"text":"page one"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", server.Client(), 1<<20)
	doc := model.Document{Name: "first.pdf", Content: []byte("%PDF-1.4"), Kind: model.KindScanned}

	result, err := client.Recognize(context.Background(), doc)
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}

	if result.Text() != "page one\npage two" {
		t.Errorf("unexpected text %q", result.Text())
	}
}

func TestClient_Recognize_ZeroPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), 0)

	result, err := client.Recognize(context.Background(), model.Document{Name: "a.png", Content: []byte{0x89, 'P', 'N', 'G'}})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if len(result.Pages) != 0 || result.Text() != "" {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestClient_Recognize_OmitsEmptyKind(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)
		if _, ok := r.MultipartForm.Value["type"]; ok {
			t.Error("expected no type field when kind is unset")
		}
		_, _ = w.Write([]byte(`{"results":[{"text":"x"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), 0)
	if _, err := client.Recognize(context.Background(), model.Document{Content: []byte("x")}); err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
}

func TestClient_Recognize_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantText    string
	}{
		{"service message", http.StatusInternalServerError, `{"error":"bad image"}`, "bad image", "bad image"},
		{"missing file", http.StatusBadRequest, `{"error":"No file uploaded"}`, "No file uploaded", "No file uploaded"},
		{"no message", http.StatusBadGateway, `<html>bad gateway</html>`, "", "OCR extraction failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(server.URL, server.Client(), 0)
			_, err := client.Recognize(context.Background(), model.Document{Content: []byte("x")})

			var ocrErr *model.OCRError
			if !errors.As(err, &ocrErr) {
				t.Fatalf("expected OCRError, got %v", err)
			}
			if ocrErr.Message != tt.wantMessage || ocrErr.StatusCode != tt.status {
				t.Errorf("got %q/%d, want %q/%d", ocrErr.Message, ocrErr.StatusCode, tt.wantMessage, tt.status)
			}
			if err.Error() != tt.wantText {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.wantText)
			}
		})
	}
}

func TestClient_Recognize_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), 0)
	_, err := client.Recognize(context.Background(), model.Document{Content: []byte("x")})

	var ocrErr *model.OCRError
	if !errors.As(err, &ocrErr) || ocrErr.Err == nil {
		t.Errorf("expected OCRError wrapping a decode error, got %v", err)
	}
}

func TestClient_Recognize_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url, nil, 0)
	_, err := client.Recognize(context.Background(), model.Document{Content: []byte("x")})

	var ocrErr *model.OCRError
	if !errors.As(err, &ocrErr) {
		t.Fatalf("expected OCRError, got %v", err)
	}
	if ocrErr.Message != "" || ocrErr.Err == nil {
		t.Errorf("expected generic message with wrapped cause, got %+v", ocrErr)
	}
}

func TestClient_Recognize_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(server.URL, server.Client(), 0)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Recognize(ctx, model.Document{Content: []byte("x")})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error to propagate, got %v", err)
	}
}

func TestFileFor_DefaultsName(t *testing.T) {
	pdf := FileFor("file", model.Document{Content: []byte("%PDF-1.7 ...")})
	if pdf.FileName != "certificate.pdf" {
		t.Errorf("expected certificate.pdf, got %q", pdf.FileName)
	}

	img := FileFor("file", model.Document{Content: []byte{0xff, 0xd8, 0xff}})
	if img.FileName != "certificate.png" {
		t.Errorf("expected certificate.png, got %q", img.FileName)
	}

	named := FileFor("file1", model.Document{Name: "x.jpg", ContentType: "image/jpeg"})
	if named.FileName != "x.jpg" || named.ContentType != "image/jpeg" || named.Field != "file1" {
		t.Errorf("unexpected part %+v", named)
	}
}
