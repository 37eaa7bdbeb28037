package pipeline

import (
	"errors"
	"testing"

	"github.com/ppiankov/certverify/internal/model"
)

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Request)
		wantField string
	}{
		{"valid current", func(r *Request) {}, ""},
		{"missing first document", func(r *Request) { r.Documents[0] = model.Document{} }, "file1"},
		{"missing second document", func(r *Request) { r.Documents[1].Content = nil }, "file2"},
		{"missing year", func(r *Request) { r.Year = "" }, "year"},
		{"blank year", func(r *Request) { r.Year = "   " }, "year"},
		{"short year", func(r *Request) { r.Year = "99" }, "year"},
		{"signed year", func(r *Request) { r.Year = "+202" }, "year"},
		{"missing organization", func(r *Request) { r.Organization = "" }, "organization"},
		{"legacy without type", func(r *Request) { r.Year = "2019" }, "type"},
		{"legacy with type", func(r *Request) { r.Year = "2019"; r.Kind = "scanned" }, ""},
		{"unknown type", func(r *Request) { r.Kind = "photocopy" }, "type"},
		{"future year without type", func(r *Request) { r.Year = "2030" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			err := req.Validate(fixedNow)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("expected valid request, got %v", err)
				}
				return
			}

			var validationErr *model.ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if validationErr.Field != tt.wantField {
				t.Errorf("expected field %q, got %q", tt.wantField, validationErr.Field)
			}
		})
	}
}

func TestRequest_Legacy(t *testing.T) {
	tests := []struct {
		year string
		want bool
	}{
		{"2024", true},
		{"2025", false},
		{"2026", false},
		{"abcd", false},
	}

	for _, tt := range tests {
		req := Request{Year: tt.year}
		if got := req.Legacy(fixedNow); got != tt.want {
			t.Errorf("Legacy(%q) = %v, want %v", tt.year, got, tt.want)
		}
	}
}

func TestRequest_DocumentsKeepExplicitKind(t *testing.T) {
	req := validRequest()
	req.Kind = "scanned"
	req.Documents[1].Kind = model.KindNormal

	docs := req.documents()
	if docs[0].Kind != model.KindScanned {
		t.Errorf("expected request kind applied, got %q", docs[0].Kind)
	}
	if docs[1].Kind != model.KindNormal {
		t.Errorf("expected document kind kept, got %q", docs[1].Kind)
	}
}
