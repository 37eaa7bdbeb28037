package pipeline

import (
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/certverify/internal/model"
)

// Request is the caller-supplied input of one verification run
type Request struct {
	Documents    [2]model.Document
	Year         string // 4-digit issue year, only used to classify legacy vs current
	Organization string
	Kind         string // scanned | normal, required for legacy certificates
}

// Validate checks every precondition. It returns a *model.ValidationError
// naming the first missing or invalid field.
func (r Request) Validate(now time.Time) error {
	if r.Documents[0].Empty() {
		return &model.ValidationError{Field: "file1"}
	}
	if r.Documents[1].Empty() {
		return &model.ValidationError{Field: "file2"}
	}

	year := strings.TrimSpace(r.Year)
	if year == "" {
		return &model.ValidationError{Field: "year"}
	}
	if _, err := parseYear(year); err != nil {
		return &model.ValidationError{Field: "year", Reason: "must be a 4-digit year"}
	}

	if strings.TrimSpace(r.Organization) == "" {
		return &model.ValidationError{Field: "organization"}
	}

	kind, err := model.ParseDocumentKind(r.Kind)
	if err != nil {
		return &model.ValidationError{Field: "type", Reason: err.Error()}
	}
	if kind == "" && r.Legacy(now) {
		return &model.ValidationError{Field: "type"}
	}

	return nil
}

// Legacy reports whether the certificate was issued before the current year.
// An unparseable year is never legacy.
func (r Request) Legacy(now time.Time) bool {
	year, err := parseYear(strings.TrimSpace(r.Year))
	if err != nil {
		return false
	}
	return year < now.Year()
}

// documents returns the two documents with the subtype hint applied.
// Current certificates without an explicit subtype are treated as normal.
func (r Request) documents() [2]model.Document {
	kind, _ := model.ParseDocumentKind(r.Kind)
	if kind == "" {
		kind = model.KindNormal
	}

	docs := r.Documents
	for i := range docs {
		if docs[i].Kind == "" {
			docs[i].Kind = kind
		}
	}
	return docs
}

func parseYear(s string) (int, error) {
	if len(s) != 4 {
		return 0, strconv.ErrSyntax
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.Atoi(s)
}
