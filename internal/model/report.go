package model

import "time"

// Report is the complete, render-ready outcome of one verification run.
// It is built once at the end of the run and never persisted by the pipeline.
type Report struct {
	RunID        string `json:"run_id"`
	Organization string `json:"organization"`
	Year         int    `json:"year"`
	Legacy       bool   `json:"legacy"` // Issued before the current year, verified via OCR

	State  string   `json:"state"`           // completed, failed, cancelled
	Error  string   `json:"error,omitempty"` // Single human-readable failure message
	Status []string `json:"status"`          // Status text emitted at each transition

	Documents [2]DocumentInfo `json:"documents"`
	RawText   [2]string       `json:"raw_text,omitempty"`
	Fields    [2]FieldRecord  `json:"fields,omitempty"`

	Comparison *FieldComparison `json:"comparison,omitempty"` // Survives a visual-stage failure
	Verdict    *TamperVerdict   `json:"verdict,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// TextMatchLine is the one-line text comparison outcome shown to users
func (r *Report) TextMatchLine() string {
	if r.Comparison == nil {
		return ""
	}
	if r.Comparison.OverallMatch {
		return "YES ✅ Certificates match (Text)"
	}
	return "NO ❌ Certificates differ (Text)"
}

// TamperingLine renders the tampering flag as Yes/No, or empty when the visual stage did not run
func (r *Report) TamperingLine() string {
	if r.Verdict == nil {
		return ""
	}
	if r.Verdict.TamperingSuspected {
		return "Yes"
	}
	return "No"
}

// CertificateRecord is a stored certificate known to the registry
type CertificateRecord struct {
	ID           string    `json:"id" firestore:"id"`
	FileName     string    `json:"fileName" firestore:"fileName"`
	URL          string    `json:"url" firestore:"url"`
	Organization string    `json:"organization,omitempty" firestore:"organization,omitempty"`
	Pages        int       `json:"pages,omitempty" firestore:"pages,omitempty"`
	Type         string    `json:"type" firestore:"type"` // pdf, image, unknown
	CreatedAt    time.Time `json:"createdAt" firestore:"createdAt"`
}

// IngestResult describes what happened to one archive entry during ingest
type IngestResult struct {
	FileName string `json:"fileName"`
	URL      string `json:"url,omitempty"`
	Pages    int    `json:"pages,omitempty"`
	Existing bool   `json:"existing,omitempty"` // Already stored, left untouched
	Error    string `json:"error,omitempty"`
}
