package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ppiankov/certverify/internal/model"
)

// Renderer renders verification reports as JSON, Markdown, HTML and a terminal summary
type Renderer struct {
	includeFooter bool
	md            goldmark.Markdown
}

// NewRenderer creates a new renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{
		includeFooter: includeFooter,
		md:            goldmark.New(goldmark.WithExtensions(extension.Table)),
	}
}

// WriteJSON writes the report as indented JSON
func (r *Renderer) WriteJSON(w io.Writer, report *model.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// Markdown renders the report as Markdown
func (r *Renderer) Markdown(report *model.Report) string {
	var b strings.Builder

	b.WriteString("# Certificate Verification Report\n\n")
	fmt.Fprintf(&b, "**Organization:** %s  \n", escape(report.Organization))
	if report.Year != 0 {
		era := "current"
		if report.Legacy {
			era = "legacy"
		}
		fmt.Fprintf(&b, "**Year:** %d (%s)  \n", report.Year, era)
	}
	fmt.Fprintf(&b, "**State:** %s  \n", report.State)
	fmt.Fprintf(&b, "**Run:** `%s`\n\n", report.RunID)

	b.WriteString("## Documents\n\n")
	b.WriteString("| # | File | Type | Size |\n|---|------|------|------|\n")
	for i, doc := range report.Documents {
		kind := string(doc.Kind)
		if kind == "" {
			kind = "-"
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %d bytes |\n", i+1, escape(doc.Name), kind, doc.Size)
	}
	b.WriteString("\n")

	if report.Comparison != nil {
		b.WriteString("## Text Comparison\n\n")
		b.WriteString(report.TextMatchLine() + "\n\n")
		b.WriteString("| Field | Certificate 1 | Certificate 2 | Match |\n|-------|---------------|---------------|-------|\n")
		for _, key := range report.Comparison.Keys {
			match := "❌"
			if report.Comparison.Fields[key] {
				match = "✅"
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", key,
				cell(report.Fields[0], key), cell(report.Fields[1], key), match)
		}
		b.WriteString("\n")

		if mismatched := report.Comparison.Mismatched(); len(mismatched) > 0 {
			fmt.Fprintf(&b, "Differing fields: %s\n\n", strings.Join(mismatched, ", "))
		}
	}

	if report.Verdict != nil {
		b.WriteString("## Visual Comparison\n\n")
		for _, line := range report.Verdict.Summary {
			fmt.Fprintf(&b, "- %s\n", escape(line))
		}
		if len(report.Verdict.Notes) > 0 {
			b.WriteString("\nLocal threshold notes:\n\n")
			for _, note := range report.Verdict.Notes {
				fmt.Fprintf(&b, "- %s\n", escape(note))
			}
		}
		fmt.Fprintf(&b, "\n**Tampering suspected:** %s\n\n", report.TamperingLine())
	}

	if report.Error != "" {
		b.WriteString("## Error\n\n")
		fmt.Fprintf(&b, "> %s\n\n", escape(report.Error))
	}

	if r.includeFooter {
		b.WriteString("---\n\n")
		fmt.Fprintf(&b, "_Generated by certverify at %s_\n", report.FinishedAt.Format("2006-01-02 15:04:05 MST"))
	}

	return b.String()
}

// HTML renders the report as a standalone HTML page. Raw HTML inside
// extracted values is dropped by the Markdown converter.
func (r *Renderer) HTML(report *model.Report) ([]byte, error) {
	var body bytes.Buffer
	if err := r.md.Convert([]byte(r.Markdown(report)), &body); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>Certificate verification %s</title>\n", html.EscapeString(report.RunID))
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

// RenderJSON writes the JSON report to path
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	var buf bytes.Buffer
	if err := r.WriteJSON(&buf, report); err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return writeFile(path, buf.Bytes())
}

// RenderMarkdown writes the Markdown report to path
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFile(path, []byte(r.Markdown(report)))
}

// RenderHTML writes the HTML report to path
func (r *Renderer) RenderHTML(report *model.Report, path string) error {
	page, err := r.HTML(report)
	if err != nil {
		return err
	}
	return writeFile(path, page)
}

// RenderSummary prints a short summary for the terminal
func (r *Renderer) RenderSummary(w io.Writer, report *model.Report) {
	_, _ = fmt.Fprintf(w, "\nCertificate verification: %s\n", report.State)
	_, _ = fmt.Fprintf(w, "  Documents:  %s vs %s\n", report.Documents[0].Name, report.Documents[1].Name)
	if line := report.TextMatchLine(); line != "" {
		_, _ = fmt.Fprintf(w, "  Text:       %s\n", line)
	}
	if report.Verdict != nil {
		for _, line := range report.Verdict.Summary {
			_, _ = fmt.Fprintf(w, "  • %s\n", line)
		}
		_, _ = fmt.Fprintf(w, "  Tampering suspected: %s\n", report.TamperingLine())
	}
	if report.Error != "" {
		_, _ = fmt.Fprintf(w, "  Error: %s\n", report.Error)
	}
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// cell renders one field value for a Markdown table
func cell(record model.FieldRecord, key string) string {
	value, ok, present := record.Lookup(key)
	switch {
	case !present:
		return "_missing_"
	case !ok:
		return "_null_"
	case value == "":
		return `""`
	default:
		return escape(value)
	}
}

// escape keeps values from breaking table cells or lines
func escape(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
