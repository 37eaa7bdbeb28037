package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/ppiankov/certverify/internal/model"
	"github.com/ppiankov/certverify/internal/util"
)

// Recognizer turns a document into per-page text
type Recognizer interface {
	Recognize(ctx context.Context, doc model.Document) (*model.OcrResult, error)
}

// Client calls the OCR service's /robust-ocr endpoint
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxBytes   int64
}

// NewClient creates a new OCR service client
func NewClient(baseURL string, httpClient *http.Client, maxBytes int64) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		maxBytes:   maxBytes,
	}
}

type ocrPage struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

type ocrResponse struct {
	Results []ocrPage `json:"results"`
	Error   string    `json:"error"`
}

// Recognize uploads the document with its kind hint and returns the pages in order.
// Failures are returned as *model.OCRError.
func (c *Client) Recognize(ctx context.Context, doc model.Document) (*model.OcrResult, error) {
	fields := []util.FormField{}
	if doc.Kind != "" {
		fields = append(fields, util.FormField{Name: "type", Value: string(doc.Kind)})
	}

	body, contentType, err := util.BuildMultipart([]util.FormFile{FileFor("file", doc)}, fields)
	if err != nil {
		return nil, &model.OCRError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/robust-ocr", body)
	if err != nil {
		return nil, &model.OCRError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &model.OCRError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := util.ReadBody(resp.Body, c.maxBytes)
	if err != nil {
		return nil, &model.OCRError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	var parsed ocrResponse
	decodeErr := json.Unmarshal(data, &parsed)

	if resp.StatusCode != http.StatusOK {
		// Service message verbatim when it sent one, generic otherwise
		return nil, &model.OCRError{Message: parsed.Error, StatusCode: resp.StatusCode}
	}
	if decodeErr != nil {
		return nil, &model.OCRError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", decodeErr)}
	}

	return &model.OcrResult{Pages: orderedText(parsed.Results)}, nil
}

// orderedText returns page texts ordered by page number when the service numbered them
func orderedText(pages []ocrPage) []string {
	numbered := true
	for _, p := range pages {
		if p.Page <= 0 {
			numbered = false
			break
		}
	}
	if numbered {
		sort.SliceStable(pages, func(i, j int) bool { return pages[i].Page < pages[j].Page })
	}

	out := make([]string, 0, len(pages))
	for _, p := range pages {
		out = append(out, p.Text)
	}
	return out
}

// FileFor builds the multipart file part for a document. The services pick
// their decoder from the file extension, so unnamed documents get one.
func FileFor(field string, doc model.Document) util.FormFile {
	name := doc.Name
	if name == "" {
		name = "certificate.png"
		if doc.IsPDF() {
			name = "certificate.pdf"
		}
	}

	contentType := doc.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(doc.Content)
	}

	return util.FormFile{
		Field:       field,
		FileName:    name,
		ContentType: contentType,
		Content:     doc.Content,
	}
}
