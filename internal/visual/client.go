package visual

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/ppiankov/certverify/internal/model"
	"github.com/ppiankov/certverify/internal/ocr"
	"github.com/ppiankov/certverify/internal/util"
)

// Comparer compares two documents region by region
type Comparer interface {
	Compare(ctx context.Context, first, second model.Document) (*model.VisualResult, error)
}

// Client calls the visual similarity service's /compare-images endpoint
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxBytes   int64
}

// NewClient creates a new visual similarity client
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

// tamperingKey is the only non-region key in the results object
const tamperingKey = "tampering_suspected"

type compareResponse struct {
	Results map[string]json.RawMessage `json:"results"`
	Error   string                     `json:"error"`
}

type regionPayload struct {
	DeepLearningMatch      *bool    `json:"deep_learning_match"`
	DeepLearningSimilarity *float64 `json:"deep_learning_similarity"`
	SiftMatch              *bool    `json:"sift_match"`
	SiftSimilarity         *float64 `json:"sift_similarity"`
	Error                  string   `json:"error"`
}

// Compare uploads both documents and parses the per-region results.
// A region that reports an error does not fail the call.
// Failures are returned as *model.VisualComparisonError.
func (c *Client) Compare(ctx context.Context, first, second model.Document) (*model.VisualResult, error) {
	files := []util.FormFile{ocr.FileFor("file1", first), ocr.FileFor("file2", second)}
	fields := []util.FormField{
		{Name: "file_type1", Value: string(first.Kind)},
		{Name: "file_type2", Value: string(second.Kind)},
	}

	body, contentType, err := util.BuildMultipart(files, fields)
	if err != nil {
		return nil, &model.VisualComparisonError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/compare-images", body)
	if err != nil {
		return nil, &model.VisualComparisonError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &model.VisualComparisonError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := util.ReadBody(resp.Body, c.maxBytes)
	if err != nil {
		return nil, &model.VisualComparisonError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	var parsed compareResponse
	decodeErr := json.Unmarshal(data, &parsed)

	if resp.StatusCode != http.StatusOK {
		return nil, &model.VisualComparisonError{Message: parsed.Error, StatusCode: resp.StatusCode}
	}
	if decodeErr != nil {
		return nil, &model.VisualComparisonError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", decodeErr)}
	}
	if parsed.Results == nil {
		return nil, &model.VisualComparisonError{StatusCode: resp.StatusCode, Err: fmt.Errorf("response has no results")}
	}

	return parseResults(parsed.Results)
}

// parseResults splits the results object into regions and the tampering flag
func parseResults(results map[string]json.RawMessage) (*model.VisualResult, error) {
	out := &model.VisualResult{}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	var tampering *bool
	for _, name := range names {
		raw := results[name]

		if name == tamperingKey {
			if err := json.Unmarshal(raw, &tampering); err != nil {
				return nil, &model.VisualComparisonError{Err: fmt.Errorf("decode %s: %w", tamperingKey, err)}
			}
			continue
		}

		var payload regionPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			// A region that is not an object is reported on that region only
			out.Regions = append(out.Regions, model.RegionSimilarity{
				Region: name,
				Error:  fmt.Sprintf("unreadable region result: %v", err),
			})
			continue
		}
		out.Regions = append(out.Regions, toRegion(name, payload))
	}

	// An absent or null flag is not the same as a clean result
	if tampering == nil {
		return nil, &model.VisualComparisonError{Message: "visual comparison response has no " + tamperingKey}
	}
	out.TamperingSuspected = *tampering

	return out, nil
}

func toRegion(name string, p regionPayload) model.RegionSimilarity {
	region := model.RegionSimilarity{Region: name, Error: p.Error}
	if p.Error != "" {
		return region
	}
	if p.DeepLearningSimilarity == nil || p.SiftSimilarity == nil || p.DeepLearningMatch == nil || p.SiftMatch == nil {
		region.Error = "incomplete region result"
		return region
	}

	region.EmbeddingSimilarity = *p.DeepLearningSimilarity
	region.EmbeddingMatch = *p.DeepLearningMatch
	region.KeypointSimilarity = *p.SiftSimilarity
	region.KeypointMatch = *p.SiftMatch
	return region
}
