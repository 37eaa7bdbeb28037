package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ppiankov/certverify/internal/model"
	"github.com/ppiankov/certverify/internal/util"
)

// Loader reads certificate documents from local paths or http(s) URLs,
// such as the URLs recorded in the certificate registry
type Loader struct {
	httpClient *http.Client
	maxBytes   int64
}

// NewLoader creates a loader. A nil client uses http.DefaultClient.
func NewLoader(httpClient *http.Client, maxBytes int64) *Loader {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Loader{
		httpClient: httpClient,
		maxBytes:   maxBytes,
	}
}

// Load reads one document. The subtype is left empty for the request to fill in.
func (l *Loader) Load(ctx context.Context, source string) (model.Document, error) {
	if isRemote(source) {
		return l.fetch(ctx, source)
	}

	content, err := os.ReadFile(source)
	if err != nil {
		return model.Document{}, fmt.Errorf("read %s: %w", source, err)
	}
	return model.Document{
		Name:    filepath.Base(source),
		Content: content,
	}, nil
}

func (l *Loader) fetch(ctx context.Context, rawURL string) (model.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return model.Document{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/pdf,image/*;q=0.9,*/*;q=0.5")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return model.Document{}, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.Document{}, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	content, err := util.ReadBody(resp.Body, l.maxBytes)
	if err != nil {
		return model.Document{}, fmt.Errorf("read body: %w", err)
	}

	return model.Document{
		Name:        documentName(resp.Request.URL),
		Content:     content,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// documentName takes the last path segment of the final URL, falling back to the host
func documentName(u *url.URL) string {
	p := strings.Trim(u.Path, "/")
	if p == "" {
		return u.Host
	}
	if name, err := url.PathUnescape(path.Base(p)); err == nil {
		return name
	}
	return path.Base(p)
}
