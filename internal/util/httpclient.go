package util

import (
	"fmt"
	"io"
	"net/http"

	"github.com/ppiankov/certverify/internal/model"
	"github.com/ppiankov/certverify/internal/worker"
)

// NewHTTPClient builds the client shared by the OCR, visual and relay
// clients: configured proxy, per-host rate limiting and a fixed User-Agent.
// A nil limiter disables throttling.
func NewHTTPClient(cfg model.HTTPConfig, limiter *worker.Limiter) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.Proxy = NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)

	var rt http.RoundTripper = base
	if limiter != nil {
		rt = worker.NewTransport(rt, limiter)
	}
	if cfg.UserAgent != "" {
		rt = &userAgentTransport{base: rt, userAgent: cfg.UserAgent}
	}

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: rt,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			return nil
		},
	}
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}

// ReadBody reads at most maxBytes of a response body. A non-positive limit
// reads everything.
func ReadBody(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes", maxBytes)
	}
	return data, nil
}
