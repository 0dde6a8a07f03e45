package archive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lox/ghcnclimate/internal/httputil"
)

const DefaultHTTPBase = "https://www.ncei.noaa.gov/pub/data/ghcn/daily"

// HTTPTransport downloads over HTTPS from the NCEI mirror of the archive.
type HTTPTransport struct {
	base       string
	client     *http.Client
	maxElapsed time.Duration
}

func NewHTTPTransport(base string, client *http.Client) *HTTPTransport {
	if base == "" {
		base = DefaultHTTPBase
	}
	if client == nil {
		client = httputil.NewClient(0)
	}
	return &HTTPTransport{base: base, client: client, maxElapsed: 2 * time.Minute}
}

func (t *HTTPTransport) Name() string { return "https" }

func (t *HTTPTransport) Retrieve(ctx context.Context, remoteID string) (io.ReadCloser, error) {
	url := joinPath(t.base, remoteID)

	var resp *http.Response
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		r, err := t.client.Do(req)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("get %s: %w", url, err))
		}

		if r.StatusCode == http.StatusTooManyRequests || r.StatusCode == http.StatusServiceUnavailable {
			r.Body.Close()
			return fmt.Errorf("throttled: status %d", r.StatusCode)
		}
		if r.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(r.Body, 512))
			r.Body.Close()
			return backoff.Permanent(fmt.Errorf("get %s: status %d: %s", url, r.StatusCode, string(b)))
		}
		resp = r
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = t.maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}

	return &body{ReadCloser: resp.Body, size: resp.ContentLength}, nil
}
