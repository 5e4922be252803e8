package infra

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when the upstream answers 429.
var ErrRateLimited = errors.New("rate limited by upstream")

// HTTPError is a non-2xx upstream response other than 429.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream error %d: %s", e.StatusCode, e.URL)
}

// HTTPClient performs throttled GET requests with a fixed User-Agent.
// It never retries.
type HTTPClient struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	log       *zap.Logger
}

// NewHTTPClient creates a client allowing rps requests per second.
// A non-positive rps disables throttling.
func NewHTTPClient(userAgent string, rps float64, timeout time.Duration, log *zap.Logger) *HTTPClient {
	if log == nil {
		log = zap.NewNop()
	}
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = max(1, int(rps))
	}
	return &HTTPClient{
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(limit, burst),
		userAgent: userAgent,
		log:       log,
	}
}

// DoGet issues a GET and returns the (decompressed) body and status code.
// The caller must close the body. 429 maps to ErrRateLimited and any other
// non-2xx status to *HTTPError.
func (c *HTTPClient) DoGet(ctx context.Context, url string, headers map[string]string) (io.ReadCloser, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Encoding", "gzip")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("GET %s: %w", url, err)
	}
	c.log.Debug("http get", zap.String("url", url), zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		resp.Body.Close()
		return nil, resp.StatusCode, fmt.Errorf("GET %s: %w", url, ErrRateLimited)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		resp.Body.Close()
		return nil, resp.StatusCode, &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	if resp.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, resp.StatusCode, fmt.Errorf("gzip %s: %w", url, err)
		}
		return &gzipBody{Reader: zr, body: resp.Body}, resp.StatusCode, nil
	}
	return resp.Body, resp.StatusCode, nil
}

// GetBytes reads at most limit bytes of the response body. A non-positive
// limit reads everything.
func (c *HTTPClient) GetBytes(ctx context.Context, url string, headers map[string]string, limit int64) ([]byte, error) {
	body, _, err := c.DoGet(ctx, url, headers)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var r io.Reader = body
	if limit > 0 {
		r = io.LimitReader(body, limit)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return data, nil
}

// GetJSON decodes a JSON response into dest.
func (c *HTTPClient) GetJSON(ctx context.Context, url string, dest any) error {
	body, _, err := c.DoGet(ctx, url, map[string]string{"Accept": "application/json"})
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(dest); err != nil {
		return fmt.Errorf("parse JSON from %s: %w", url, err)
	}
	return nil
}

type gzipBody struct {
	*gzip.Reader
	body io.Closer
}

func (g *gzipBody) Close() error {
	g.Reader.Close()
	return g.body.Close()
}
