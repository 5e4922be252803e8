// Package sec is the SEC EDGAR client used by the bronze stages.
//
// No API key is required, but every request must carry a User-Agent naming
// the requester (SEC fair-access policy) and the aggregate rate must stay
// under 10 requests/second per user agent.
// Docs: https://www.sec.gov/edgar/sec-api-documentation
package sec

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seenimoa/diligenceops/internal/config"
	"github.com/seenimoa/diligenceops/internal/infra"
)

const (
	// DefaultDataURL hosts the JSON APIs (submissions, companyfacts).
	DefaultDataURL = "https://data.sec.gov"
	// DefaultWWWURL hosts the ticker map, archives and the browse feed.
	DefaultWWWURL = "https://www.sec.gov"

	cacheTTL = 30 * time.Minute
)

var (
	// ErrTickerNotFound means the ticker is absent from the SEC ticker map.
	ErrTickerNotFound = errors.New("ticker not found in SEC database")
	// ErrNoFiling means the company has no filing of the requested form.
	ErrNoFiling = errors.New("no filing found")
	// ErrRateLimited means EDGAR answered 429.
	ErrRateLimited = infra.ErrRateLimited
)

// HTTPError is a non-2xx EDGAR response.
type HTTPError = infra.HTTPError

// Options configures a Client.
type Options struct {
	UserAgent string
	RateLimit float64 // requests per second
	Timeout   time.Duration
	DataURL   string
	WWWURL    string
	Logger    *zap.Logger
	Now       func() time.Time
}

// Client talks to EDGAR. It is safe for concurrent use; the ticker map and
// per-company submissions are fetched once and shared.
type Client struct {
	http    *infra.HTTPClient
	cache   *infra.Cache
	dataURL string
	wwwURL  string
	log     *zap.Logger
	now     func() time.Time
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.DataURL == "" {
		opts.DataURL = DefaultDataURL
	}
	if opts.WWWURL == "" {
		opts.WWWURL = DefaultWWWURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger.Named("sec")
	return &Client{
		http:    infra.NewHTTPClient(opts.UserAgent, opts.RateLimit, opts.Timeout, log),
		cache:   infra.NewCache(cacheTTL),
		dataURL: strings.TrimRight(opts.DataURL, "/"),
		wwwURL:  strings.TrimRight(opts.WWWURL, "/"),
		log:     log,
		now:     opts.Now,
	}
}

// NewFromConfig creates a Client from the edgar config section.
func NewFromConfig(cfg config.EDGARConfig, log *zap.Logger) *Client {
	return New(Options{
		UserAgent: cfg.UserAgent,
		RateLimit: cfg.RateLimit,
		Timeout:   time.Duration(cfg.TimeoutSec) * time.Second,
		Logger:    log,
	})
}

// Ping checks connectivity to EDGAR.
func (c *Client) Ping(ctx context.Context) error {
	body, _, err := c.http.DoGet(ctx, c.dataURL+"/submissions/CIK0000320193.json", nil)
	if err != nil {
		return fmt.Errorf("sec ping: %w", err)
	}
	body.Close()
	return nil
}

// submissions returns the cached submissions index for cik.
func (c *Client) submissions(ctx context.Context, cik string) (*submissionsResponse, error) {
	v, err := c.cache.GetOrLoad("submissions:"+padCIK(cik), func() (any, error) {
		var resp submissionsResponse
		u := fmt.Sprintf("%s/submissions/CIK%s.json", c.dataURL, padCIK(cik))
		if err := c.http.GetJSON(ctx, u, &resp); err != nil {
			return nil, fmt.Errorf("sec submissions: %w", err)
		}
		return &resp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*submissionsResponse), nil
}

// documentURL is the archive location of one document of a filing.
func (c *Client) documentURL(cik, accession, doc string) string {
	return fmt.Sprintf("%s/Archives/edgar/data/%s/%s/%s",
		c.wwwURL, strings.TrimLeft(cik, "0"), strings.ReplaceAll(accession, "-", ""), doc)
}

// padCIK pads a CIK number to 10 digits with leading zeros.
func padCIK(cik string) string {
	cik = strings.TrimSpace(cik)
	for len(cik) < 10 {
		cik = "0" + cik
	}
	return cik
}
