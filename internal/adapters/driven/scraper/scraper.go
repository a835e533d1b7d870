// Package scraper fetches external web pages and reduces them to plain
// text suitable for chunking.
package scraper

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/ragsync/internal/core/ports/driven"
)

// Ensure Client implements the interface.
var _ driven.Scraper = (*Client)(nil)

// Default configuration values.
const (
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 2 // requests per second
	DefaultUserAgent = "ragsync/1.0"
	maxBodyBytes     = 8 << 20
)

var (
	scriptRE     = regexp.MustCompile(`(?is)<script\b.*?</script>`)
	styleRE      = regexp.MustCompile(`(?is)<style\b.*?</style>`)
	tagRE        = regexp.MustCompile(`(?s)<[^>]*>`)
	whitespaceRE = regexp.MustCompile(`\s+`)
)

// Config holds configuration for the scraper.
type Config struct {
	// Timeout is the per-request timeout (default: 30s).
	Timeout time.Duration

	// RateLimit is the request rate ceiling per second (default: 2).
	// External sites are not ours; scrape politely.
	RateLimit float64

	// UserAgent identifies this scraper to remote servers.
	UserAgent string
}

// Client scrapes external pages with a shared rate limiter.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// NewClient creates a scraper client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	return &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		userAgent: cfg.UserAgent,
	}
}

// Scrape fetches url and returns the page's plain text.
func (c *Client) Scrape(ctx context.Context, url string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", url, err)
	}

	return ExtractText(string(body)), nil
}

// ExtractText strips markup from an HTML document and collapses the
// remaining text to single-space-separated plain text. Plain-text input
// passes through with only whitespace normalisation.
func ExtractText(content string) string {
	text := scriptRE.ReplaceAllString(content, " ")
	text = styleRE.ReplaceAllString(text, " ")
	text = tagRE.ReplaceAllString(text, " ")
	text = html.UnescapeString(text)
	text = whitespaceRE.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
