// Package library provides the ContentSource adapter for the managed
// document library's HTTP API.
package library

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/ragsync/internal/adapters/driven/scraper"
	"github.com/custodia-labs/ragsync/internal/core/domain"
	"github.com/custodia-labs/ragsync/internal/core/ports/driven"
	"github.com/custodia-labs/ragsync/internal/logger"
)

// Ensure Client implements the interface.
var _ driven.ContentSource = (*Client)(nil)

// Default configuration values.
const (
	DefaultTimeout     = 60 * time.Second
	DefaultRateLimit   = 4 // requests per second
	DefaultURLListName = "external-urls.txt"
	maxDownloadBytes   = 32 << 20
)

// urlPattern extracts http(s) URLs from the URL-list file. Lines may
// carry comments or surrounding prose; only the URLs themselves matter.
var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// Config holds configuration for the library client.
type Config struct {
	// BaseURL is the library API root (required).
	BaseURL string

	// TokenURL, ClientID and ClientSecret configure OAuth2 client
	// credentials. When TokenURL is empty, requests are unauthenticated.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string

	// URLListName is the library file holding the external URL list
	// (default: external-urls.txt).
	URLListName string

	// Timeout is the per-request timeout (default: 60s).
	Timeout time.Duration

	// RateLimit is the request rate ceiling per second (default: 4).
	RateLimit float64
}

// Client talks to the document library API. All requests pass through a
// shared rate limiter so manifest paging and downloads together stay
// under the API's throttling threshold.
type Client struct {
	http        *http.Client
	baseURL     string
	urlListName string
	limiter     *rate.Limiter
}

// manifestEntry is one file in the library's manifest response.
type manifestEntry struct {
	Name         string    `json:"name"`
	WebURL       string    `json:"web_url"`
	DownloadURL  string    `json:"download_url"`
	LastModified time.Time `json:"last_modified"`
}

// manifestResponse is a page of the library manifest.
type manifestResponse struct {
	Files    []manifestEntry `json:"files"`
	NextPage string          `json:"next_page,omitempty"`
}

// NewClient creates a library client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("library: base URL is required")
	}
	if cfg.URLListName == "" {
		cfg.URLListName = DefaultURLListName
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.TokenURL != "" {
		oauthCfg := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		// The oauth2 transport refreshes tokens transparently.
		httpClient = oauthCfg.Client(context.Background())
		httpClient.Timeout = cfg.Timeout
	}

	return &Client{
		http:        httpClient,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		urlListName: cfg.URLListName,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
	}, nil
}

// Fetch returns the library file manifest and the external URL list.
// The manifest honours modifiedSince; the URL-list file is always
// fetched and never appears among the file candidates.
func (c *Client) Fetch(ctx context.Context, modifiedSince time.Time) ([]domain.Candidate, []string, error) {
	entries, err := c.listFiles(ctx, modifiedSince)
	if err != nil {
		return nil, nil, fmt.Errorf("listing library files: %w", err)
	}

	var (
		files   []domain.Candidate
		urlList []string
	)
	for _, entry := range entries {
		if entry.Name == c.urlListName {
			continue
		}
		files = append(files, domain.Candidate{
			SourceType:   domain.SourceLibraryFile,
			SourceURI:    entry.WebURL,
			FileName:     entry.Name,
			DownloadURL:  entry.DownloadURL,
			LastModified: entry.LastModified,
		})
	}

	urlList, err = c.fetchURLList(ctx)
	if err != nil {
		// The URL list is optional library content. Its absence is not
		// a fetch failure.
		logger.Warn("fetching URL list: %v", err)
		return files, nil, nil
	}

	return files, urlList, nil
}

// Download fetches a file candidate and extracts its text.
func (c *Client) Download(ctx context.Context, candidate domain.Candidate) (string, error) {
	if candidate.DownloadURL == "" {
		return "", fmt.Errorf("candidate %s has no download URL", candidate.DocumentID)
	}

	body, err := c.get(ctx, candidate.DownloadURL)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", candidate.FileName, err)
	}

	switch strings.ToLower(path.Ext(candidate.FileName)) {
	case ".txt", ".md", ".markdown":
		return string(body), nil
	case ".html", ".htm":
		return scraper.ExtractText(string(body)), nil
	default:
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedType, candidate.FileName)
	}
}

// listFiles pages through the manifest endpoint.
func (c *Client) listFiles(ctx context.Context, modifiedSince time.Time) ([]manifestEntry, error) {
	endpoint := c.baseURL + "/files"
	if !modifiedSince.IsZero() {
		endpoint += "?modified_since=" + url.QueryEscape(modifiedSince.UTC().Format(time.RFC3339))
	}

	var entries []manifestEntry
	for endpoint != "" {
		body, err := c.get(ctx, endpoint)
		if err != nil {
			return nil, err
		}

		var page manifestResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decoding manifest: %w", err)
		}

		entries = append(entries, page.Files...)
		endpoint = page.NextPage
	}
	return entries, nil
}

// fetchURLList downloads the URL-list file and extracts its URLs.
func (c *Client) fetchURLList(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, c.baseURL+"/files/"+url.PathEscape(c.urlListName)+"/content")
	if err != nil {
		return nil, err
	}
	return ExtractURLs(string(body)), nil
}

// ExtractURLs pulls http(s) URLs out of free-form text, one per match,
// deduplicated and in order of first appearance.
func ExtractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(matches))
	var urls []string
	for _, m := range matches {
		m = strings.TrimRight(m, ".,;)")
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		urls = append(urls, m)
	}
	return urls
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}
