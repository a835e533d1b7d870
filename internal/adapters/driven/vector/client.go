// Package vector provides the VectorStore adapter for the remote vector
// database's form-encoded HTTP API.
package vector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/ragsync/internal/core/ports/driven"
	"github.com/custodia-labs/ragsync/internal/logger"
)

// Ensure Client implements the interface.
var _ driven.VectorStore = (*Client)(nil)

// Default configuration values.
const (
	DefaultTimeout     = 60 * time.Second
	DefaultMaxAttempts = 3
	DefaultBackoffBase = 2 * time.Second
	maxResponseBytes   = 1 << 20
)

// Config holds configuration for the vector store client.
type Config struct {
	// Endpoint is the API URL (required). Both actions POST to it.
	Endpoint string

	// Token authenticates requests.
	Token string

	// Namespace is the default namespace for stored vectors.
	Namespace string

	// Timeout is the per-request timeout (default: 60s).
	Timeout time.Duration

	// MaxAttempts bounds retries of transport-level failures
	// (default: 3). API-level errors are never retried: the service
	// answered, and answered no.
	MaxAttempts int

	// BackoffBase is the first retry delay; each retry doubles it
	// (default: 2s). Tests shrink this.
	BackoffBase time.Duration
}

// Client stores and deletes vectors through the form-encoded API.
type Client struct {
	http        *http.Client
	endpoint    string
	token       string
	namespace   string
	maxAttempts int
	backoffBase time.Duration
}

// apiResponse is the vector API's JSON response envelope.
type apiResponse struct {
	Status    string `json:"status"`
	VectorID  string `json:"vector_id,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewClient creates a vector store client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("vector: endpoint is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}

	return &Client{
		http:        &http.Client{Timeout: cfg.Timeout},
		endpoint:    cfg.Endpoint,
		token:       cfg.Token,
		namespace:   cfg.Namespace,
		maxAttempts: cfg.MaxAttempts,
		backoffBase: cfg.BackoffBase,
	}, nil
}

// Store writes one section and returns its vector-store key.
func (c *Client) Store(ctx context.Context, title, text string, metadata map[string]string) (driven.VectorRef, error) {
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return driven.VectorRef{}, fmt.Errorf("marshalling metadata: %w", err)
	}

	form := url.Values{
		"action":    {"store"},
		"title":     {title},
		"text":      {text},
		"metadata":  {string(metadataJSON)},
		"namespace": {c.namespace},
	}

	resp, err := c.post(ctx, form)
	if err != nil {
		return driven.VectorRef{}, err
	}

	namespace := resp.Namespace
	if namespace == "" {
		namespace = c.namespace
	}
	return driven.VectorRef{VectorID: resp.VectorID, Namespace: namespace}, nil
}

// Delete removes a stale entry.
func (c *Client) Delete(ctx context.Context, vectorID, namespace string) error {
	form := url.Values{
		"action":    {"delete"},
		"vector_id": {vectorID},
		"namespace": {namespace},
	}

	_, err := c.post(ctx, form)
	return err
}

// post sends one form request, retrying transport failures with
// exponential backoff.
func (c *Client) post(ctx context.Context, form url.Values) (*apiResponse, error) {
	if c.token != "" {
		form.Set("token", c.token)
	}
	payload := form.Encode()

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.backoffBase << (attempt - 1)
			logger.Debug("vector request retry %d after %s", attempt, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := c.doOnce(ctx, payload)
		if err == nil {
			return resp, nil
		}
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			// The service processed the request and rejected it.
			// Retrying the same payload cannot help.
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("vector request failed after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *Client) doOnce(ctx context.Context, payload string) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting to vector store: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading vector response: %w", err)
	}

	if httpResp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("vector store returned status %d", httpResp.StatusCode)
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding vector response: %w", err)
	}

	if resp.Status != "ok" && resp.Status != "success" {
		return nil, &apiError{status: resp.Status, message: resp.Error}
	}
	return &resp, nil
}

// apiError is a definitive rejection by the vector API.
type apiError struct {
	status  string
	message string
}

func (e *apiError) Error() string {
	if e.message != "" {
		return fmt.Sprintf("vector store rejected request: %s (%s)", e.message, e.status)
	}
	return fmt.Sprintf("vector store rejected request: status %q", e.status)
}
