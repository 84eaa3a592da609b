package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/arcspire/mediasync/internal/models"
	"github.com/arcspire/mediasync/internal/ratelimit"
	"github.com/arcspire/mediasync/internal/shared"
)

// DefaultTimeout is the absolute ceiling for one outbound call, connection
// time included. There is no per-call retry inside the client.
const DefaultTimeout = 8 * time.Second

// Source is implemented by each metadata provider for one media category.
type Source interface {
	// Name returns the provider name, which is also its rate limiter key.
	Name() string

	// Category returns the media category this source serves.
	Category() models.MediaType

	// Details fetches and normalizes the metadata for one item.
	Details(ctx context.Context, apiID string) (*models.MediaDetails, error)
}

// ChangeFeed is implemented by sources whose provider exposes a changelog of
// recently modified items. Sweeps prefer it over staleness queries when present.
type ChangeFeed interface {
	ChangedIDs(ctx context.Context, since time.Time) ([]string, error)
}

// Transformer converts a provider's raw response body into the storage shape.
type Transformer interface {
	Details(raw []byte) (*models.MediaDetails, error)
}

// Client is the HTTP base every concrete provider client calls through.
//
// A call consumes the rate limiter for this client's key, runs under the
// absolute timeout, and classifies any non-2xx response into the closed error
// taxonomy of internal/shared.
type Client struct {
	name       string
	baseURL    string
	limiter    *ratelimit.Limiter
	httpClient *http.Client
	headers    map[string]string
	timeout    time.Duration
}

// ClientOpts contains configuration options for creating a [Client].
type ClientOpts struct {
	Name       string
	BaseURL    string
	Limiter    *ratelimit.Limiter
	HTTPClient *http.Client
	Headers    map[string]string
	Timeout    time.Duration
}

// NewClient creates a provider HTTP client with the provided configuration.
func NewClient(opts ClientOpts) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	return &Client{
		name:       opts.Name,
		baseURL:    opts.BaseURL,
		limiter:    opts.Limiter,
		httpClient: opts.HTTPClient,
		headers:    opts.Headers,
		timeout:    opts.Timeout,
	}
}

// Name returns the client's provider name.
func (c *Client) Name() string { return c.name }

// Get performs a GET request against path with the given query parameters.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.call(ctx, http.MethodGet, path, query, nil, "")
}

// Post performs a POST request against path with the given body.
func (c *Client) Post(ctx context.Context, path string, body []byte, contentType string) ([]byte, error) {
	return c.call(ctx, http.MethodPost, path, nil, body, contentType)
}

func (c *Client) call(ctx context.Context, method, path string, query url.Values, body []byte, contentType string) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	if c.limiter != nil {
		if err := c.limiter.Consume(ctx, c.name); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s %s", shared.ErrUpstreamTimeout, method, fullURL)
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return nil, fmt.Errorf("%w: %s %s", shared.ErrUpstreamTimeout, method, fullURL)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return payload, classifyStatus(resp, fullURL)
}

// classifyStatus maps a non-2xx response onto the shared taxonomy. 404 is a
// "resource absent" signal rather than a hard failure, since remote catalogs
// prune items; 429 is the provider's limit, distinct from the local limiter.
func classifyStatus(resp *http.Response, fullURL string) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrNotFound, fullURL)
	case code == http.StatusGone:
		return fmt.Errorf("%w: %s", shared.ErrGone, fullURL)
	case code == http.StatusTooManyRequests:
		return &shared.UpstreamRateLimitError{URL: fullURL, RetryAfter: retryAfter(resp)}
	case code >= 500:
		return fmt.Errorf("%w: status %d from %s", shared.ErrUpstreamDown, code, fullURL)
	default:
		return &shared.StatusError{URL: fullURL, Code: code}
	}
}

// retryAfter parses a Retry-After header, accepting both delta-seconds and
// HTTP-date forms. Zero means the provider sent nothing usable.
func retryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}

	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
	}
	return 0
}
