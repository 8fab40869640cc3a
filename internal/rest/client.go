// Package rest provides access to the partner REST API for market and order
// metadata. It is read-only: trading happens on-chain, never through HTTP.
package rest

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rickgao/chaintrader/internal/retry"
	"github.com/rickgao/chaintrader/internal/version"
)

// Defaults applied by NewClient.
const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	defaultBackoff    = time.Second
)

// Client reads market and order metadata from the partner REST API.
type Client struct {
	baseURL    string
	apiKey     string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
	policy     retry.Policy
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a partner API client. Trailing slashes are trimmed from
// baseURL so path joins stay predictable.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		userAgent: "chaintrader/" + version.Version,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: slog.Default(),
		policy: retry.Exponential(defaultMaxRetries, defaultBackoff),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries derives a jittered exponential retry schedule from a retry
// count and base backoff.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.policy = retry.Exponential(max, backoff)
	}
}

// WithRetryPolicy sets the retry schedule directly.
func WithRetryPolicy(p retry.Policy) ClientOption {
	return func(c *Client) {
		c.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}
