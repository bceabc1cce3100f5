package ocm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// DefaultBaseURL is the production cluster management API.
const DefaultBaseURL = "https://api.openshift.com"

// Client is a minimal client for the clusters_mgmt v1 API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures the Client during construction.
type Option func(*clientConfig) error

type clientConfig struct {
	httpClient *http.Client
	logger     *slog.Logger
	timeout    time.Duration
}

// New creates a Client. The bearer token is sent on every request.
func New(baseURL, bearerToken string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("ocm: invalid base URL %q: %w", baseURL, err)
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	cfg := &clientConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.timeout > 0 {
		c := *httpClient
		c.Timeout = cfg.timeout
		httpClient = &c
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		baseURL:    baseURL,
		token:      bearerToken,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *clientConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *clientConfig) error {
		cfg.logger = l
		return nil
	}
}

// WithTimeout sets a timeout on the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		if d < 0 {
			return fmt.Errorf("ocm: negative timeout %s", d)
		}
		cfg.timeout = d
		return nil
	}
}

// GetCluster fetches one cluster by id.
func (c *Client) GetCluster(ctx context.Context, clusterID string) (*Cluster, error) {
	if clusterID == "" {
		return nil, fmt.Errorf("get cluster: empty cluster id")
	}
	u := fmt.Sprintf("%s/api/clusters_mgmt/v1/clusters/%s", c.baseURL, url.PathEscape(clusterID))
	var cl Cluster
	if err := c.doJSON(ctx, http.MethodGet, u, "get cluster", &cl); err != nil {
		return nil, err
	}
	return &cl, nil
}

// IsHostedCluster reports whether the cluster runs a hosted control plane.
func (c *Client) IsHostedCluster(ctx context.Context, clusterID string) (bool, error) {
	cl, err := c.GetCluster(ctx, clusterID)
	if err != nil {
		return false, err
	}
	return cl.IsHosted(), nil
}

// doJSON executes a request and decodes the JSON response into dst.
// Error statuses become *APIError.
func (c *Client) doJSON(ctx context.Context, method, url, operation string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.DebugContext(ctx, "API request", "operation", operation, "method", method, "url", url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: do request: %w", operation, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "API response", "operation", operation, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var e errorBody
		if json.Unmarshal(body, &e) == nil && e.Reason != "" {
			return newAPIError(operation, resp.StatusCode, e.Code, e.Reason)
		}
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = resp.Status
		}
		return newAPIError(operation, resp.StatusCode, "", msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%s: decode response: %w", operation, err)
	}
	return nil
}

// ReadToken reads the first line of a file (e.g. .ocm-token) and returns it trimmed.
func ReadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.Split(string(data), "\n")[0]), nil
}
