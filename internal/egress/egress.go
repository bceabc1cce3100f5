// Package egress extracts the endpoints a network verifier run could not
// reach from the verifier's log output.
package egress

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

var failureLine = regexp.MustCompile(`egressURL error:\s*(\S+)`)

// Extract returns the distinct endpoints named on egress failure lines,
// sorted.
func Extract(r io.Reader) ([]string, error) {
	set := make(map[string]struct{})
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), 4<<20)
	for sc.Scan() {
		for _, m := range failureLine.FindAllStringSubmatch(sc.Text(), -1) {
			ep := strings.TrimRight(m[1], ",;.)")
			if ep != "" {
				set[ep] = struct{}{}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan verifier log: %w", err)
	}
	out := make([]string, 0, len(set))
	for ep := range set {
		out = append(out, ep)
	}
	sort.Strings(out)
	return out, nil
}

// FetchError reports a verifier log that could not be downloaded.
type FetchError struct {
	URL        string // without query string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch verifier log %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch verifier log %s: HTTP %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher downloads verifier logs and extracts failed endpoints.
type Fetcher struct {
	httpClient *http.Client
	logger     *slog.Logger
	timeout    time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(f *Fetcher) { f.httpClient = c } }

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option { return func(f *Fetcher) { f.logger = l } }

// WithTimeout sets a per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.timeout = d }
}

// NewFetcher returns a Fetcher with a fresh HTTP client unless one is given.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(f)
	}
	if f.httpClient == nil {
		f.httpClient = &http.Client{}
	}
	if f.timeout > 0 {
		c := *f.httpClient
		c.Timeout = f.timeout
		f.httpClient = &c
	}
	return f
}

// Endpoints downloads one log and extracts its failed endpoints.
func (f *Fetcher) Endpoints(ctx context.Context, logURL string) ([]string, error) {
	safe := redact(logURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, logURL, nil)
	if err != nil {
		return nil, &FetchError{URL: safe, Err: err}
	}
	f.logger.DebugContext(ctx, "fetching verifier log", "url", safe)
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: safe, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: safe, StatusCode: resp.StatusCode}
	}
	eps, err := Extract(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: safe, Err: err}
	}
	return eps, nil
}

// EndpointsFor downloads every distinct URL with at most parallel requests in
// flight. The first failure cancels the rest and is returned.
func (f *Fetcher) EndpointsFor(ctx context.Context, urls []string, parallel int) (map[string][]string, error) {
	if parallel < 1 {
		parallel = 1
	}
	var mu sync.Mutex
	out := make(map[string][]string, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		u := u
		g.Go(func() error {
			eps, err := f.Endpoints(gctx, u)
			if err != nil {
				return err
			}
			mu.Lock()
			out[u] = eps
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// redact drops the query string, which for presigned object URLs carries
// credentials.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
