// Package quay implements the Quay.io build status client used by the poller.
package quay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dwsmith1983/quaybridge/internal/metrics"
	"github.com/dwsmith1983/quaybridge/pkg/types"
)

const (
	// DefaultBaseURL is the public Quay API host.
	DefaultBaseURL = "https://quay.io"
	// DefaultMaxRedirects bounds how many redirects a single fetch follows.
	DefaultMaxRedirects = 5

	defaultTimeout = 30 * time.Second
)

// Request describes a GET against the Quay API. Header is sent unchanged on
// every hop, including hops to a different host.
type Request struct {
	URL    *url.URL
	Header http.Header
}

// Client fetches build lists from Quay.
type Client struct {
	baseURL      *url.URL
	httpClient   *http.Client
	timeout      time.Duration
	maxRedirects int
	breakerCfg   *BreakerConfig
	breaker      *gobreaker.CircuitBreaker
	logger       *slog.Logger
	metrics      *metrics.Recorder
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client (useful for testing). Its
// redirect policy is replaced; redirects are always followed by the Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithTimeout sets the timeout of each request hop.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.timeout = d }
}

// WithMaxRedirects sets the redirect budget of a fetch. Zero disables
// redirects here; internal/config never passes zero and maps it to
// DefaultMaxRedirects instead.
func WithMaxRedirects(n int) Option {
	return func(cl *Client) {
		if n >= 0 {
			cl.maxRedirects = n
		}
	}
}

// WithBreaker guards fetches with a circuit breaker. Without it a Client keeps
// no state between fetches.
func WithBreaker(cfg BreakerConfig) Option {
	return func(cl *Client) { cl.breakerCfg = &cfg }
}

// WithLogger sets the logger. A nil logger keeps the default.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r *metrics.Recorder) Option {
	return func(cl *Client) { cl.metrics = r }
}

// NewClient creates a Client for the Quay instance at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing quay base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("quay base URL %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL:      u,
		httpClient:   http.DefaultClient,
		timeout:      defaultTimeout,
		maxRedirects: DefaultMaxRedirects,
		logger:       slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}

	hc := *c.httpClient
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	if c.timeout > 0 {
		hc.Timeout = c.timeout
	}
	c.httpClient = &hc

	if c.breakerCfg != nil {
		c.breaker = newBreaker(u.Host, *c.breakerCfg, c.logger)
	}
	return c, nil
}

// BuildsURL returns the build list endpoint of repository (namespace/name).
func (c *Client) BuildsURL(repository string) *url.URL {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/api/v1/repository/" + strings.Trim(repository, "/") + "/build/"
	u.RawPath = ""
	return &u
}

// ListBuilds fetches and validates the recent builds of repository.
func (c *Client) ListBuilds(ctx context.Context, repository, token string) ([]types.BuildRecord, error) {
	header := make(http.Header)
	header.Set("Authorization", "Bearer "+token)
	header.Set("Accept", "application/json")

	start := time.Now()
	body, err := c.FetchJSON(ctx, Request{URL: c.BuildsURL(repository), Header: header})
	c.metrics.FetchObserved(ctx, time.Since(start))
	if err != nil {
		return nil, err
	}
	return ExtractBuilds(body)
}

// FetchJSON issues a GET and returns the JSON body of the final 200 response,
// following 301 and 302 redirects with the original headers.
func (c *Client) FetchJSON(ctx context.Context, req Request) (json.RawMessage, error) {
	if req.URL == nil {
		return nil, fmt.Errorf("quay fetch: request URL is nil")
	}
	if c.breaker == nil {
		return c.fetch(ctx, req)
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &TransportError{URL: req.URL.Redacted(), Err: err}
		}
		return nil, err
	}
	return out.(json.RawMessage), nil
}

func (c *Client) fetch(ctx context.Context, req Request) (json.RawMessage, error) {
	target := req.URL
	chain := []string{target.Redacted()}

	for hop := 0; ; hop++ {
		resp, err := c.get(ctx, target, req.Header)
		if err != nil {
			return nil, &TransportError{URL: target.Redacted(), Err: err}
		}

		switch resp.StatusCode {
		case http.StatusOK:
			return readJSON(resp, target)

		case http.StatusMovedPermanently, http.StatusFound:
			next, err := redirectTarget(resp, target)
			if err != nil {
				return nil, err
			}
			chain = append(chain, next.Redacted())
			if hop >= c.maxRedirects {
				return nil, &TooManyRedirectsError{Limit: c.maxRedirects, Chain: chain}
			}
			c.logger.DebugContext(ctx, "following redirect",
				"status", resp.StatusCode,
				"from", target.Redacted(),
				"to", next.Redacted(),
			)
			c.metrics.RedirectFollowed(ctx)
			target = next

		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody+1))
			_ = resp.Body.Close()
			return nil, &StatusError{
				URL:        target.Redacted(),
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Body:       truncate(strings.TrimSpace(string(body)), maxErrorBody),
			}
		}
	}
}

func (c *Client) get(ctx context.Context, target *url.URL, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = header.Clone()
	return c.httpClient.Do(req)
}

// redirectTarget resolves the Location of a redirect response and closes it.
// Redirects from https to http are refused.
func redirectTarget(resp *http.Response, current *url.URL) (*url.URL, error) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()

	loc := resp.Header.Get("Location")
	if loc == "" {
		return nil, &StatusError{
			URL:        current.Redacted(),
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       "redirect without Location header",
		}
	}
	next, err := current.Parse(loc)
	if err != nil {
		return nil, &StatusError{
			URL:        current.Redacted(),
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       fmt.Sprintf("invalid Location header %q: %v", loc, err),
		}
	}
	if current.Scheme == "https" && next.Scheme != "https" {
		return nil, &StatusError{
			URL:        current.Redacted(),
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       fmt.Sprintf("refusing redirect to non-TLS location %s", next.Redacted()),
		}
	}
	return next, nil
}

func readJSON(resp *http.Response, target *url.URL) (json.RawMessage, error) {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: target.Redacted(), Err: fmt.Errorf("reading response: %w", err)}
	}

	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &FormatError{
			URL:  target.Redacted(),
			Body: truncate(string(body), maxErrorBody),
			Err:  err,
		}
	}
	return raw, nil
}
