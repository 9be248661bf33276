// Package transport provides the shared outbound HTTP client used for
// all upstream fetches: one pooled, keep-alive transport per upstream
// profile, created at startup and reused for every request.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

// ErrRateLimited is returned when an upstream responds with 429. It is
// never retried here: the caller owns the backoff decision, and
// retrying into an upstream rate limit only deepens the violation.
var ErrRateLimited = errors.New("transport: upstream rate limited")

// StatusError is a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transport: upstream returned %s", e.Status)
}

// Config holds the pool and retry knobs for one upstream profile.
// Zero values fall back to the defaults below.
type Config struct {
	MaxConnsPerHost       int
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	IdleConnTimeout       time.Duration
	DialTimeout           time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration
	RequestTimeout        time.Duration

	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	UserAgent      string
	DefaultHeaders http.Header
}

func (c Config) withDefaults() Config {
	if c.MaxConnsPerHost <= 0 {
		c.MaxConnsPerHost = 16
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 32
	}
	if c.MaxIdleConnsPerHost <= 0 {
		c.MaxIdleConnsPerHost = 8
	}
	if c.IdleConnTimeout <= 0 {
		c.IdleConnTimeout = 90 * time.Second
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.TLSHandshakeTimeout <= 0 {
		c.TLSHandshakeTimeout = 5 * time.Second
	}
	if c.ResponseHeaderTimeout <= 0 {
		c.ResponseHeaderTimeout = 10 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 15 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 200 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 3 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "social-flood/1.0"
	}
	return c
}

// Response is what callers see; the underlying connection never leaves
// this package.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// FinalURL is the URL after redirects, useful for decoding
	// redirect-wrapped article links.
	FinalURL string
}

// Client is a reusable outbound HTTP client for one upstream profile.
// Create one per profile at startup and share it process-wide; never
// per request.
type Client struct {
	http *http.Client
	cfg  Config
	log  zerolog.Logger
}

// New creates a Client with its own pooled transport.
func New(cfg Config, log zerolog.Logger) *Client {
	cfg = cfg.withDefaults()

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
	}

	return &Client{
		http: &http.Client{Transport: tr, Timeout: cfg.RequestTimeout},
		cfg:  cfg,
		log:  log,
	}
}

// Get issues a GET request with retry. Transient network errors and
// 5xx responses are retried with exponential backoff up to the
// configured attempt count. 4xx responses are permanent; 429 surfaces
// as ErrRateLimited.
func (c *Client) Get(ctx context.Context, rawURL string, query url.Values, headers http.Header) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("transport: parse url: %w", err)
	}
	if query != nil {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	attempt := 0
	op := func() (*Response, error) {
		attempt++
		resp, err := c.do(ctx, u.String(), headers)
		if err != nil {
			c.log.Debug().Err(err).Str("url", u.String()).Int("attempt", attempt).Msg("upstream request failed")
			return nil, err
		}
		return resp, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = c.cfg.MaxBackoff

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.cfg.MaxAttempts)),
	)
}

func (c *Client) do(ctx context.Context, fullURL string, headers http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("transport: build request: %w", err))
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	for k, vs := range c.cfg.DefaultHeaders {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Deadline and cancellation are not worth retrying; the
		// caller's budget is already spent.
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("transport: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("transport: read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, backoff.Permanent(fmt.Errorf("%w (%s)", ErrRateLimited, fullURL))
	case resp.StatusCode >= 500:
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	case resp.StatusCode >= 400:
		return nil, backoff.Permanent(&StatusError{StatusCode: resp.StatusCode, Status: resp.Status})
	}

	finalURL := fullURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		FinalURL:   finalURL,
	}, nil
}

// Close releases idle pooled connections. Call on process shutdown,
// otherwise sockets linger until their idle timeout.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}
