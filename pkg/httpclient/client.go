// Package httpclient wraps net/http with the timeout, redirect and cookie
// policy the crawl engine needs, plus a set of default request headers.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxRedirects = 10
)

// Config defines the setup for the HTTP Client.
type Config struct {
	Timeout time.Duration
	// MaxRedirects caps followed redirects. Zero means the default of 10,
	// negative disables following and returns the redirect response as is.
	MaxRedirects int
	UseCookieJar bool
	// Transport overrides the RoundTripper, e.g. for uTLS fingerprinting.
	Transport http.RoundTripper
	// Header is added to every request that does not already set the key.
	Header http.Header
}

// Client is an *http.Client with default headers.
type Client struct {
	*http.Client
	header http.Header
}

// New creates a new HTTP client based on the provided configuration.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = defaultMaxRedirects
	}

	c := &http.Client{Timeout: cfg.Timeout}

	if cfg.MaxRedirects < 0 {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	} else {
		limit := cfg.MaxRedirects
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) > limit {
				return fmt.Errorf("stopped after %d redirects", limit)
			}
			return nil
		}
	}

	if cfg.UseCookieJar {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		c.Jar = jar
	}

	if cfg.Transport != nil {
		c.Transport = cfg.Transport
	}

	return &Client{Client: c, header: cfg.Header.Clone()}, nil
}

// Do executes req under ctx after applying the default headers.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, errors.New("httpclient: nil context")
	}

	req = req.Clone(ctx)
	for k, vals := range c.header {
		if req.Header.Get(k) != "" {
			continue
		}
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do %s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	return resp, nil
}

// Get issues a GET for rawURL with extra headers layered over the defaults.
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	return c.Do(ctx, req)
}
