package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/FranksOps/listcrawl/internal/bypass"
	"github.com/FranksOps/listcrawl/internal/fingerprint"
	"github.com/FranksOps/listcrawl/pkg/httpclient"
	"github.com/FranksOps/listcrawl/pkg/useragent"
	"github.com/google/uuid"
)

const defaultMaxBodySize = 10 << 20

// FetchConfig configures how pages are downloaded.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	UAPool       *useragent.Pool
	Fingerprint  fingerprint.Profile
	// InsecureSkipVerify disables TLS verification. Tests only.
	InsecureSkipVerify bool
	// MaxBodySize caps how much of a body is read (0 = 10MiB).
	MaxBodySize int64
}

// Response is the outcome of one fetch. Error is set when no usable HTTP
// response was obtained.
type Response struct {
	ID           string
	URL          string
	StatusCode   int
	Header       http.Header
	Body         []byte
	Duration     time.Duration
	DetectedBot  bool
	DetectionSrc string
	FetchedAt    time.Time
	Error        string
}

// OK reports whether the response carries a page worth handing to the core.
func (r *Response) OK() bool {
	return r.Error == "" && !r.DetectedBot && r.StatusCode >= 200 && r.StatusCode < 300
}

// Fetcher downloads single URLs with a browser-like TLS fingerprint and
// rotating User-Agent. One Fetcher is shared by all workers.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
}

// NewFetcher builds the transport and client once so connections and cookies
// are reused for the lifetime of the Fetcher.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaultMaxBodySize
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, fingerprint.Options{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Transport:    transport,
		Header: http.Header{
			"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
			"Accept-Language": {"en-US,en;q=0.5"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Fetcher{config: cfg, client: client}, nil
}

// Fetch GETs targetURL. Transport failures are reported in Response.Error
// rather than as an error so callers can still record them; the returned
// error is reserved for a cancelled context.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*Response, error) {
	start := time.Now()
	res := &Response{
		ID:        uuid.NewString(),
		URL:       targetURL,
		FetchedAt: start.UTC(),
	}

	resp, err := f.client.Get(ctx, targetURL, http.Header{"User-Agent": {f.config.UAPool.Next()}})
	if err != nil {
		res.Error = fmt.Sprintf("request failed: %v", err)
		res.Duration = time.Since(start)
		return res, ctx.Err()
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodySize))
	if err != nil {
		res.Error = fmt.Sprintf("failed to read body: %v", err)
	}

	res.StatusCode = resp.StatusCode
	res.Header = resp.Header
	res.Body = body
	res.Duration = time.Since(start)
	if resp.Request != nil && resp.Request.URL != nil {
		res.URL = resp.Request.URL.String()
	}

	res.DetectedBot, res.DetectionSrc = bypass.Analyze(bypass.Response{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       res.Body,
	}, bypass.DefaultDetectors())

	return res, nil
}

// Close releases idle connections.
func (f *Fetcher) Close() {
	f.client.CloseIdleConnections()
}
