package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// RobotsTxtAuditor fetches, caches and applies robots.txt per host.
type RobotsTxtAuditor struct {
	fetcher *Fetcher
	logger  *slog.Logger
	mu      sync.Mutex
	cache   map[string]*robotstxt.RobotsData
}

// NewRobotsTxtAuditor creates a new instance.
func NewRobotsTxtAuditor(fetcher *Fetcher, logger *slog.Logger) *RobotsTxtAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsTxtAuditor{
		fetcher: fetcher,
		logger:  logger,
		cache:   make(map[string]*robotstxt.RobotsData),
	}
}

// IsAllowed reports whether userAgent may fetch targetURL. Hosts whose
// robots.txt cannot be fetched or parsed are allowed.
func (r *RobotsTxtAuditor) IsAllowed(ctx context.Context, targetURL string, userAgent string) (bool, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false, fmt.Errorf("invalid url: %w", err)
	}

	data, err := r.robotsFor(ctx, u.Scheme+"://"+u.Host)
	if err != nil {
		r.logger.Debug("robots.txt unavailable, allowing", "host", u.Host, "err", err)
		return true, nil
	}
	if data == nil {
		return true, nil
	}

	path := u.EscapedPath()
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.FindGroup(userAgent).Test(path), nil
}

// robotsFor holds the lock across the fetch so each host is fetched once.
func (r *RobotsTxtAuditor) robotsFor(ctx context.Context, host string) (*robotstxt.RobotsData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if data, ok := r.cache[host]; ok {
		return data, nil
	}

	res, err := r.fetcher.Fetch(ctx, host+"/robots.txt")
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	if res.Error != "" {
		r.cache[host] = nil
		return nil, fmt.Errorf("fetch robots.txt: %s", res.Error)
	}

	data, err := robotstxt.FromStatusAndBytes(res.StatusCode, res.Body)
	if err != nil {
		r.cache[host] = nil
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	r.cache[host] = data
	return data, nil
}
