package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/FranksOps/listcrawl/internal/htmlpage"
	"github.com/FranksOps/listcrawl/internal/listing"
	"github.com/FranksOps/listcrawl/internal/metrics"
	"github.com/FranksOps/listcrawl/pkg/ratelimit"
	"golang.org/x/sync/errgroup"
)

// CrawlConfig provides parameters for the crawl engines.
type CrawlConfig struct {
	Concurrency int
	// AllowedDomains keeps the crawl on the listing site. Empty allows all.
	AllowedDomains []string
	// RespectRobots specifies whether to check robots.txt before fetching
	RespectRobots bool
	// UserAgent is the agent matched against robots.txt groups.
	UserAgent string
	// RequestsPerSecond limits the fetch rate (0 = unlimited)
	RequestsPerSecond float64
	// Jitter applies randomness to the rate limiter (0.0 to 1.0)
	Jitter float64
	// Cookies keeps a cookie jar across requests.
	Cookies bool
}

// Crawler is the native engine: a fixed pool of workers draining a queue of
// fetch requests, handing each fetched page to a PageHandler and feeding
// the requests it emits back into the queue.
type Crawler struct {
	cfg       CrawlConfig
	fetcher   *Fetcher
	handler   PageHandler
	observers notifier
	logger    *slog.Logger
	auditor   *RobotsTxtAuditor
	limiter   *ratelimit.Limiter
	stats     statsRecorder

	visitedMu sync.Mutex
	visited   map[string]struct{}
}

var _ Engine = (*Crawler)(nil)

// NewCrawler creates a native engine.
func NewCrawler(cfg CrawlConfig, fetcher *Fetcher, handler PageHandler, logger *slog.Logger, observers ...Observer) *Crawler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "*"
	}

	var auditor *RobotsTxtAuditor
	if cfg.RespectRobots {
		auditor = NewRobotsTxtAuditor(fetcher, logger)
	}

	return &Crawler{
		cfg:       cfg,
		fetcher:   fetcher,
		handler:   handler,
		observers: observers,
		logger:    logger,
		auditor:   auditor,
		limiter:   ratelimit.NewLimiter(cfg.RequestsPerSecond, cfg.Jitter),
		visited:   make(map[string]struct{}),
	}
}

// Run crawls until every queued request has been handled or ctx is done.
// Observers are closed in both cases.
func (c *Crawler) Run(ctx context.Context, seeds []listing.FetchRequest) (Stats, error) {
	defer c.limiter.Stop()
	c.stats.start(time.Now())

	queue := newFrontier()

	// Every queued request is counted before it is sent so Wait covers
	// requests discovered while processing.
	var pending sync.WaitGroup
	for _, seed := range seeds {
		if c.claim(seed.URL) {
			pending.Add(1)
			queue.push(seed)
		}
	}

	g, gCtx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	for i := 0; i < c.cfg.Concurrency; i++ {
		g.Go(func() error {
			for {
				if req, ok := queue.pop(); ok {
					if gCtx.Err() == nil {
						c.process(gCtx, req, queue, &pending)
					}
					pending.Done()
					continue
				}
				select {
				case <-gCtx.Done():
					return gCtx.Err()
				case <-done:
					return nil
				case <-queue.ready:
				}
			}
		})
	}

	go func() {
		pending.Wait()
		close(done)
	}()

	err := g.Wait()
	if err == nil {
		// Workers may see the drained queue before the cancellation.
		err = ctx.Err()
	}

	stats := c.stats.finish(time.Now())
	// Observers still get their shutdown call when the crawl was cancelled.
	c.observers.close(context.WithoutCancel(ctx), stats)

	if err != nil {
		return stats, fmt.Errorf("crawl: %w", err)
	}
	return stats, nil
}

func (c *Crawler) process(ctx context.Context, req listing.FetchRequest, queue *frontier, pending *sync.WaitGroup) {
	if c.auditor != nil {
		allowed, err := c.auditor.IsAllowed(ctx, req.URL, c.cfg.UserAgent)
		if err != nil {
			c.logger.Warn("error checking robots.txt", "url", req.URL, "err", err)
		} else if !allowed {
			c.logger.Info("url blocked by robots.txt", "url", req.URL)
			return
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return
	}

	c.logger.Debug("fetching", "url", req.URL)
	c.stats.request()

	res, err := c.fetcher.Fetch(ctx, req.URL)
	if err != nil {
		return
	}
	metrics.RecordFetch(hostOf(req.URL), res.StatusCode, res.Duration, res.DetectionSrc, res.Error)

	if !res.OK() {
		c.stats.fetchError()
		c.logger.Error("fetch failed",
			"url", req.URL,
			"status", res.StatusCode,
			"detected", res.DetectionSrc,
			"err", res.Error,
		)
		return
	}

	if ct := res.Header.Get("Content-Type"); ct != "" && !strings.Contains(strings.ToLower(ct), "html") {
		c.logger.Debug("skipping non-html response", "url", req.URL, "content_type", ct)
		return
	}

	page, err := htmlpage.Parse(res.URL, bytes.NewReader(res.Body))
	if err != nil {
		c.stats.fetchError()
		c.logger.Error("failed to parse page", "url", res.URL, "err", err)
		return
	}

	kind := c.handler.Classify(page)
	out := c.handler.HandlePage(page)
	c.stats.page(kind, out)
	metrics.RecordOutcome(kind, out)

	if out.Record != nil {
		c.observers.record(ctx, Item{Record: *out.Record, URL: res.URL, ScrapedAt: time.Now().UTC()})
	}

	for _, next := range out.Requests {
		if !c.claim(next.URL) {
			continue
		}
		pending.Add(1)
		queue.push(next)
	}
}

// claim marks rawURL visited and reports whether the caller should fetch it.
func (c *Crawler) claim(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if !inScope(u.Hostname(), c.cfg.AllowedDomains) {
		c.logger.Debug("skipping out of scope url", "url", rawURL)
		return false
	}

	u.Fragment = ""
	key := u.String()

	c.visitedMu.Lock()
	defer c.visitedMu.Unlock()
	if _, seen := c.visited[key]; seen {
		return false
	}
	c.visited[key] = struct{}{}
	return true
}
