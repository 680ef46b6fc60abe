package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/FranksOps/listcrawl/internal/htmlpage"
	"github.com/FranksOps/listcrawl/internal/listing"
	"github.com/FranksOps/listcrawl/internal/metrics"
	"github.com/gocolly/colly/v2"
)

// CollyCrawler runs the same crawl on top of a colly collector. colly owns
// scheduling, dedupe and robots.txt; the controller still decides what each
// page produces.
type CollyCrawler struct {
	cfg       CrawlConfig
	timeout   time.Duration
	transport http.RoundTripper
	handler   PageHandler
	observers notifier
	logger    *slog.Logger
	stats     statsRecorder
}

var _ Engine = (*CollyCrawler)(nil)

// NewCollyCrawler creates a colly-backed engine. transport may be nil to use
// colly's default; pass a fingerprint transport to keep the TLS profile.
func NewCollyCrawler(cfg CrawlConfig, timeout time.Duration, transport http.RoundTripper, handler PageHandler, logger *slog.Logger, observers ...Observer) *CollyCrawler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CollyCrawler{
		cfg:       cfg,
		timeout:   timeout,
		transport: transport,
		handler:   handler,
		observers: observers,
		logger:    logger,
	}
}

func (c *CollyCrawler) collector(ctx context.Context) (*colly.Collector, error) {
	opts := []colly.CollectorOption{
		colly.StdlibContext(ctx),
		colly.Async(true),
	}
	if c.cfg.UserAgent != "" && c.cfg.UserAgent != "*" {
		opts = append(opts, colly.UserAgent(c.cfg.UserAgent))
	}

	// Scope is checked in OnRequest; colly's AllowedDomains only matches
	// exact hosts.
	col := colly.NewCollector(opts...)
	// colly ignores robots.txt unless told otherwise.
	col.IgnoreRobotsTxt = !c.cfg.RespectRobots
	if !c.cfg.Cookies {
		col.DisableCookies()
	}
	col.SetRequestTimeout(c.timeout)
	if c.transport != nil {
		col.WithTransport(c.transport)
	}

	rule := &colly.LimitRule{DomainGlob: "*", Parallelism: c.cfg.Concurrency}
	if c.cfg.RequestsPerSecond > 0 {
		rule.Delay = time.Duration(float64(time.Second) / c.cfg.RequestsPerSecond)
		rule.RandomDelay = time.Duration(float64(rule.Delay) * c.cfg.Jitter)
	}
	if err := col.Limit(rule); err != nil {
		return nil, fmt.Errorf("set colly limit: %w", err)
	}
	return col, nil
}

// Run visits the seeds and waits for colly to drain its queue.
func (c *CollyCrawler) Run(ctx context.Context, seeds []listing.FetchRequest) (Stats, error) {
	c.stats.start(time.Now())

	col, err := c.collector(ctx)
	if err != nil {
		return c.stats.finish(time.Now()), err
	}

	col.OnRequest(func(r *colly.Request) {
		if !inScope(r.URL.Hostname(), c.cfg.AllowedDomains) {
			c.logger.Debug("skipping out of scope url", "url", r.URL.String())
			r.Abort()
			return
		}
		r.Ctx.Put("started", time.Now())
		c.stats.request()
		c.logger.Debug("fetching", "url", r.URL.String())
	})

	col.OnResponse(func(r *colly.Response) {
		metrics.RecordFetch(r.Request.URL.Hostname(), r.StatusCode, elapsed(r.Ctx), "", "")
	})

	col.OnError(func(r *colly.Response, err error) {
		c.stats.fetchError()
		status := 0
		pageURL := ""
		if r != nil {
			status = r.StatusCode
			if r.Request != nil {
				pageURL = r.Request.URL.String()
				metrics.RecordFetch(r.Request.URL.Hostname(), status, elapsed(r.Ctx), "", err.Error())
			}
		}
		c.logger.Error("fetch failed", "url", pageURL, "status", status, "err", err)
	})

	col.OnHTML("html", func(e *colly.HTMLElement) {
		page := htmlpage.FromColly(e)
		kind := c.handler.Classify(page)
		out := c.handler.HandlePage(page)
		c.stats.page(kind, out)
		metrics.RecordOutcome(kind, out)

		if out.Record != nil {
			c.observers.record(ctx, Item{Record: *out.Record, URL: e.Request.URL.String(), ScrapedAt: time.Now().UTC()})
		}
		for _, next := range out.Requests {
			if err := e.Request.Visit(next.URL); err != nil {
				c.logger.Debug("not following", "url", next.URL, "err", err)
			}
		}
	})

	for _, seed := range seeds {
		if err := col.Visit(seed.URL); err != nil {
			c.logger.Warn("seed rejected", "url", seed.URL, "err", err)
		}
	}
	col.Wait()

	stats := c.stats.finish(time.Now())
	c.observers.close(context.WithoutCancel(ctx), stats)

	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("crawl: %w", err)
	}
	return stats, nil
}

func elapsed(ctx *colly.Context) time.Duration {
	if ctx == nil {
		return 0
	}
	started, ok := ctx.GetAny("started").(time.Time)
	if !ok {
		return 0
	}
	return time.Since(started)
}
