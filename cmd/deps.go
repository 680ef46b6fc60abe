package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"

	"github.com/FranksOps/listcrawl/internal/config"
	"github.com/FranksOps/listcrawl/internal/fingerprint"
	"github.com/FranksOps/listcrawl/internal/listing"
	"github.com/FranksOps/listcrawl/internal/scraper"
	"github.com/FranksOps/listcrawl/internal/storage"
	"github.com/FranksOps/listcrawl/internal/storage/csvbackend"
	"github.com/FranksOps/listcrawl/internal/storage/jsonbackend"
	"github.com/FranksOps/listcrawl/internal/storage/postgres"
	"github.com/FranksOps/listcrawl/internal/storage/sqlite"
	"github.com/FranksOps/listcrawl/pkg/useragent"
)

// openBackend opens the configured record store. It returns nil for "none".
func openBackend(ctx context.Context, sc config.StorageConfig) (storage.Backend, error) {
	var (
		b   storage.Backend
		err error
	)
	switch sc.Backend {
	case config.BackendNone, "":
		return nil, nil
	case config.BackendSQLite:
		b, err = sqlite.New(sc.DSN)
	case config.BackendPostgres:
		b, err = postgres.New(ctx, sc.DSN)
	case config.BackendCSV:
		b, err = csvbackend.New(sc.DSN)
	case config.BackendJSON:
		b, err = jsonbackend.New(sc.DSN)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", sc.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", sc.Backend, err)
	}
	return b, nil
}

// newEngine builds the configured crawl engine. The returned cleanup
// releases its connections.
func newEngine(cfg *config.Config, handler scraper.PageHandler, logger *slog.Logger, observers ...scraper.Observer) (scraper.Engine, func(), error) {
	site, err := url.Parse(cfg.Site)
	if err != nil {
		return nil, nil, fmt.Errorf("parse site: %w", err)
	}

	pool := useragent.NewPool(nil)
	if cfg.UserAgent != "" {
		pool = useragent.Fixed(cfg.UserAgent)
	}

	domains := cfg.AllowedDomains
	if len(domains) == 0 {
		domains = []string{scraper.SiteDomain(site.Hostname())}
	}

	crawlCfg := scraper.CrawlConfig{
		Concurrency:       cfg.Concurrency,
		AllowedDomains:    domains,
		RespectRobots:     cfg.RespectRobots,
		Cookies:           cfg.Cookies,
		UserAgent:         cfg.UserAgent,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Jitter:            cfg.Jitter,
	}

	switch cfg.Engine {
	case config.EngineColly:
		transport, err := fingerprint.Transport(cfg.Fingerprint, fingerprint.Options{})
		if err != nil {
			return nil, nil, fmt.Errorf("setup transport: %w", err)
		}
		if crawlCfg.UserAgent == "" {
			crawlCfg.UserAgent = pool.Random()
		}
		return scraper.NewCollyCrawler(crawlCfg, cfg.Timeout, transport, handler, logger, observers...), func() {}, nil

	default:
		fetcher, err := scraper.NewFetcher(scraper.FetchConfig{
			Timeout:      cfg.Timeout,
			UseCookieJar: cfg.Cookies,
			UAPool:       pool,
			Fingerprint:  cfg.Fingerprint,
		})
		if err != nil {
			return nil, nil, err
		}
		return scraper.NewCrawler(crawlCfg, fetcher, handler, logger, observers...), fetcher.Close, nil
	}
}

// newController builds the page handler for cfg.
func newController(cfg *config.Config, logger *slog.Logger) *listing.Controller {
	return listing.NewController(cfg.Search,
		listing.WithSite(cfg.Site),
		listing.WithSelectors(cfg.Selectors),
		listing.WithLogger(logger),
	)
}

// reportWriter opens path for the report, or returns out when path is empty.
func reportWriter(path string, out io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return out, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create report %s: %w", path, err)
	}
	return f, f.Close, nil
}
