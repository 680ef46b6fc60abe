package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FranksOps/listcrawl/internal/config"
	"github.com/FranksOps/listcrawl/internal/listing"
	"github.com/FranksOps/listcrawl/internal/metrics"
	"github.com/FranksOps/listcrawl/internal/pipeline"
	"github.com/FranksOps/listcrawl/internal/report"
	"github.com/FranksOps/listcrawl/internal/scraper"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newCrawlCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Search the listing site and scrape the first results",
		Long: `crawl sends one search for --query in --location, follows at most
--max-results links from the results page and extracts the name, address
and phone number of each business. A summary of every record is written
when the crawl finishes.`,
		Example: `  listcrawl crawl --query Restaurants --location Boston --max-results 5`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return runCrawl(cmd, cfg)
		},
	}

	f := cmd.Flags()
	f.String("query", "", "what to search for, e.g. Restaurants")
	f.String("location", "", "where to search, e.g. Boston")
	f.String("max-results", "3", "number of results to follow")
	f.String("site", listing.DefaultSite, "listing site to search")
	f.String("engine", config.EngineNative, "crawl engine: native or colly")
	f.Int("concurrency", 3, "concurrent fetches")
	f.Float64("rps", 1, "requests per second (0 = unlimited)")
	f.Float64("jitter", 0.3, "random variation of the request rate, 0 to 1")
	f.Bool("respect-robots", false, "obey robots.txt")
	f.Bool("cookies", false, "keep cookies between requests")
	f.StringSlice("allowed-domains", nil, "domains the crawl may visit, subdomains included (default the site's domain)")
	f.String("user-agent", "", "fixed User-Agent (default rotates browser agents)")
	f.String("fingerprint", "chrome", "TLS fingerprint: chrome, firefox, safari, random, go")
	f.Duration("timeout", 30*time.Second, "per-request timeout")
	f.Int("metrics-port", 0, "serve Prometheus metrics on this port (0 = off)")
	f.String("format", "text", "report format: text, json or html")
	f.String("output", "", "write the report to this file instead of stdout")

	mustBind(v, cmd, map[string]string{
		"query":               "query",
		"location":            "location",
		"max_results":         "max-results",
		"site":                "site",
		"engine":              "engine",
		"concurrency":         "concurrency",
		"requests_per_second": "rps",
		"jitter":              "jitter",
		"respect_robots":      "respect-robots",
		"cookies":             "cookies",
		"allowed_domains":     "allowed-domains",
		"user_agent":          "user-agent",
		"fingerprint":         "fingerprint",
		"timeout":             "timeout",
		"metrics.port":        "metrics-port",
		"report.format":       "format",
		"report.output":       "output",
	})

	return cmd
}

func runCrawl(cmd *cobra.Command, cfg *config.Config) error {
	logger := cfg.Log.NewLogger(cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl := newController(cfg, logger)
	seed, err := ctrl.InitialRequest()
	if err != nil {
		return err
	}

	collector := report.NewCollector(logger)
	observers := []scraper.Observer{collector}

	backend, err := openBackend(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	if backend != nil {
		defer backend.Close()
		observers = append(observers, pipeline.New(backend, cfg.Search, logger))
	}

	if cfg.Metrics.Port > 0 {
		srv := metrics.Start(cfg.Metrics.Port, logger)
		defer func() {
			if err := srv.Stop(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("failed to stop metrics server", "err", err)
			}
		}()
	}

	engine, cleanup, err := newEngine(cfg, ctrl, logger, observers...)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info("starting crawl",
		"query", cfg.Search.Query,
		"location", cfg.Search.Location,
		"max_results", cfg.Search.MaxResults,
		"engine", cfg.Engine,
		"url", seed.URL,
	)

	stats, runErr := engine.Run(ctx, []listing.FetchRequest{seed})

	summary, ok := collector.Summary()
	if !ok {
		summary = report.GenerateSummary(nil, stats)
	}

	w, closeReport, err := reportWriter(cfg.Report.Output, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if err := report.Write(w, cfg.Report.Format, summary); err != nil {
		_ = closeReport()
		return err
	}
	if err := closeReport(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}

	return runErr
}
