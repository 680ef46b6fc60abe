package report

import (
	"context"
	"log/slog"
	"sync"

	"github.com/FranksOps/listcrawl/internal/scraper"
)

// Collector keeps every scraped item and, when the crawl closes, logs the
// summary: the headline at info followed by one info line per record.
type Collector struct {
	logger *slog.Logger

	mu      sync.Mutex
	items   []scraper.Item
	summary Summary
	closed  bool
}

var _ scraper.Observer = (*Collector)(nil)

// NewCollector creates an empty Collector.
func NewCollector(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{logger: logger}
}

// OnRecord appends item.
func (c *Collector) OnRecord(_ context.Context, item scraper.Item) {
	c.mu.Lock()
	c.items = append(c.items, item)
	c.mu.Unlock()
}

// OnClose builds the summary and logs it.
func (c *Collector) OnClose(_ context.Context, stats scraper.Stats) {
	c.mu.Lock()
	s := GenerateSummary(c.items, stats)
	c.summary = s
	c.closed = true
	c.mu.Unlock()

	c.logger.Info(Headline(s),
		"requests", s.Requests,
		"pages", s.Pages,
		"fetch_errors", s.FetchErrors,
	)
	for _, e := range s.Entries {
		c.logger.Info("record", "name", e.Name, "address", e.Address, "phone", e.Phone, "url", e.URL)
	}
}

// Summary returns the summary built on close, and false before that.
func (c *Collector) Summary() (Summary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary, c.closed
}
