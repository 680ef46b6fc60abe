package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/FranksOps/listcrawl/internal/listing"
	"github.com/FranksOps/listcrawl/internal/scraper"
	"github.com/FranksOps/listcrawl/internal/storage"
	"github.com/google/uuid"
)

// Pipeline persists every scraped record to a storage backend, tagged with
// the search that produced it. A failed save is logged and counted; it never
// stops the crawl.
type Pipeline struct {
	backend storage.Backend
	search  listing.SearchConfig
	logger  *slog.Logger

	mu     sync.Mutex
	saved  int
	failed int
}

var _ scraper.Observer = (*Pipeline)(nil)

// New creates a Pipeline writing to backend.
func New(backend storage.Backend, search listing.SearchConfig, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{backend: backend, search: search, logger: logger}
}

// OnRecord saves one item.
func (p *Pipeline) OnRecord(ctx context.Context, item scraper.Item) {
	rec := &storage.Record{
		ID:        uuid.NewString(),
		Query:     p.search.Query,
		Location:  p.search.Location,
		URL:       item.URL,
		Name:      item.Record.Name,
		Address:   item.Record.Address,
		Phone:     item.Record.Phone,
		ScrapedAt: item.ScrapedAt,
	}

	err := p.backend.Save(ctx, rec)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.failed++
		p.logger.Error("failed to save record", "url", item.URL, "err", err)
		return
	}
	p.saved++
}

// OnClose logs how many records were persisted.
func (p *Pipeline) OnClose(ctx context.Context, _ scraper.Stats) {
	saved, failed := p.Counts()
	p.logger.Info("records persisted", "saved", saved, "failed", failed)
}

// Counts returns the number of saved and failed records so far.
func (p *Pipeline) Counts() (saved, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saved, p.failed
}
