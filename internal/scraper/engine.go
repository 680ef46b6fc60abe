package scraper

import (
	"context"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/FranksOps/listcrawl/internal/listing"
	"golang.org/x/net/publicsuffix"
)

// PageHandler maps a fetched page to its outcome. *listing.Controller is the
// production implementation.
type PageHandler interface {
	HandlePage(p listing.Page) listing.Outcome
	Classify(p listing.Page) listing.PageKind
}

// Engine runs a crawl from seed requests until no work is left.
type Engine interface {
	Run(ctx context.Context, seeds []listing.FetchRequest) (Stats, error)
}

// Item is a record together with the page it came from.
type Item struct {
	Record    listing.ServiceRecord
	URL       string
	ScrapedAt time.Time
}

// Observer is notified of every scraped record and once when the crawl ends.
// OnRecord may be called from several goroutines at once.
type Observer interface {
	OnRecord(ctx context.Context, item Item)
	OnClose(ctx context.Context, stats Stats)
}

// Stats are the aggregate counters of one crawl.
type Stats struct {
	Requests     int
	Pages        int
	ResultsPages int
	DetailPages  int
	Records      int
	FetchErrors  int
	StartTime    time.Time
	FinishTime   time.Time
}

// Elapsed is the wall time between start and finish.
func (s Stats) Elapsed() time.Duration {
	if s.FinishTime.Before(s.StartTime) {
		return 0
	}
	return s.FinishTime.Sub(s.StartTime)
}

// statsRecorder is the concurrency-safe accumulator behind Stats.
type statsRecorder struct {
	mu sync.Mutex
	s  Stats
}

func (r *statsRecorder) start(t time.Time) {
	r.mu.Lock()
	r.s.StartTime = t
	r.mu.Unlock()
}

func (r *statsRecorder) request() {
	r.mu.Lock()
	r.s.Requests++
	r.mu.Unlock()
}

func (r *statsRecorder) fetchError() {
	r.mu.Lock()
	r.s.FetchErrors++
	r.mu.Unlock()
}

func (r *statsRecorder) page(kind listing.PageKind, out listing.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.Pages++
	if kind == listing.KindResults {
		r.s.ResultsPages++
	} else {
		r.s.DetailPages++
	}
	if out.Record != nil {
		r.s.Records++
	}
}

func (r *statsRecorder) finish(t time.Time) Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.FinishTime = t
	return r.s
}

// notifier fans records and the close event out to observers.
type notifier []Observer

func (n notifier) record(ctx context.Context, item Item) {
	for _, o := range n {
		o.OnRecord(ctx, item)
	}
}

func (n notifier) close(ctx context.Context, stats Stats) {
	for _, o := range n {
		o.OnClose(ctx, stats)
	}
}

// hostOf returns the hostname of rawURL, or "" if it does not parse.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// inScope reports whether host equals or is a subdomain of one of domains.
// An empty domain list allows everything.
func inScope(host string, domains []string) bool {
	if len(domains) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, d := range domains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// SiteDomain returns the registrable domain of host, so www.yelp.com scopes
// the crawl to yelp.com and every subdomain. IP addresses and single-label
// hosts are returned unchanged.
func SiteDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return host
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}
