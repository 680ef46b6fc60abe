package listing

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// Controller classifies fetched pages and decides what each one produces.
// It holds only configuration and is safe for concurrent use.
type Controller struct {
	cfg       SearchConfig
	site      string
	selectors Selectors
	extractor *Extractor
}

// Option customizes a Controller.
type Option func(*controllerOptions)

type controllerOptions struct {
	site      string
	selectors Selectors
	logger    *slog.Logger
}

// WithSite overrides the scheme and host searches are sent to.
func WithSite(site string) Option {
	return func(o *controllerOptions) {
		o.site = site
	}
}

// WithSelectors overrides the page selectors. Empty entries keep their default.
func WithSelectors(sel Selectors) Option {
	return func(o *controllerOptions) {
		o.selectors = sel
	}
}

// WithLogger sets the logger used for extraction diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *controllerOptions) {
		o.logger = logger
	}
}

// NewController captures cfg and the options. The config is not validated
// here; InitialRequest does that.
func NewController(cfg SearchConfig, opts ...Option) *Controller {
	o := controllerOptions{site: DefaultSite}
	for _, opt := range opts {
		opt(&o)
	}
	if o.site == "" {
		o.site = DefaultSite
	}
	sel := o.selectors.withDefaults()

	return &Controller{
		cfg:       cfg,
		site:      strings.TrimRight(o.site, "/"),
		selectors: sel,
		extractor: NewExtractor(sel, o.logger),
	}
}

// Config returns the search config the controller was built with.
func (c *Controller) Config() SearchConfig {
	return c.cfg
}

// InitialRequest returns the request for the first results page, or the
// validation error if the config is unusable.
func (c *Controller) InitialRequest() (FetchRequest, error) {
	return BuildInitialRequest(c.site, c.cfg)
}

// BuildInitialRequest builds the search URL for cfg on site. Query and
// location are percent-encoded.
func BuildInitialRequest(site string, cfg SearchConfig) (FetchRequest, error) {
	if err := cfg.Validate(); err != nil {
		return FetchRequest{}, err
	}

	base, err := url.Parse(strings.TrimRight(site, "/") + SearchPath)
	if err != nil {
		return FetchRequest{}, fmt.Errorf("parse site %q: %w", site, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return FetchRequest{}, fmt.Errorf("site %q must be an absolute URL", site)
	}

	// url.Values.Encode sorts keys, which would put find_loc first.
	base.RawQuery = queryParam + "=" + url.QueryEscape(cfg.Query) +
		"&" + locationParam + "=" + url.QueryEscape(cfg.Location)

	return FetchRequest{URL: base.String()}, nil
}

// Classify decides from the URL alone whether p is a results page.
func (c *Controller) Classify(p Page) PageKind {
	u := p.URL()
	if u == nil {
		return KindDetail
	}
	path := u.Path
	if path == SearchPath || strings.HasPrefix(path, SearchPath+"/") {
		return KindResults
	}
	return KindDetail
}

// HandlePage maps a fetched page to its outcome. Results pages yield at most
// MaxResults follow-up requests in document order; detail pages yield exactly
// one record.
func (c *Controller) HandlePage(p Page) Outcome {
	if c.Classify(p) == KindResults {
		return Outcome{Requests: c.followLinks(p)}
	}
	rec := c.extractor.Extract(p)
	return Outcome{Record: &rec}
}

func (c *Controller) followLinks(p Page) []FetchRequest {
	if c.cfg.MaxResults < 1 {
		return nil
	}
	hrefs := p.Attrs(c.selectors.ResultLinks, "href")
	if len(hrefs) == 0 {
		return nil
	}

	limit := min(c.cfg.MaxResults, len(hrefs))
	reqs := make([]FetchRequest, 0, limit)
	for _, href := range hrefs {
		if len(reqs) == c.cfg.MaxResults {
			break
		}
		href = strings.TrimSpace(href)
		if href == "" {
			continue
		}
		resolved, err := p.Resolve(href)
		if err != nil {
			continue
		}
		reqs = append(reqs, FetchRequest{URL: resolved})
	}
	return reqs
}
