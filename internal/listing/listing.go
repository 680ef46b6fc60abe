// Package listing turns fetched business-listing pages into follow-up fetch
// requests or contact records. It owns no I/O: a host crawl engine fetches
// pages and feeds them in, and collects whatever comes back out.
package listing

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidConfig is wrapped by every SearchConfig validation failure.
var ErrInvalidConfig = errors.New("invalid search config")

// SearchConfig describes a single search. It is used by value and never
// modified after construction.
type SearchConfig struct {
	Query      string
	Location   string
	MaxResults int
}

// Validate reports every problem with the config at once. A config that does
// not validate must not produce any request.
func (c SearchConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Query) == "" {
		errs = append(errs, fmt.Errorf("%w: query is required", ErrInvalidConfig))
	}
	if strings.TrimSpace(c.Location) == "" {
		errs = append(errs, fmt.Errorf("%w: location is required", ErrInvalidConfig))
	}
	if c.MaxResults < 1 {
		errs = append(errs, fmt.Errorf("%w: max results must be at least 1, got %d", ErrInvalidConfig, c.MaxResults))
	}
	return errors.Join(errs...)
}

// ServiceRecord holds the contact data extracted from one detail page.
// Fields that were not found on the page are empty.
type ServiceRecord struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

// Missing returns the names of the empty fields, in declaration order.
func (r ServiceRecord) Missing() []string {
	var missing []string
	if r.Name == "" {
		missing = append(missing, FieldName)
	}
	if r.Address == "" {
		missing = append(missing, FieldAddress)
	}
	if r.Phone == "" {
		missing = append(missing, FieldPhone)
	}
	return missing
}

// FetchRequest asks the host engine to fetch a URL and hand the page back.
type FetchRequest struct {
	URL string
}

// Outcome is what a single page produces: either follow-up requests (results
// page) or one record (detail page). An empty Outcome is valid.
type Outcome struct {
	Requests []FetchRequest
	Record   *ServiceRecord
}

// Empty reports whether the page produced nothing.
func (o Outcome) Empty() bool {
	return len(o.Requests) == 0 && o.Record == nil
}

// PageKind is the structural classification of a fetched page.
type PageKind int

const (
	KindDetail PageKind = iota
	KindResults
)

func (k PageKind) String() string {
	switch k {
	case KindResults:
		return "results"
	case KindDetail:
		return "detail"
	default:
		return "unknown"
	}
}

// Page is the read-only view of a fetched HTML page the core needs.
type Page interface {
	// URL is the address the page was fetched from.
	URL() *url.URL
	// Text returns the text content of the first element matching selector.
	Text(selector string) (string, bool)
	// TextNodes returns the text nodes below every match, in document order.
	TextNodes(selector string) []string
	// Attrs returns attr of every matching element that carries it.
	Attrs(selector, attr string) []string
	// Resolve resolves ref against the page's base URL.
	Resolve(ref string) (string, error)
}
