package listing

import (
	"log/slog"
	"strings"
)

// Extractor pulls the contact fields out of a detail page. Each field is
// extracted on its own; a missing one is logged and left empty.
type Extractor struct {
	selectors Selectors
	logger    *slog.Logger
}

// NewExtractor creates an Extractor. Empty selectors fall back to
// DefaultSelectors.
func NewExtractor(sel Selectors, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		selectors: sel.withDefaults(),
		logger:    logger,
	}
}

// Extract always returns a record, even if every field is missing.
func (e *Extractor) Extract(p Page) ServiceRecord {
	return ServiceRecord{
		Name:    e.field(p, FieldName, e.name),
		Address: e.field(p, FieldAddress, e.address),
		Phone:   e.field(p, FieldPhone, e.phone),
	}
}

func (e *Extractor) field(p Page, name string, fn func(Page) string) string {
	v := fn(p)
	if v == "" {
		pageURL := ""
		if u := p.URL(); u != nil {
			pageURL = u.String()
		}
		e.logger.Error("field not found", "field", name, "url", pageURL)
	}
	return v
}

func (e *Extractor) name(p Page) string {
	text, _ := p.Text(e.selectors.Name)
	return strings.TrimSpace(text)
}

func (e *Extractor) phone(p Page) string {
	text, _ := p.Text(e.selectors.Phone)
	return strings.TrimSpace(text)
}

// address joins the line-broken text nodes of the address block.
func (e *Extractor) address(p Page) string {
	nodes := p.TextNodes(e.selectors.AddressLines)
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if n = strings.TrimSpace(n); n != "" {
			parts = append(parts, n)
		}
	}
	return strings.TrimSpace(strings.Join(parts, ", "))
}
