package listing

const (
	// DefaultSite is the scheme and host searches are sent to.
	DefaultSite = "https://www.yelp.com"
	// SearchPath is the results endpoint. Pages under it are results pages.
	SearchPath = "/search"

	queryParam    = "find_desc"
	locationParam = "find_loc"
)

// Field names used in diagnostics and metrics.
const (
	FieldName    = "name"
	FieldAddress = "address"
	FieldPhone   = "phone"
)

// Selectors are the CSS targets queried on results and detail pages.
type Selectors struct {
	ResultLinks  string `mapstructure:"result_links"`
	Name         string `mapstructure:"name"`
	AddressLines string `mapstructure:"address_lines"`
	Phone        string `mapstructure:"phone"`
}

// DefaultSelectors returns the selectors for the classic listing layout.
func DefaultSelectors() Selectors {
	return Selectors{
		ResultLinks:  "a.biz-name",
		Name:         "h1.biz-page-title",
		AddressLines: "strong.street-address address",
		Phone:        "span.biz-phone",
	}
}

// withDefaults fills any empty selector from DefaultSelectors.
func (s Selectors) withDefaults() Selectors {
	d := DefaultSelectors()
	if s.ResultLinks == "" {
		s.ResultLinks = d.ResultLinks
	}
	if s.Name == "" {
		s.Name = d.Name
	}
	if s.AddressLines == "" {
		s.AddressLines = d.AddressLines
	}
	if s.Phone == "" {
		s.Phone = d.Phone
	}
	return s
}
