package listing

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"testing"
)

// fakePage is an in-memory Page keyed by selector.
type fakePage struct {
	u     *url.URL
	texts map[string][]string
	attrs map[string][]string
}

func newFakePage(t *testing.T, rawURL string) *fakePage {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("bad url %q: %v", rawURL, err)
	}
	return &fakePage{u: u, texts: map[string][]string{}, attrs: map[string][]string{}}
}

func (p *fakePage) URL() *url.URL { return p.u }

func (p *fakePage) Text(selector string) (string, bool) {
	vals := p.texts[selector]
	if len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

func (p *fakePage) TextNodes(selector string) []string { return p.texts[selector] }

func (p *fakePage) Attrs(selector, attr string) []string { return p.attrs[selector+"@"+attr] }

func (p *fakePage) Resolve(ref string) (string, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return p.u.ResolveReference(r).String(), nil
}

func TestSearchConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  SearchConfig
		want []string
	}{
		{"valid", SearchConfig{Query: "Restaurants", Location: "Boston", MaxResults: 1}, nil},
		{"empty query", SearchConfig{Location: "Boston", MaxResults: 3}, []string{"query"}},
		{"blank location", SearchConfig{Query: "Plumbers", Location: "   ", MaxResults: 3}, []string{"location"}},
		{"zero cap", SearchConfig{Query: "Plumbers", Location: "Boston"}, []string{"max results"}},
		{"negative cap", SearchConfig{Query: "Plumbers", Location: "Boston", MaxResults: -2}, []string{"max results"}},
		{"everything", SearchConfig{}, []string{"query", "location", "max results"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if len(tt.want) == 0 {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("expected error to mention %q, got %v", w, err)
				}
			}
		})
	}
}

func TestBuildInitialRequest_Invalid(t *testing.T) {
	invalid := []SearchConfig{
		{Query: "", Location: "Boston", MaxResults: 3},
		{Query: "Restaurants", Location: "", MaxResults: 3},
		{Query: "Restaurants", Location: "Boston", MaxResults: 0},
		{Query: "Restaurants", Location: "Boston", MaxResults: -1},
	}
	for _, cfg := range invalid {
		req, err := NewController(cfg).InitialRequest()
		if err == nil {
			t.Errorf("expected error for %+v, got request %+v", cfg, req)
		}
		if req.URL != "" {
			t.Errorf("expected no request for %+v, got %q", cfg, req.URL)
		}
	}
}

func TestBuildInitialRequest_URL(t *testing.T) {
	c := NewController(SearchConfig{Query: "Restaurants", Location: "Boston", MaxResults: 5})
	req, err := c.InitialRequest()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "https://www.yelp.com/search?find_desc=Restaurants&find_loc=Boston"
	if req.URL != want {
		t.Errorf("expected %s, got %s", want, req.URL)
	}
}

func TestBuildInitialRequest_Encodes(t *testing.T) {
	req, err := BuildInitialRequest("http://127.0.0.1:8080/", SearchConfig{
		Query:      "Fish & Chips",
		Location:   "San Francisco, CA",
		MaxResults: 1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "http://127.0.0.1:8080/search?find_desc=Fish+%26+Chips&find_loc=San+Francisco%2C+CA"
	if req.URL != want {
		t.Errorf("expected %s, got %s", want, req.URL)
	}

	u, _ := url.Parse(req.URL)
	if got := u.Query().Get("find_desc"); got != "Fish & Chips" {
		t.Errorf("find_desc did not round trip: %q", got)
	}
}

func TestBuildInitialRequest_BadSite(t *testing.T) {
	_, err := BuildInitialRequest("not a site", SearchConfig{Query: "a", Location: "b", MaxResults: 1})
	if err == nil {
		t.Fatal("expected error for relative site")
	}
}

func TestController_Classify(t *testing.T) {
	c := NewController(SearchConfig{Query: "a", Location: "b", MaxResults: 1})

	cases := map[string]PageKind{
		"https://www.yelp.com/search?find_desc=a&find_loc=b": KindResults,
		"https://www.yelp.com/search/snippet?x=1":            KindResults,
		"https://www.yelp.com/biz/joes-pizza-boston":         KindDetail,
		"https://www.yelp.com/searchlight":                   KindDetail,
		"https://www.yelp.com/":                              KindDetail,
	}
	for raw, want := range cases {
		if got := c.Classify(newFakePage(t, raw)); got != want {
			t.Errorf("%s: expected %s, got %s", raw, want, got)
		}
	}
}

func TestHandlePage_CapsLinksInOrder(t *testing.T) {
	c := NewController(SearchConfig{Query: "a", Location: "b", MaxResults: 2})

	p := newFakePage(t, "https://www.yelp.com/search?find_desc=a&find_loc=b")
	p.attrs["a.biz-name@href"] = []string{"/biz/a", "/biz/b", "/biz/c", "/biz/d"}

	out := c.HandlePage(p)
	if out.Record != nil {
		t.Fatalf("results page must not produce a record")
	}

	var got []string
	for _, r := range out.Requests {
		got = append(got, r.URL)
	}
	want := []string{"https://www.yelp.com/biz/a", "https://www.yelp.com/biz/b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestHandlePage_NonPositiveCap(t *testing.T) {
	for _, limit := range []int{0, -1} {
		t.Run(fmt.Sprint(limit), func(t *testing.T) {
			c := NewController(SearchConfig{Query: "a", Location: "b", MaxResults: limit})

			p := newFakePage(t, "https://www.yelp.com/search?find_desc=a&find_loc=b")
			p.attrs["a.biz-name@href"] = []string{"/biz/a", "/biz/b"}

			out := c.HandlePage(p)
			if out.Record != nil || len(out.Requests) != 0 {
				t.Errorf("expected no output with max results %d, got %+v", limit, out)
			}
		})
	}
}

func TestHandlePage_FewerLinksThanCap(t *testing.T) {
	c := NewController(SearchConfig{Query: "a", Location: "b", MaxResults: 10})

	p := newFakePage(t, "https://www.yelp.com/search?find_desc=a&find_loc=b")
	p.attrs["a.biz-name@href"] = []string{"/biz/z", "", "https://other.example/biz/y"}

	out := c.HandlePage(p)
	if len(out.Requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(out.Requests))
	}
	if out.Requests[0].URL != "https://www.yelp.com/biz/z" || out.Requests[1].URL != "https://other.example/biz/y" {
		t.Errorf("unexpected requests: %+v", out.Requests)
	}
}

func TestHandlePage_NoLinks(t *testing.T) {
	c := NewController(SearchConfig{Query: "a", Location: "b", MaxResults: 3})
	p := newFakePage(t, "https://www.yelp.com/search?find_desc=a&find_loc=b")

	out := c.HandlePage(p)
	if !out.Empty() {
		t.Errorf("expected empty outcome, got %+v", out)
	}
}

func TestHandlePage_DetailPage(t *testing.T) {
	c := NewController(SearchConfig{Query: "a", Location: "b", MaxResults: 3}, WithLogger(discardLogger()))

	p := newFakePage(t, "https://www.yelp.com/biz/joes")
	p.texts["h1.biz-page-title"] = []string{"  Joe's  "}
	p.texts["strong.street-address address"] = []string{"1 Main St", "Boston, MA"}
	p.texts["span.biz-phone"] = []string{"(617) 555-0100"}

	out := c.HandlePage(p)
	if len(out.Requests) != 0 {
		t.Fatalf("detail page must not produce requests")
	}
	if out.Record == nil {
		t.Fatal("expected a record")
	}
	want := ServiceRecord{Name: "Joe's", Address: "1 Main St, Boston, MA", Phone: "(617) 555-0100"}
	if *out.Record != want {
		t.Errorf("expected %+v, got %+v", want, *out.Record)
	}
}

func TestHandlePage_CustomSelectorsAndSite(t *testing.T) {
	c := NewController(
		SearchConfig{Query: "a", Location: "b", MaxResults: 1},
		WithSite("http://listings.test"),
		WithSelectors(Selectors{ResultLinks: "li.result a"}),
	)

	req, err := c.InitialRequest()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(req.URL, "http://listings.test/search?") {
		t.Errorf("unexpected initial url %s", req.URL)
	}

	p := newFakePage(t, req.URL)
	p.attrs["li.result a@href"] = []string{"/biz/1", "/biz/2"}
	out := c.HandlePage(p)
	if len(out.Requests) != 1 || out.Requests[0].URL != "http://listings.test/biz/1" {
		t.Errorf("unexpected requests: %+v", out.Requests)
	}
}

func TestHandlePage_Concurrent(t *testing.T) {
	c := NewController(SearchConfig{Query: "a", Location: "b", MaxResults: 2}, WithLogger(discardLogger()))

	results := newFakePage(t, "https://www.yelp.com/search?find_desc=a&find_loc=b")
	results.attrs["a.biz-name@href"] = []string{"/biz/a", "/biz/b", "/biz/c"}
	detail := newFakePage(t, "https://www.yelp.com/biz/a")
	detail.texts["h1.biz-page-title"] = []string{"A"}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if n := len(c.HandlePage(results).Requests); n != 2 {
				t.Errorf("expected 2 requests, got %d", n)
			}
		}()
		go func() {
			defer wg.Done()
			if rec := c.HandlePage(detail).Record; rec == nil || rec.Name != "A" {
				t.Errorf("unexpected record %+v", rec)
			}
		}()
	}
	wg.Wait()
}
