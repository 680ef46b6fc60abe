// Package htmlpage adapts parsed HTML documents to listing.Page.
package htmlpage

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/FranksOps/listcrawl/internal/listing"
	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"golang.org/x/net/html"
)

var _ listing.Page = (*Document)(nil)

// Document is a read-only page backed by a goquery selection.
type Document struct {
	url  *url.URL
	base *url.URL
	root *goquery.Selection
}

// Parse reads an HTML body fetched from rawURL.
func Parse(rawURL string, body io.Reader) (*Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return FromDocument(u, doc), nil
}

// FromDocument wraps an already parsed goquery document.
func FromDocument(u *url.URL, doc *goquery.Document) *Document {
	return &Document{url: u, base: baseURL(u, doc.Selection), root: doc.Selection}
}

// FromColly wraps the element colly hands to an OnHTML("html") callback.
func FromColly(e *colly.HTMLElement) *Document {
	return &Document{url: e.Request.URL, base: baseURL(e.Request.URL, e.DOM), root: e.DOM}
}

// baseURL honors a <base href> the way browsers resolve relative links.
func baseURL(u *url.URL, root *goquery.Selection) *url.URL {
	if u == nil {
		return nil
	}
	href, ok := root.Find("base[href]").First().Attr("href")
	if !ok {
		return u
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return u
	}
	return u.ResolveReference(ref)
}

func (d *Document) URL() *url.URL {
	return d.url
}

func (d *Document) Text(selector string) (string, bool) {
	sel := d.root.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	return sel.Text(), true
}

func (d *Document) TextNodes(selector string) []string {
	var nodes []string
	d.root.Find(selector).Each(func(_ int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			collectText(n, &nodes)
		}
	})
	return nodes
}

// collectText walks n depth-first and appends every text node.
func collectText(n *html.Node, out *[]string) {
	if n.Type == html.TextNode {
		*out = append(*out, n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, out)
	}
}

func (d *Document) Attrs(selector, attr string) []string {
	var vals []string
	d.root.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr(attr); ok {
			vals = append(vals, v)
		}
	})
	return vals
}

func (d *Document) Resolve(ref string) (string, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse link %q: %w", ref, err)
	}
	if d.base == nil {
		return r.String(), nil
	}
	return d.base.ResolveReference(r).String(), nil
}
