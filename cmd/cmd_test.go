package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/FranksOps/listcrawl/internal/listing"
	"github.com/FranksOps/listcrawl/internal/report"
)

// newSite serves a results page linking three detail pages.
func newSite(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>
<a class="biz-name" href="/biz/one">One</a>
<a class="biz-name" href="/biz/two">Two</a>
<a class="biz-name" href="/biz/three">Three</a>
</body></html>`)
	})
	mux.HandleFunc("/biz/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		name := strings.TrimPrefix(r.URL.Path, "/biz/")
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body>
<h1 class="biz-page-title">%s Cafe</h1>
<strong class="street-address"><address>1 %s St<br>Boston, MA</address></strong>
<span class="biz-phone">(617) 555-0100</span>
</body></html>`, name, name)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func crawlArgs(site string, extra ...string) []string {
	args := []string{
		"crawl",
		"--query", "Coffee",
		"--location", "Boston",
		"--max-results", "2",
		"--site", site,
		"--rps", "0",
		"--fingerprint", "go",
		"--log-level", "error",
	}
	return append(args, extra...)
}

func TestCrawlCommand_TextReport(t *testing.T) {
	var hits atomic.Int32
	site := newSite(t, &hits)

	out, err := execute(t, crawlArgs(site.URL)...)
	if err != nil {
		t.Fatalf("crawl failed: %v", err)
	}

	if !strings.HasPrefix(out, "Scraped 2 Items in ") {
		t.Errorf("unexpected report headline:\n%s", out)
	}
	if !strings.Contains(out, "|Address: 1 one St, Boston, MA") {
		t.Errorf("expected joined address in report:\n%s", out)
	}
	if strings.Contains(out, "three Cafe") {
		t.Error("results beyond the cap must not be scraped")
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("expected 3 requests, got %d", got)
	}
}

func TestCrawlCommand_CollyEngineJSONReport(t *testing.T) {
	var hits atomic.Int32
	site := newSite(t, &hits)
	output := filepath.Join(t.TempDir(), "report.json")

	_, err := execute(t, crawlArgs(site.URL, "--engine", "colly", "--format", "json", "--output", output)...)
	if err != nil {
		t.Fatalf("crawl failed: %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	var s report.Summary
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("invalid json report: %v", err)
	}
	if s.Items != 2 {
		t.Errorf("expected 2 items, got %d", s.Items)
	}
}

func TestCrawlCommand_InvalidConfig(t *testing.T) {
	var hits atomic.Int32
	site := newSite(t, &hits)

	cases := [][]string{
		{"crawl", "--location", "Boston", "--site", site.URL},
		{"crawl", "--query", "Coffee", "--site", site.URL},
		{"crawl", "--query", "Coffee", "--location", "Boston", "--max-results", "zero", "--site", site.URL},
		{"crawl", "--query", "Coffee", "--location", "Boston", "--max-results", "0", "--site", site.URL},
	}
	for _, args := range cases {
		_, err := execute(t, args...)
		if !errors.Is(err, listing.ErrInvalidConfig) {
			t.Errorf("%v: expected ErrInvalidConfig, got %v", args, err)
		}
	}
	if got := hits.Load(); got != 0 {
		t.Errorf("invalid config must not fetch anything, got %d requests", got)
	}
}

func TestRecordsCommand(t *testing.T) {
	var hits atomic.Int32
	site := newSite(t, &hits)
	dsn := filepath.Join(t.TempDir(), "records.ndjson")

	if _, err := execute(t, crawlArgs(site.URL, "--storage", "json", "--dsn", dsn)...); err != nil {
		t.Fatalf("crawl failed: %v", err)
	}

	out, err := execute(t, "records", "--storage", "json", "--dsn", dsn, "--query", "Coffee", "--format", "json")
	if err != nil {
		t.Fatalf("records failed: %v", err)
	}
	var s report.Summary
	if err := json.Unmarshal([]byte(out), &s); err != nil {
		t.Fatalf("invalid json output: %v\n%s", err, out)
	}
	if s.Items != 2 {
		t.Errorf("expected 2 stored records, got %d", s.Items)
	}

	out, err = execute(t, "records", "--storage", "json", "--dsn", dsn, "--query", "Tea")
	if err != nil {
		t.Fatalf("records failed: %v", err)
	}
	if !strings.HasPrefix(out, "Scraped 0 Items") {
		t.Errorf("expected empty listing, got:\n%s", out)
	}
}

func TestRecordsCommand_NoStorage(t *testing.T) {
	_, err := execute(t, "records")
	if !errors.Is(err, errNoStorage) {
		t.Errorf("expected errNoStorage, got %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "listcrawl version") {
		t.Errorf("unexpected output %q", out)
	}
}
