package report

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/FranksOps/listcrawl/internal/scraper"
	"github.com/FranksOps/listcrawl/internal/storage"
)

// Entry is one scraped record as shown in a report.
type Entry struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	URL     string `json:"url"`
}

// Summary describes a finished crawl, or a set of stored records.
type Summary struct {
	Items       int           `json:"items"`
	Entries     []Entry       `json:"entries"`
	Requests    int           `json:"requests"`
	Pages       int           `json:"pages"`
	FetchErrors int           `json:"fetch_errors"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time"`
	Duration    time.Duration `json:"duration"`
	Elapsed     string        `json:"elapsed"`
}

// GenerateSummary builds a Summary from crawl items and stats, keeping the
// order in which items were scraped.
func GenerateSummary(items []scraper.Item, stats scraper.Stats) Summary {
	entries := make([]Entry, 0, len(items))
	for _, it := range items {
		entries = append(entries, Entry{
			Name:    it.Record.Name,
			Address: it.Record.Address,
			Phone:   it.Record.Phone,
			URL:     it.URL,
		})
	}

	d := stats.Elapsed()
	return Summary{
		Items:       len(entries),
		Entries:     entries,
		Requests:    stats.Requests,
		Pages:       stats.Pages,
		FetchErrors: stats.FetchErrors,
		StartTime:   stats.StartTime,
		EndTime:     stats.FinishTime,
		Duration:    d,
		Elapsed:     FormatElapsed(d),
	}
}

// FromRecords builds a Summary of stored records. The time span is that of
// the records' scrape times.
func FromRecords(records []*storage.Record) Summary {
	s := Summary{Entries: make([]Entry, 0, len(records))}
	for _, r := range records {
		s.Entries = append(s.Entries, Entry{Name: r.Name, Address: r.Address, Phone: r.Phone, URL: r.URL})
		if s.StartTime.IsZero() || r.ScrapedAt.Before(s.StartTime) {
			s.StartTime = r.ScrapedAt
		}
		if r.ScrapedAt.After(s.EndTime) {
			s.EndTime = r.ScrapedAt
		}
	}
	s.Items = len(s.Entries)
	s.Duration = s.EndTime.Sub(s.StartTime)
	s.Elapsed = FormatElapsed(s.Duration)
	return s
}

// FormatElapsed renders d as "M minutes and S seconds", with seconds to one
// decimal place.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int(d / time.Minute)
	seconds := (d % time.Minute).Seconds()
	return fmt.Sprintf("%d minutes and %.1f seconds", minutes, seconds)
}

// Headline is the first line of the text report.
func Headline(s Summary) string {
	return fmt.Sprintf("Scraped %d Items in %s:", s.Items, s.Elapsed)
}

var funcs = template.FuncMap{
	"headline": Headline,
	"rule":     func() string { return "+" + strings.Repeat("=", 30) },
}

const textTmpl = `{{headline .}}
    {{rule}}
{{- range .Entries}}
    |Name:    {{.Name}}
    |Address: {{.Address}}
    |Phone:   {{.Phone}}
    {{rule}}
{{- end}}
Requests:      {{.Requests}}
Pages:         {{.Pages}}
Fetch Errors:  {{.FetchErrors}}
`

var textReport = template.Must(template.New("textReport").Funcs(funcs).Parse(textTmpl))

// WriteText writes the boxed listing of every record, followed by the crawl
// counters.
func WriteText(w io.Writer, summary Summary) error {
	if err := textReport.Execute(w, summary); err != nil {
		return fmt.Errorf("render text report: %w", err)
	}
	return nil
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}
	return nil
}

const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>Listing Crawl Report</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>{{headline .}}</h1>
  <p><strong>Time:</strong> {{.StartTime.Format "2006-01-02 15:04:05"}} to {{.EndTime.Format "2006-01-02 15:04:05"}}</p>

  <div class="stat-card">
    <div>Records</div>
    <div class="stat-val">{{.Items}}</div>
  </div>
  <div class="stat-card">
    <div>Requests</div>
    <div class="stat-val">{{.Requests}}</div>
  </div>
  <div class="stat-card">
    <div>Fetch Errors</div>
    <div class="stat-val" style="color: {{if gt .FetchErrors 0}}red{{else}}green{{end}};">{{.FetchErrors}}</div>
  </div>

  <h3>Records</h3>
  <table>
    <tr><th>Name</th><th>Address</th><th>Phone</th></tr>
    {{- range .Entries}}
    <tr><td><a href="{{.URL}}">{{.Name}}</a></td><td>{{.Address}}</td><td>{{.Phone}}</td></tr>
    {{- else}}
    <tr><td colspan="3">None</td></tr>
    {{- end}}
  </table>
</body>
</html>
`

var htmlReport = htmltemplate.Must(htmltemplate.New("htmlReport").Funcs(htmltemplate.FuncMap{"headline": Headline}).Parse(htmlTmpl))

// WriteHTML writes a basic HTML report to the provided writer. Record fields
// are escaped.
func WriteHTML(w io.Writer, summary Summary) error {
	if err := htmlReport.Execute(w, summary); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}
	return nil
}

// Write renders summary in the named format: text, json or html.
func Write(w io.Writer, format string, summary Summary) error {
	switch strings.ToLower(format) {
	case "", "text":
		return WriteText(w, summary)
	case "json":
		return WriteJSON(w, summary)
	case "html":
		return WriteHTML(w, summary)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}
