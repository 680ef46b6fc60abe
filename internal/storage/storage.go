package storage

import (
	"context"
	"time"
)

// Record is a scraped service record as persisted, with the search it came
// from and the page it was extracted from.
type Record struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Location  string    `json:"location"`
	URL       string    `json:"url"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// Filter selects stored records. Zero values match everything.
type Filter struct {
	Query    string
	Location string
	URL      string
	Since    *time.Time
	Limit    int
	Offset   int
}

// Match reports whether r passes the filter, ignoring Limit and Offset.
func (f Filter) Match(r *Record) bool {
	if f.Query != "" && r.Query != f.Query {
		return false
	}
	if f.Location != "" && r.Location != f.Location {
		return false
	}
	if f.URL != "" && r.URL != f.URL {
		return false
	}
	if f.Since != nil && r.ScrapedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Page applies Offset and Limit to an already filtered, ordered slice.
func (f Filter) Page(records []*Record) []*Record {
	if f.Offset > 0 {
		if f.Offset >= len(records) {
			return []*Record{}
		}
		records = records[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(records) {
		records = records[:f.Limit]
	}
	return records
}

// Backend stores and queries scraped records. Query returns newest first.
type Backend interface {
	Save(ctx context.Context, record *Record) error
	Query(ctx context.Context, filter Filter) ([]*Record, error)
	Close() error
}
