// Package storagetest holds the behaviour every storage.Backend must share.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/FranksOps/listcrawl/internal/storage"
)

// Fixtures returns three records for two searches, oldest first. IDs are
// prefixed so runs against a shared database do not collide.
func Fixtures(prefix string, now time.Time) []*storage.Record {
	now = now.UTC().Truncate(time.Millisecond)
	return []*storage.Record{
		{
			ID:        prefix + "-1",
			Query:     "Restaurants",
			Location:  "Boston",
			URL:       "https://www.yelp.com/biz/" + prefix + "-1",
			Name:      "Neptune Oyster",
			Address:   "63 Salem St, Boston, MA 02113",
			Phone:     "(617) 742-3474",
			ScrapedAt: now.Add(-2 * time.Hour),
		},
		{
			ID:        prefix + "-2",
			Query:     "Restaurants",
			Location:  "Boston",
			URL:       "https://www.yelp.com/biz/" + prefix + "-2",
			Name:      "Giacomo's",
			Address:   "355 Hanover St, Boston, MA 02113",
			Phone:     "",
			ScrapedAt: now.Add(-1 * time.Hour),
		},
		{
			ID:        prefix + "-3",
			Query:     "Plumbers",
			Location:  "Denver, CO",
			URL:       "https://www.yelp.com/biz/" + prefix + "-3",
			Name:      "Pipe, \"Fitters\" & Co",
			Address:   "1 Main St, Denver, CO",
			Phone:     "(303) 555-0100",
			ScrapedAt: now,
		},
	}
}

// Run saves the fixtures into b and checks filtering, ordering and paging.
// b must be empty of records carrying prefix.
func Run(t *testing.T, b storage.Backend, prefix string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	recs := Fixtures(prefix, now)

	for _, r := range recs {
		if err := b.Save(ctx, r); err != nil {
			t.Fatalf("Failed to save %s: %v", r.ID, err)
		}
	}

	byURL, err := b.Query(ctx, storage.Filter{URL: recs[2].URL})
	if err != nil {
		t.Fatalf("Failed to query by URL: %v", err)
	}
	if len(byURL) != 1 {
		t.Fatalf("Expected 1 result for URL filter, got %d", len(byURL))
	}
	got := byURL[0]
	want := recs[2]
	if got.ID != want.ID || got.Name != want.Name || got.Address != want.Address || got.Phone != want.Phone {
		t.Errorf("Round trip mismatch: got %+v, want %+v", got, want)
	}
	if got.Query != want.Query || got.Location != want.Location {
		t.Errorf("Search mismatch: got %q/%q", got.Query, got.Location)
	}
	if !got.ScrapedAt.Equal(want.ScrapedAt) {
		t.Errorf("Expected scraped_at %v, got %v", want.ScrapedAt, got.ScrapedAt)
	}

	// A shared database may hold records from earlier runs.
	own := func(rs []*storage.Record) []*storage.Record {
		var out []*storage.Record
		for _, r := range rs {
			for _, w := range recs {
				if r.ID == w.ID {
					out = append(out, r)
				}
			}
		}
		return out
	}

	all, err := b.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("Failed to query all: %v", err)
	}
	all = own(all)
	if len(all) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(all))
	}
	// newest first
	for i, id := range []string{recs[2].ID, recs[1].ID, recs[0].ID} {
		if all[i].ID != id {
			t.Errorf("Position %d: expected %s, got %s", i, id, all[i].ID)
		}
	}

	boston, err := b.Query(ctx, storage.Filter{Query: "Restaurants", Location: "Boston"})
	if err != nil {
		t.Fatalf("Failed to query by search: %v", err)
	}
	if boston = own(boston); len(boston) != 2 {
		t.Fatalf("Expected 2 results for search filter, got %d", len(boston))
	}

	since := recs[1].ScrapedAt.Add(-time.Minute)
	recent, err := b.Query(ctx, storage.Filter{Since: &since})
	if err != nil {
		t.Fatalf("Failed to query by Since: %v", err)
	}
	if recent = own(recent); len(recent) != 2 {
		t.Fatalf("Expected 2 results for Since filter, got %d", len(recent))
	}

	// Paging is checked within the search of a single fixture.
	paged, err := b.Query(ctx, storage.Filter{URL: recs[0].URL, Limit: 1})
	if err != nil {
		t.Fatalf("Failed to query limit: %v", err)
	}
	if len(paged) != 1 {
		t.Fatalf("Expected 1 result with limit, got %d", len(paged))
	}
	skipped, err := b.Query(ctx, storage.Filter{URL: recs[0].URL, Offset: 1})
	if err != nil {
		t.Fatalf("Failed to query offset: %v", err)
	}
	if len(skipped) != 0 {
		t.Fatalf("Expected 0 results with offset, got %d", len(skipped))
	}
}

// RunPaging checks Limit and Offset on a backend holding only the fixtures.
func RunPaging(t *testing.T, b storage.Backend, prefix string) {
	t.Helper()
	ctx := context.Background()
	recs := Fixtures(prefix, time.Now())
	for _, r := range recs {
		if err := b.Save(ctx, r); err != nil {
			t.Fatalf("Failed to save %s: %v", r.ID, err)
		}
	}

	limited, err := b.Query(ctx, storage.Filter{Limit: 2})
	if err != nil {
		t.Fatalf("Failed to query limit: %v", err)
	}
	if len(limited) != 2 || limited[0].ID != recs[2].ID {
		t.Fatalf("Unexpected limit result: %d records", len(limited))
	}

	offset, err := b.Query(ctx, storage.Filter{Offset: 1})
	if err != nil {
		t.Fatalf("Failed to query offset: %v", err)
	}
	if len(offset) != 2 || offset[0].ID != recs[1].ID {
		t.Fatalf("Unexpected offset result: %d records", len(offset))
	}

	both, err := b.Query(ctx, storage.Filter{Limit: 1, Offset: 2})
	if err != nil {
		t.Fatalf("Failed to query limit+offset: %v", err)
	}
	if len(both) != 1 || both[0].ID != recs[0].ID {
		t.Fatalf("Unexpected limit+offset result: %d records", len(both))
	}
}
