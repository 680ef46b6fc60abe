package csvbackend

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/FranksOps/listcrawl/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// headers defines the CSV column order
var headers = []string{
	"id",
	"query",
	"location",
	"url",
	"name",
	"address",
	"phone",
	"scraped_at",
}

// New creates a new CSV-backed storage.Backend. A header row is written to
// new files.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filePath, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", filePath, err)
	}

	if info.Size() == 0 {
		if err := writeRow(f, headers); err != nil {
			f.Close()
			return nil, err
		}
	}

	return &csvBackend{file: f}, nil
}

func writeRow(w io.Writer, row []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(row); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func (b *csvBackend) Save(ctx context.Context, r *storage.Record) error {
	row := []string{
		r.ID,
		r.Query,
		r.Location,
		r.URL,
		r.Name,
		r.Address,
		r.Phone,
		r.ScrapedAt.Format(time.RFC3339Nano),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	return writeRow(b.file, row)
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek: %w", err)
	}
	defer func() {
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	cr := csv.NewReader(b.file)
	cr.FieldsPerRecord = -1

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []*storage.Record{}, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var matched []*storage.Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(row) != len(headers) {
			continue // skip malformed rows
		}

		scrapedAt, _ := time.Parse(time.RFC3339Nano, row[7])
		r := &storage.Record{
			ID:        row[0],
			Query:     row[1],
			Location:  row[2],
			URL:       row[3],
			Name:      row[4],
			Address:   row[5],
			Phone:     row[6],
			ScrapedAt: scrapedAt,
		}
		if filter.Match(r) {
			matched = append(matched, r)
		}
	}

	slices.Reverse(matched)
	return filter.Page(matched), nil
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
