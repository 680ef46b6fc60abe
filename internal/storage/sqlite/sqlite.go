package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/FranksOps/listcrawl/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS service_records (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	location TEXT NOT NULL,
	url TEXT NOT NULL,
	name TEXT NOT NULL,
	address TEXT NOT NULL,
	phone TEXT NOT NULL,
	scraped_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS service_records_scraped_at ON service_records (scraped_at);
`

// New creates a new SQLite-backed storage.Backend.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, r *storage.Record) error {
	query := `
	INSERT INTO service_records (
		id, query, location, url, name, address, phone, scraped_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := b.db.ExecContext(ctx, query,
		r.ID,
		r.Query,
		r.Location,
		r.URL,
		r.Name,
		r.Address,
		r.Phone,
		r.ScrapedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert record %s: %w", r.ID, err)
	}
	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	query := `SELECT id, query, location, url, name, address, phone, scraped_at FROM service_records WHERE 1=1`
	args := []any{}

	if filter.Query != "" {
		query += ` AND query = ?`
		args = append(args, filter.Query)
	}
	if filter.Location != "" {
		query += ` AND location = ?`
		args = append(args, filter.Location)
	}
	if filter.URL != "" {
		query += ` AND url = ?`
		args = append(args, filter.URL)
	}
	if filter.Since != nil {
		query += ` AND scraped_at >= ?`
		args = append(args, filter.Since.UTC())
	}

	query += ` ORDER BY scraped_at DESC`

	// SQLite only accepts OFFSET after a LIMIT; -1 means no limit.
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	results := []*storage.Record{}
	for rows.Next() {
		var r storage.Record
		err := rows.Scan(&r.ID, &r.Query, &r.Location, &r.URL, &r.Name, &r.Address, &r.Phone, &r.ScrapedAt)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return results, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
