package postgres

import (
	"context"
	"fmt"

	"github.com/FranksOps/listcrawl/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
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
	scraped_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS service_records_scraped_at ON service_records (scraped_at);
`

// New creates a new Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, r *storage.Record) error {
	query := `
	INSERT INTO service_records (
		id, query, location, url, name, address, phone, scraped_at
	) VALUES (@id, @query, @location, @url, @name, @address, @phone, @scraped_at)
	`

	_, err := b.pool.Exec(ctx, query, pgx.NamedArgs{
		"id":         r.ID,
		"query":      r.Query,
		"location":   r.Location,
		"url":        r.URL,
		"name":       r.Name,
		"address":    r.Address,
		"phone":      r.Phone,
		"scraped_at": r.ScrapedAt,
	})
	if err != nil {
		return fmt.Errorf("insert record %s: %w", r.ID, err)
	}
	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	query := `SELECT id, query, location, url, name, address, phone, scraped_at FROM service_records WHERE 1=1`
	args := []any{}
	paramCount := 1

	add := func(clause string, v any) {
		query += fmt.Sprintf(clause, paramCount)
		args = append(args, v)
		paramCount++
	}

	if filter.Query != "" {
		add(` AND query = $%d`, filter.Query)
	}
	if filter.Location != "" {
		add(` AND location = $%d`, filter.Location)
	}
	if filter.URL != "" {
		add(` AND url = $%d`, filter.URL)
	}
	if filter.Since != nil {
		add(` AND scraped_at >= $%d`, *filter.Since)
	}

	query += ` ORDER BY scraped_at DESC`

	if filter.Limit > 0 {
		add(` LIMIT $%d`, filter.Limit)
	}
	if filter.Offset > 0 {
		add(` OFFSET $%d`, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*storage.Record, error) {
		var r storage.Record
		err := row.Scan(&r.ID, &r.Query, &r.Location, &r.URL, &r.Name, &r.Address, &r.Phone, &r.ScrapedAt)
		return &r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	return results, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
