package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/FranksOps/serprank/internal/device"
	"github.com/FranksOps/serprank/internal/serp"
	"github.com/FranksOps/serprank/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure Backend implements both storage interfaces
var (
	_ storage.Counter = (*Backend)(nil)
	_ storage.Archive = (*Backend)(nil)
)

// CounterName is the row the pagination counter is kept under.
const CounterName = "request_counter"

// Backend keeps the pagination counter and the run archive in Postgres.
type Backend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS counters (
	name TEXT PRIMARY KEY,
	value BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS rank_records (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	keyword TEXT NOT NULL,
	target TEXT NOT NULL,
	rank INTEGER,
	url TEXT,
	run_date DATE NOT NULL,
	device TEXT NOT NULL,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	reason TEXT,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS rank_records_keyword ON rank_records (keyword, created_at);
`

// New connects to Postgres at dsn and creates the schema.
func New(ctx context.Context, dsn string) (*Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	_, err = pool.Exec(ctx, schema)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}

	return &Backend{pool: pool}, nil
}

func (b *Backend) Get(ctx context.Context) (int, error) {
	var n int64
	err := b.pool.QueryRow(ctx, `SELECT value FROM counters WHERE name = $1`, CounterName).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres get counter: %w", err)
	}
	return int(n), nil
}

func (b *Backend) Set(ctx context.Context, n int) error {
	_, err := b.pool.Exec(ctx, `
	INSERT INTO counters (name, value) VALUES ($1, $2)
	ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value
	`, CounterName, int64(n))
	if err != nil {
		return fmt.Errorf("postgres set counter: %w", err)
	}
	return nil
}

func (b *Backend) Save(ctx context.Context, records []*storage.ArchivedRecord) error {
	query := `
	INSERT INTO rank_records (
		id, run_id, seq, keyword, target, rank, url, run_date, device, type, status, reason, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	batch := &pgx.Batch{}
	for i, r := range records {
		batch.Queue(query,
			r.ID,
			r.RunID,
			i,
			r.Record.Keyword,
			r.Record.Target,
			nullInt(r.Record.Rank),
			nullString(r.Record.URL),
			r.Record.Date,
			string(r.Record.Device),
			r.Record.Type,
			string(r.Record.Status),
			r.Record.Reason,
			r.CreatedAt,
		)
	}

	if err := b.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres insert records: %w", err)
	}
	return nil
}

func (b *Backend) Query(ctx context.Context, filter storage.Filter) ([]*storage.ArchivedRecord, error) {
	query := `SELECT id, run_id, keyword, target, rank, url, run_date, device, type, status, reason, created_at FROM rank_records WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.RunID != "" {
		query += fmt.Sprintf(` AND run_id = $%d`, paramCount)
		args = append(args, filter.RunID)
		paramCount++
	}
	if filter.Keyword != "" {
		query += fmt.Sprintf(` AND keyword = $%d`, paramCount)
		args = append(args, filter.Keyword)
		paramCount++
	}
	if filter.Device != "" {
		query += fmt.Sprintf(` AND device = $%d`, paramCount)
		args = append(args, string(filter.Device))
		paramCount++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, paramCount)
		args = append(args, string(filter.Status))
		paramCount++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY created_at DESC, seq ASC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres query: %w", err)
	}
	defer rows.Close()

	var results []*storage.ArchivedRecord
	for rows.Next() {
		var (
			r      storage.ArchivedRecord
			rank   *int32
			url    *string
			reason *string
			name   string
			status string
		)
		err := rows.Scan(
			&r.ID, &r.RunID, &r.Record.Keyword, &r.Record.Target, &rank, &url,
			&r.Record.Date, &name, &r.Record.Type, &status, &reason, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres scan: %w", err)
		}

		if rank != nil {
			r.Record.Rank = int(*rank)
		}
		if url != nil {
			r.Record.URL = *url
		}
		if reason != nil {
			r.Record.Reason = *reason
		}
		r.Record.Device = device.Name(name)
		r.Record.Status = serp.Status(status)

		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres rows: %w", err)
	}

	return results, nil
}

func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}

func nullInt(n int) *int32 {
	if n <= 0 {
		return nil
	}
	v := int32(n)
	return &v
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
