package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/FranksOps/serprank/internal/device"
	"github.com/FranksOps/serprank/internal/serp"
	"github.com/FranksOps/serprank/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure Backend implements both storage interfaces
var (
	_ storage.Counter = (*Backend)(nil)
	_ storage.Archive = (*Backend)(nil)
)

// CounterName is the row the pagination counter is kept under.
const CounterName = "request_counter"

// Backend keeps the pagination counter and the run archive in one SQLite file.
type Backend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS counters (
	name TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS rank_records (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	keyword TEXT NOT NULL,
	target TEXT NOT NULL,
	rank INTEGER,
	url TEXT,
	run_date TEXT NOT NULL,
	device TEXT NOT NULL,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	reason TEXT,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS rank_records_keyword ON rank_records (keyword, created_at);
`

// New opens the SQLite database at dsn and creates the schema.
func New(dsn string) (*Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	return &Backend{db: db}, nil
}

func (b *Backend) Get(ctx context.Context) (int, error) {
	var n int
	err := b.db.QueryRowContext(ctx, `SELECT value FROM counters WHERE name = ?`, CounterName).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("sqlite get counter: %w", err)
	}
	return n, nil
}

func (b *Backend) Set(ctx context.Context, n int) error {
	_, err := b.db.ExecContext(ctx, `
	INSERT INTO counters (name, value) VALUES (?, ?)
	ON CONFLICT(name) DO UPDATE SET value = excluded.value
	`, CounterName, n)
	if err != nil {
		return fmt.Errorf("sqlite set counter: %w", err)
	}
	return nil
}

func (b *Backend) Save(ctx context.Context, records []*storage.ArchivedRecord) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
	INSERT INTO rank_records (
		id, run_id, keyword, target, rank, url, run_date, device, type, status, reason, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, r := range records {
		_, err := tx.ExecContext(ctx, query,
			r.ID,
			r.RunID,
			r.Record.Keyword,
			r.Record.Target,
			nullInt(r.Record.Rank),
			nullString(r.Record.URL),
			r.Record.Date.Format(time.DateOnly),
			string(r.Record.Device),
			r.Record.Type,
			string(r.Record.Status),
			r.Record.Reason,
			r.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite insert record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit: %w", err)
	}
	return nil
}

func (b *Backend) Query(ctx context.Context, filter storage.Filter) ([]*storage.ArchivedRecord, error) {
	query := `SELECT id, run_id, keyword, target, rank, url, run_date, device, type, status, reason, created_at FROM rank_records WHERE 1=1`
	args := []any{}

	if filter.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, filter.RunID)
	}
	if filter.Keyword != "" {
		query += ` AND keyword = ?`
		args = append(args, filter.Keyword)
	}
	if filter.Device != "" {
		query += ` AND device = ?`
		args = append(args, string(filter.Device))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, *filter.Since)
	}

	query += ` ORDER BY created_at DESC, rowid ASC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		query += ` LIMIT -1`
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query: %w", err)
	}
	defer rows.Close()

	var results []*storage.ArchivedRecord
	for rows.Next() {
		var (
			r       storage.ArchivedRecord
			rank    sql.NullInt64
			url     sql.NullString
			reason  sql.NullString
			runDate string
			name    string
			status  string
		)
		err := rows.Scan(
			&r.ID, &r.RunID, &r.Record.Keyword, &r.Record.Target, &rank, &url,
			&runDate, &name, &r.Record.Type, &status, &reason, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite scan: %w", err)
		}

		r.Record.Rank = int(rank.Int64)
		r.Record.URL = url.String
		r.Record.Reason = reason.String
		r.Record.Device = device.Name(name)
		r.Record.Status = serp.Status(status)
		if r.Record.Date, err = time.Parse(time.DateOnly, runDate); err != nil {
			return nil, fmt.Errorf("sqlite run date: %w", err)
		}

		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite rows: %w", err)
	}

	return results, nil
}

func (b *Backend) Close() error {
	return b.db.Close()
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n > 0}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
