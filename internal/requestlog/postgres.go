package requestlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rampkit/gateway/migrations"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type PostgresStore struct {
	DSN string
	db  *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn cannot be empty")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	store := &PostgresStore{DSN: dsn, db: db}
	if err := migrations.Apply(context.Background(), db, migrations.DriverPostgres); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply postgres migrations: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const postgresInsert = `
INSERT INTO request_logs
	(id, ts, method, path, status, latency_ms, correlation_id, error_code, error_message, sandbox, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

func (s *PostgresStore) WriteRecord(ctx context.Context, record *Record) error {
	if record == nil {
		return nil
	}
	row := prepareRecord(record)
	if _, err := s.db.ExecContext(ctx, postgresInsert, postgresArgs(row)...); err != nil {
		return fmt.Errorf("insert request log %s: %w", row.ID, err)
	}
	return nil
}

func (s *PostgresStore) WriteBatch(ctx context.Context, records []*Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin request log batch: %w", err)
	}
	for _, record := range records {
		if record == nil {
			continue
		}
		row := prepareRecord(record)
		if _, err := tx.ExecContext(ctx, postgresInsert, postgresArgs(row)...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert request log %s: %w", row.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit request log batch: %w", err)
	}
	return nil
}

const postgresSelect = `
SELECT id, ts, method, path, status, latency_ms, correlation_id, error_code, error_message, sandbox, created_at
FROM request_logs`

func (s *PostgresStore) GetRecord(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, postgresSelect+` WHERE id = $1`, id)
	record, err := scanPostgresRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get request log %s: %w", id, err)
	}
	return record, nil
}

func (s *PostgresStore) RecentFailures(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, postgresSelect+` WHERE status >= 400 ORDER BY ts DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent failures: %w", err)
	}
	defer rows.Close()

	records := make([]*Record, 0, limit)
	for rows.Next() {
		record, err := scanPostgresRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan request log: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM request_logs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count request logs: %w", err)
	}
	return count, nil
}

func postgresArgs(row *Record) []any {
	return []any{
		row.ID,
		row.Timestamp.UTC(),
		row.Method,
		row.Path,
		row.Status,
		row.LatencyMS,
		row.CorrelationID,
		row.ErrorCode,
		row.ErrorMessage,
		row.Sandbox,
		row.CreatedAt.UTC(),
	}
}

func scanPostgresRecord(scan func(...any) error) (*Record, error) {
	var record Record
	if err := scan(
		&record.ID,
		&record.Timestamp,
		&record.Method,
		&record.Path,
		&record.Status,
		&record.LatencyMS,
		&record.CorrelationID,
		&record.ErrorCode,
		&record.ErrorMessage,
		&record.Sandbox,
		&record.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &record, nil
}
