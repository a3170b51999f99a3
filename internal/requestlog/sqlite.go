package requestlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rampkit/gateway/migrations"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	Path string
	db   *sql.DB
	// SQLite allows only one writer at a time; serialize writes to avoid
	// SQLITE_BUSY contention between the async writer and direct callers.
	writeMu sync.Mutex
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory %q: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %q: %w", path, err)
	}

	store := &SQLiteStore{Path: path, db: db}
	if err := store.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrations.Apply(context.Background(), db, migrations.DriverSQLite); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite migrations: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) configure() error {
	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA synchronous = NORMAL`,
	} {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const sqliteInsert = `
INSERT INTO request_logs
	(id, ts, method, path, status, latency_ms, correlation_id, error_code, error_message, sandbox, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *SQLiteStore) WriteRecord(ctx context.Context, record *Record) error {
	if record == nil {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	row := prepareRecord(record)
	_, err := s.db.ExecContext(ctx, sqliteInsert, sqliteArgs(row)...)
	if err != nil {
		return fmt.Errorf("insert request log %s: %w", row.ID, err)
	}
	return nil
}

func (s *SQLiteStore) WriteBatch(ctx context.Context, records []*Record) error {
	if len(records) == 0 {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin request log batch: %w", err)
	}
	for _, record := range records {
		if record == nil {
			continue
		}
		row := prepareRecord(record)
		if _, err := tx.ExecContext(ctx, sqliteInsert, sqliteArgs(row)...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert request log %s: %w", row.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit request log batch: %w", err)
	}
	return nil
}

const sqliteSelect = `
SELECT id, ts, method, path, status, latency_ms, correlation_id, error_code, error_message, sandbox, created_at
FROM request_logs`

func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, sqliteSelect+` WHERE id = ?`, id)
	record, err := scanSQLiteRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get request log %s: %w", id, err)
	}
	return record, nil
}

func (s *SQLiteStore) RecentFailures(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, sqliteSelect+` WHERE status >= 400 ORDER BY ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent failures: %w", err)
	}
	defer rows.Close()

	records := make([]*Record, 0, limit)
	for rows.Next() {
		record, err := scanSQLiteRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan request log: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM request_logs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count request logs: %w", err)
	}
	return count, nil
}

func sqliteArgs(row *Record) []any {
	return []any{
		row.ID,
		row.Timestamp.UTC().Format(time.RFC3339Nano),
		row.Method,
		row.Path,
		row.Status,
		row.LatencyMS,
		row.CorrelationID,
		row.ErrorCode,
		row.ErrorMessage,
		boolToInt(row.Sandbox),
		row.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func scanSQLiteRecord(scan func(...any) error) (*Record, error) {
	var record Record
	var ts, createdAt string
	var sandbox int
	if err := scan(
		&record.ID,
		&ts,
		&record.Method,
		&record.Path,
		&record.Status,
		&record.LatencyMS,
		&record.CorrelationID,
		&record.ErrorCode,
		&record.ErrorMessage,
		&sandbox,
		&createdAt,
	); err != nil {
		return nil, err
	}

	var err error
	if record.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
		return nil, fmt.Errorf("parse ts %q: %w", ts, err)
	}
	if record.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	record.Sandbox = sandbox != 0
	return &record, nil
}

// prepareRecord fills the write-time defaults in place so callers observe
// the assigned id.
func prepareRecord(record *Record) *Record {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	return record
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
