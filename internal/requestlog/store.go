package requestlog

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("request log record not found")

type Store interface {
	WriteRecord(ctx context.Context, record *Record) error
	WriteBatch(ctx context.Context, records []*Record) error
	GetRecord(ctx context.Context, id string) (*Record, error)
	// RecentFailures returns the newest failed exchanges, newest first.
	RecentFailures(ctx context.Context, limit int) ([]*Record, error)
	Count(ctx context.Context) (int64, error)
}
