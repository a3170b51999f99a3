package requestlog

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestClassifyWriteError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, WriteErrorClassUnknown},
		{"context deadline", context.DeadlineExceeded, WriteErrorClassTimeout},
		{"context canceled", context.Canceled, WriteErrorClassTimeout},
		{"wrapped deadline", fmt.Errorf("write batch: %w", context.DeadlineExceeded), WriteErrorClassTimeout},
		{"net op error", &net.OpError{Op: "dial", Err: errors.New("refused")}, WriteErrorClassConnection},
		{"connection refused text", errors.New("dial tcp 127.0.0.1:5432: connection refused"), WriteErrorClassConnection},
		{"broken pipe text", errors.New("write: broken pipe"), WriteErrorClassConnection},
		{"sqlite busy", errors.New("SQLITE_BUSY: database is locked"), WriteErrorClassContention},
		{"unknown", errors.New("syntax error near INSERT"), WriteErrorClassUnknown},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ClassifyWriteError(tc.err); got != tc.want {
				t.Fatalf("ClassifyWriteError(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}
