// Package requestlog persists the outcome of proxied provider exchanges so
// failed purchases can be referenced later from support tooling. Only
// exchange metadata is stored; composed debug blocks and support emails are
// never persisted.
package requestlog

import "time"

type Record struct {
	ID            string
	Timestamp     time.Time
	Method        string
	Path          string
	Status        int
	LatencyMS     int64
	CorrelationID string
	ErrorCode     string
	ErrorMessage  string
	Sandbox       bool
	CreatedAt     time.Time
}

// Failed reports whether the exchange ended in an upstream fault.
func (r *Record) Failed() bool {
	return r.Status >= 400
}
