// Package correlation assigns a stable identifier to every exchange passing
// through the gateway so support tickets, request logs, and upstream calls
// can be matched up later.
package correlation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HeaderName is the canonical correlation identifier header.
const HeaderName = "X-Rampkit-Correlation-ID"

const maxIDLen = 64

type contextKey struct{}

var correlationContextKey contextKey

// EnsureRequest guarantees a correlation identifier on the request context
// and headers, minting one when neither carries a usable value.
func EnsureRequest(req *http.Request) (*http.Request, string) {
	if req == nil {
		return nil, ""
	}
	if id, ok := FromContext(req.Context()); ok {
		setHeader(req, id)
		return req, id
	}

	id := FromHeaders(req.Header)
	if id == "" {
		id = NewID()
	}
	req = req.WithContext(WithContext(req.Context(), id))
	setHeader(req, id)
	return req, id
}

// WithContext stores a sanitized correlation identifier in ctx.
func WithContext(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	clean := sanitize(id)
	if clean == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationContextKey, clean)
}

// FromContext extracts the correlation identifier stored in ctx.
func FromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, ok := ctx.Value(correlationContextKey).(string)
	if !ok {
		return "", false
	}
	clean := sanitize(value)
	return clean, clean != ""
}

// FromHeaders extracts a usable identifier from the canonical header or the
// common request-id headers mobile clients and proxies already send.
func FromHeaders(headers http.Header) string {
	if headers == nil {
		return ""
	}
	for _, header := range []string{HeaderName, "X-Request-ID", "X-Correlation-ID"} {
		if id := sanitize(headers.Get(header)); id != "" {
			return id
		}
	}
	return ""
}

// NewID mints a fresh correlation identifier.
func NewID() string {
	var raw [12]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return fmt.Sprintf("ramp-%d", time.Now().UnixNano())
	}
	return "ramp-" + hex.EncodeToString(raw[:])
}

func setHeader(req *http.Request, id string) {
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	req.Header.Set(HeaderName, id)
}

// sanitize rejects identifiers that could smuggle header or log injection;
// only a conservative token alphabet survives.
func sanitize(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	if len(value) > maxIDLen {
		value = value[:maxIDLen]
	}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return ""
		}
	}
	return value
}
