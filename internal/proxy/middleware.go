package proxy

import (
	"bufio"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/rampkit/gateway/internal/correlation"
	"github.com/rampkit/gateway/internal/requestlog"
)

// maxErrorBodyBytes bounds how much of a failed response is buffered for
// error-code extraction.
const maxErrorBodyBytes = 16 << 10

// RecordSink receives one record per completed request.
type RecordSink func(*requestlog.Record)

type RecordingOptions struct {
	// Sandbox is stamped onto every record so failures can be filtered by
	// environment.
	Sandbox bool
}

// RecordingMiddleware assigns a correlation ID, logs request completion, and
// emits a requestlog record. For failed responses it buffers a bounded body
// prefix and lifts the provider error code and message into the record.
func RecordingMiddleware(logger *slog.Logger, sink RecordSink, options RecordingOptions, next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if next == nil {
		next = http.NotFoundHandler()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var correlationID string
		r, correlationID = correlation.EnsureRequest(r)
		if correlationID != "" {
			w.Header().Set(correlation.HeaderName, correlationID)
		}

		start := time.Now()
		recorder := newRecordingResponseWriter(w)
		next.ServeHTTP(recorder, r)

		status := recorder.StatusCode()
		latency := time.Since(start).Milliseconds()
		logger.InfoContext(r.Context(),
			"request complete",
			"correlation_id", correlationID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"latency_ms", latency,
		)

		if sink == nil {
			return
		}
		record := &requestlog.Record{
			Timestamp:     start.UTC(),
			Method:        r.Method,
			Path:          r.URL.Path,
			Status:        status,
			LatencyMS:     latency,
			CorrelationID: correlationID,
			Sandbox:       options.Sandbox,
		}
		if record.Failed() {
			record.ErrorCode, record.ErrorMessage = extractError(recorder.ErrorBody())
		}
		sink(record)
	})
}

// extractError probes the common provider error shapes. A body that is not
// JSON yields empty values rather than garbage.
func extractError(body []byte) (code, message string) {
	if len(body) == 0 {
		return "", ""
	}
	parsed := gjson.ParseBytes(body)
	if !parsed.IsObject() {
		return "", ""
	}
	for _, key := range []string{"error_code", "code", "error"} {
		if value := parsed.Get(key); value.Type == gjson.String && value.Str != "" {
			code = value.Str
			break
		}
	}
	for _, key := range []string{"error_message", "message"} {
		if value := parsed.Get(key); value.Type == gjson.String && value.Str != "" {
			message = value.Str
			break
		}
	}
	return code, message
}

// recordingResponseWriter tracks the status code and buffers a prefix of the
// body only once the response is known to be a failure.
type recordingResponseWriter struct {
	http.ResponseWriter
	statusCode int
	errorBody  []byte
}

func newRecordingResponseWriter(w http.ResponseWriter) *recordingResponseWriter {
	return &recordingResponseWriter{ResponseWriter: w}
}

func (w *recordingResponseWriter) WriteHeader(statusCode int) {
	if w.statusCode == 0 {
		w.statusCode = statusCode
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *recordingResponseWriter) Write(p []byte) (int, error) {
	if w.statusCode == 0 {
		w.statusCode = http.StatusOK
	}
	if w.statusCode >= 400 {
		remaining := maxErrorBodyBytes - len(w.errorBody)
		if remaining > 0 {
			if len(p) < remaining {
				remaining = len(p)
			}
			w.errorBody = append(w.errorBody, p[:remaining]...)
		}
	}
	return w.ResponseWriter.Write(p)
}

func (w *recordingResponseWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *recordingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return hijacker.Hijack()
}

func (w *recordingResponseWriter) StatusCode() int {
	if w.statusCode == 0 {
		return http.StatusOK
	}
	return w.statusCode
}

func (w *recordingResponseWriter) ErrorBody() []byte {
	return w.errorBody
}
