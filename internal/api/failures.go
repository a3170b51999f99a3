package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rampkit/gateway/internal/requestlog"
)

const maxFailureLimit = 100

type failureRecord struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Method        string    `json:"method"`
	Path          string    `json:"path"`
	Status        int       `json:"status"`
	LatencyMS     int64     `json:"latency_ms"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	ErrorCode     string    `json:"error_code,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	Sandbox       bool      `json:"sandbox"`
}

type failuresResponse struct {
	Failures []failureRecord `json:"failures"`
}

// FailuresHandler returns the most recent failed exchanges, newest first.
func FailuresHandler(store requestlog.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		if store == nil {
			writeError(w, http.StatusServiceUnavailable, "request log store is not configured")
			return
		}

		limit := 20
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			if parsed > maxFailureLimit {
				parsed = maxFailureLimit
			}
			limit = parsed
		}

		records, err := store.RecentFailures(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "load recent failures: "+err.Error())
			return
		}

		response := failuresResponse{Failures: make([]failureRecord, 0, len(records))}
		for _, record := range records {
			response.Failures = append(response.Failures, failureRecord{
				ID:            record.ID,
				Timestamp:     record.Timestamp,
				Method:        record.Method,
				Path:          record.Path,
				Status:        record.Status,
				LatencyMS:     record.LatencyMS,
				CorrelationID: record.CorrelationID,
				ErrorCode:     record.ErrorCode,
				ErrorMessage:  record.ErrorMessage,
				Sandbox:       record.Sandbox,
			})
		}
		writeJSON(w, http.StatusOK, response)
	})
}
