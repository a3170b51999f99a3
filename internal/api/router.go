package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rampkit/gateway/internal/debuginfo"
	"github.com/rampkit/gateway/internal/mailer"
	"github.com/rampkit/gateway/internal/observability"
	"github.com/rampkit/gateway/internal/requestlog"
)

type RouterOptions struct {
	AppVersion    string
	Store         requestlog.Store
	StorageDriver string
	StoragePath   string
	Builder       *debuginfo.Builder
	Launcher      mailer.Launcher
	Sender        Sender
	Quotes        QuoteCreator
	Tokens        SessionTokenCreator
	Transactions  TransactionLister
	Metrics       *observability.Runtime
}

func NewRouter(options RouterOptions) http.Handler {
	startedAt := time.Now().UTC()
	mux := http.NewServeMux()

	mux.Handle("/api/health", HealthHandler(HealthOptions{
		Version:       options.AppVersion,
		StartedAt:     startedAt,
		StorageDriver: options.StorageDriver,
		StoragePath:   options.StoragePath,
		Store:         options.Store,
	}))
	mux.Handle("/api/support/compose", ComposeHandler(options.Builder, options.Metrics))
	mux.Handle("/api/support/launch", LaunchHandler(options.Builder, options.Launcher, options.Metrics))
	mux.Handle("/api/support/send", SendHandler(options.Builder, options.Sender, options.Metrics))
	var sessionCtx debuginfo.ContextProvider
	if options.Builder != nil {
		sessionCtx = options.Builder.Context
	}
	mux.Handle("/api/quote", QuoteHandler(options.Quotes, sessionCtx))
	mux.Handle("/api/session-token", SessionTokenHandler(options.Tokens, sessionCtx))
	mux.Handle("/api/transactions", TransactionsHandler(options.Transactions, options.Builder))
	mux.Handle("/api/requests/failures", FailuresHandler(options.Store))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"name":    "rampkit gateway",
			"version": options.AppVersion,
			"status":  "ok",
		})
	})

	return withCORS(mux)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(payload); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("{\"error\":\"internal server error\"}\n"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body.Bytes())
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method+", OPTIONS")
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
