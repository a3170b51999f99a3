package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rampkit/gateway/internal/debuginfo"
	"github.com/rampkit/gateway/internal/onramp"
	"github.com/rampkit/gateway/internal/requestlog"
	"github.com/rampkit/gateway/internal/session"
)

type stubStore struct {
	failures []*requestlog.Record
	count    int64
	err      error
}

func (s *stubStore) WriteRecord(ctx context.Context, record *requestlog.Record) error { return s.err }
func (s *stubStore) WriteBatch(ctx context.Context, records []*requestlog.Record) error {
	return s.err
}
func (s *stubStore) GetRecord(ctx context.Context, id string) (*requestlog.Record, error) {
	return nil, requestlog.ErrNotFound
}
func (s *stubStore) RecentFailures(ctx context.Context, limit int) ([]*requestlog.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit < len(s.failures) {
		return s.failures[:limit], nil
	}
	return s.failures, nil
}
func (s *stubStore) Count(ctx context.Context) (int64, error) { return s.count, s.err }

type stubLauncher struct {
	req debuginfo.SupportRequest
	err error
}

func (l *stubLauncher) Launch(ctx context.Context, req debuginfo.SupportRequest) error {
	l.req = req
	return l.err
}

type stubSender struct {
	req debuginfo.SupportRequest
	err error
}

func (s *stubSender) Send(ctx context.Context, req debuginfo.SupportRequest) error {
	s.req = req
	return s.err
}

type stubQuotes struct {
	quote *onramp.Quote
	err   error
	req   onramp.QuoteRequest
}

func (s *stubQuotes) CreateBuyQuote(ctx context.Context, req onramp.QuoteRequest) (*onramp.Quote, error) {
	s.req = req
	return s.quote, s.err
}

type stubTokens struct {
	token *onramp.SessionToken
	err   error
	req   onramp.SessionTokenRequest
}

func (s *stubTokens) CreateSessionToken(ctx context.Context, req onramp.SessionTokenRequest) (*onramp.SessionToken, error) {
	s.req = req
	return s.token, s.err
}

type stubLister struct {
	page *onramp.TransactionsPage
	err  error
	ref  string
}

func (s *stubLister) ListTransactions(ctx context.Context, partnerUserRef, pageKey string) (*onramp.TransactionsPage, error) {
	s.ref = partnerUserRef
	return s.page, s.err
}

func testRouter(t *testing.T, options RouterOptions) http.Handler {
	t.Helper()
	if options.Builder == nil {
		options.Builder = &debuginfo.Builder{
			Context: session.Context{PartnerUserRef: "user-42", CountryCode: "US", Sandbox: true},
		}
	}
	if options.AppVersion == "" {
		options.AppVersion = "test"
	}
	return NewRouter(options)
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

const guestPayload = `{
	"guest_checkout": {
		"app_id": "app-1",
		"entity_hash": "hash-9",
		"amount": "25.00",
		"currency": "USD"
	},
	"error_message": "card_declined"
}`

func TestComposeEndpoint(t *testing.T) {
	t.Parallel()

	handler := testRouter(t, RouterOptions{})
	rec := postJSON(t, handler, "/api/support/compose", guestPayload)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp composeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Address != debuginfo.DefaultSupportAddress {
		t.Fatalf("address = %q", resp.Address)
	}
	if !strings.Contains(resp.Subject, "hash-9") {
		t.Fatalf("subject missing correlation id: %q", resp.Subject)
	}
	if !strings.Contains(resp.Body, debuginfo.BlockHeader) {
		t.Fatalf("body missing debug block: %q", resp.Body)
	}
	if !strings.Contains(resp.Body, "errorMessage: card_declined") {
		t.Fatalf("body missing error line: %q", resp.Body)
	}
	if !strings.HasPrefix(resp.MailtoURI, "mailto:") {
		t.Fatalf("mailto uri = %q", resp.MailtoURI)
	}
	if strings.Contains(resp.MailtoURI, "+") {
		t.Fatalf("mailto uri must not use plus encoding: %q", resp.MailtoURI)
	}
}

func TestComposeRejectsAmbiguousPayload(t *testing.T) {
	t.Parallel()

	handler := testRouter(t, RouterOptions{})
	rec := postJSON(t, handler, "/api/support/compose", `{"transaction":{},"guest_checkout":{}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = postJSON(t, handler, "/api/support/compose", `{"error_message":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d for missing variant", rec.Code)
	}
}

func TestLaunchEndpointReportsOutcome(t *testing.T) {
	t.Parallel()

	launcher := &stubLauncher{}
	handler := testRouter(t, RouterOptions{Launcher: launcher})
	rec := postJSON(t, handler, "/api/support/launch", guestPayload)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp launchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Launched {
		t.Fatal("launched = false on success")
	}
	if launcher.req.Subject == "" {
		t.Fatal("launcher did not receive composed request")
	}
}

func TestLaunchFailureIsNotAServerError(t *testing.T) {
	t.Parallel()

	launcher := &stubLauncher{err: errors.New("no mail client")}
	handler := testRouter(t, RouterOptions{Launcher: launcher})
	rec := postJSON(t, handler, "/api/support/launch", guestPayload)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, launch failures must stay 200", rec.Code)
	}
	var resp launchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Launched {
		t.Fatal("launched = true despite failure")
	}
	if resp.Address == "" {
		t.Fatal("address missing from launch response")
	}
}

func TestSendEndpoint(t *testing.T) {
	t.Parallel()

	sender := &stubSender{}
	handler := testRouter(t, RouterOptions{Sender: sender})
	rec := postJSON(t, handler, "/api/support/send", guestPayload)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if sender.req.Body == "" {
		t.Fatal("sender did not receive composed request")
	}

	// Without a sender the endpoint refuses rather than pretending.
	handler = testRouter(t, RouterOptions{})
	rec = postJSON(t, handler, "/api/support/send", guestPayload)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 when smtp unconfigured", rec.Code)
	}
}

func TestQuoteEndpointHappyPath(t *testing.T) {
	t.Parallel()

	quotes := &stubQuotes{quote: &onramp.Quote{QuoteID: "q-1"}}
	handler := testRouter(t, RouterOptions{Quotes: quotes})
	rec := postJSON(t, handler, "/api/quote", `{"purchase_currency":"USDC","payment_amount":"25.00","payment_currency":"USD","payment_method":"CARD","country":"US"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp quoteResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Quote == nil || resp.Quote.QuoteID != "q-1" {
		t.Fatalf("quote = %+v", resp.Quote)
	}
	if resp.UserLimitExceeded {
		t.Fatal("user_limit_exceeded set on success")
	}
}

func TestQuoteEndpointDefaultsCountryFromSession(t *testing.T) {
	t.Parallel()

	quotes := &stubQuotes{quote: &onramp.Quote{QuoteID: "q-2"}}
	handler := testRouter(t, RouterOptions{Quotes: quotes})

	rec := postJSON(t, handler, "/api/quote", `{"purchase_currency":"USDC","payment_amount":"25.00","payment_currency":"USD","payment_method":"CARD"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if quotes.req.Country != "US" {
		t.Fatalf("country = %q, want session default", quotes.req.Country)
	}

	// An explicit country is never overridden.
	rec = postJSON(t, handler, "/api/quote", `{"purchase_currency":"USDC","payment_amount":"25.00","payment_currency":"USD","payment_method":"CARD","country":"DE"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if quotes.req.Country != "DE" {
		t.Fatalf("country = %q, want caller value kept", quotes.req.Country)
	}
}

func TestQuoteEndpointUserLimitExceeded(t *testing.T) {
	t.Parallel()

	quotes := &stubQuotes{err: &onramp.APIError{StatusCode: 400, Code: "user_limit_exceeded", Message: "weekly limit"}}
	handler := testRouter(t, RouterOptions{Quotes: quotes})
	rec := postJSON(t, handler, "/api/quote", `{}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, limit rejection must be 200", rec.Code)
	}
	var resp quoteResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.UserLimitExceeded {
		t.Fatal("user_limit_exceeded flag not set")
	}
}

func TestQuoteEndpointUpstreamFault(t *testing.T) {
	t.Parallel()

	quotes := &stubQuotes{err: &onramp.APIError{StatusCode: 500, Code: "internal", Message: "provider down"}}
	handler := testRouter(t, RouterOptions{Quotes: quotes})
	rec := postJSON(t, handler, "/api/quote", `{}`)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "provider down") {
		t.Fatalf("body missing provider message: %s", rec.Body.String())
	}
}

func TestSessionTokenEndpoint(t *testing.T) {
	t.Parallel()

	tokens := &stubTokens{token: &onramp.SessionToken{Token: "tok-1", ChannelID: "ch-9"}}
	handler := testRouter(t, RouterOptions{Tokens: tokens})

	rec := postJSON(t, handler, "/api/session-token", `{"destination_address":"0xabc","assets":["USDC"],"partner_user_ref":"user-7"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp onramp.SessionToken
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Token != "tok-1" || resp.ChannelID != "ch-9" {
		t.Fatalf("token = %+v", resp)
	}
	if tokens.req.PartnerUserRef != "user-7" {
		t.Fatalf("partner_user_ref = %q, want caller value kept", tokens.req.PartnerUserRef)
	}
}

func TestSessionTokenEndpointFallsBackToSessionRef(t *testing.T) {
	t.Parallel()

	tokens := &stubTokens{token: &onramp.SessionToken{Token: "tok-2"}}
	handler := testRouter(t, RouterOptions{Tokens: tokens})

	rec := postJSON(t, handler, "/api/session-token", `{"destination_address":"0xabc"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if tokens.req.PartnerUserRef != "user-42" {
		t.Fatalf("partner_user_ref = %q, want session fallback", tokens.req.PartnerUserRef)
	}
}

func TestSessionTokenEndpointRejectsMissingAddress(t *testing.T) {
	t.Parallel()

	handler := testRouter(t, RouterOptions{Tokens: &stubTokens{}})
	rec := postJSON(t, handler, "/api/session-token", `{"assets":["USDC"]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 without destination_address", rec.Code)
	}
}

func TestSessionTokenEndpointUpstreamFault(t *testing.T) {
	t.Parallel()

	tokens := &stubTokens{err: &onramp.APIError{StatusCode: 500, Code: "internal", Message: "provider down"}}
	handler := testRouter(t, RouterOptions{Tokens: tokens})
	rec := postJSON(t, handler, "/api/session-token", `{"destination_address":"0xabc"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}

	// Without a client the endpoint refuses rather than pretending.
	handler = testRouter(t, RouterOptions{})
	rec = postJSON(t, handler, "/api/session-token", `{"destination_address":"0xabc"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 when client unconfigured", rec.Code)
	}
}

func TestTransactionsEndpointNormalizesRecords(t *testing.T) {
	t.Parallel()

	lister := &stubLister{page: &onramp.TransactionsPage{
		Transactions: []json.RawMessage{
			json.RawMessage(`{"transaction_id":"tx-1","status":"ONRAMP_TRANSACTION_STATUS_SUCCESS","purchase_amount":{"value":"7.79","currency":"USDC"}}`),
		},
		NextPageKey: "page-2",
	}}
	handler := testRouter(t, RouterOptions{Transactions: lister})

	req := httptest.NewRequest(http.MethodGet, "/api/transactions?partner_user_ref=user-7", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if lister.ref != "user-7" {
		t.Fatalf("lister called with ref %q", lister.ref)
	}
	var resp transactionsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Transactions) != 1 || resp.Transactions[0].PurchaseAmount != "7.79" {
		t.Fatalf("transactions = %+v", resp.Transactions)
	}
	if resp.NextPageKey != "page-2" {
		t.Fatalf("next_page_key = %q", resp.NextPageKey)
	}
}

func TestTransactionsEndpointFallsBackToSessionRef(t *testing.T) {
	t.Parallel()

	lister := &stubLister{page: &onramp.TransactionsPage{}}
	handler := testRouter(t, RouterOptions{Transactions: lister})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transactions", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if lister.ref != "user-42" {
		t.Fatalf("lister called with ref %q, want session fallback", lister.ref)
	}
}

func TestFailuresEndpoint(t *testing.T) {
	t.Parallel()

	store := &stubStore{failures: []*requestlog.Record{
		{ID: "r-2", Timestamp: time.Now().UTC(), Method: "POST", Path: "/api/quote", Status: 400, ErrorCode: "user_limit_exceeded"},
		{ID: "r-1", Timestamp: time.Now().UTC().Add(-time.Minute), Method: "GET", Path: "/api/transactions", Status: 502},
	}}
	handler := testRouter(t, RouterOptions{Store: store})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/requests/failures?limit=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp failuresResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Failures) != 1 || resp.Failures[0].ID != "r-2" {
		t.Fatalf("failures = %+v", resp.Failures)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/requests/failures?limit=bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d for bad limit", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	handler := testRouter(t, RouterOptions{
		Store:         &stubStore{count: 12},
		StorageDriver: "sqlite",
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "ok" || resp.Version != "test" || resp.RecordCount != 12 {
		t.Fatalf("health = %+v", resp)
	}
	if resp.StorageDriver != "sqlite" {
		t.Fatalf("storage driver = %q", resp.StorageDriver)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()

	handler := testRouter(t, RouterOptions{})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/support/compose", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); !strings.Contains(allow, http.MethodPost) {
		t.Fatalf("allow header = %q", allow)
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	handler := testRouter(t, RouterOptions{})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/support/compose", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("CORS headers missing")
	}
}
