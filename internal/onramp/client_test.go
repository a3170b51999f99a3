package onramp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCreateBuyQuote(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/onramp/v1/buy/quote" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-1" {
			t.Errorf("Authorization = %q", got)
		}
		var req QuoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.PaymentAmount != "5.00" {
			t.Errorf("payment_amount = %q", req.PaymentAmount)
		}
		_ = json.NewEncoder(w).Encode(Quote{
			QuoteID:        "q-1",
			PaymentTotal:   Amount{Value: "5.25", Currency: "USD"},
			PurchaseAmount: Amount{Value: "5.00", Currency: "USDC"},
		})
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL, APIKey: "key-1"}
	quote, err := client.CreateBuyQuote(context.Background(), QuoteRequest{
		PurchaseCurrency: "USDC",
		PaymentAmount:    "5.00",
		PaymentCurrency:  "USD",
		PaymentMethod:    "CARD",
		Country:          "US",
	})
	if err != nil {
		t.Fatalf("CreateBuyQuote returned %v", err)
	}
	if quote.QuoteID != "q-1" || quote.PaymentTotal.Value != "5.25" {
		t.Errorf("quote = %+v", quote)
	}
}

func TestCreateBuyQuoteUserLimitExceeded(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error_code": "user_limit_exceeded", "error_message": "weekly card limit reached"}`))
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL}
	_, err := client.CreateBuyQuote(context.Background(), QuoteRequest{})
	if err == nil {
		t.Fatal("CreateBuyQuote returned nil error")
	}
	if !IsUserLimitExceeded(err) {
		t.Errorf("IsUserLimitExceeded = false for %v", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error is %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d", apiErr.StatusCode)
	}
	// The raw provider code and message are concatenated for the caller.
	if msg := err.Error(); !strings.Contains(msg, "user_limit_exceeded") || !strings.Contains(msg, "weekly card limit reached") {
		t.Errorf("Error() = %q", msg)
	}
}

func TestClientSurfacesUndecodableErrorBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL}
	_, err := client.CreateSessionToken(context.Background(), SessionTokenRequest{DestinationAddress: "0xabc"})
	if err == nil {
		t.Fatal("CreateSessionToken returned nil error")
	}
	if IsUserLimitExceeded(err) {
		t.Error("IsUserLimitExceeded = true for an unrelated fault")
	}
	if !strings.Contains(err.Error(), "upstream exploded") {
		t.Errorf("Error() = %q, want it to carry the raw body", err)
	}
}

func TestListTransactions(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/onramp/v1/buy/user/user 7/transactions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("page_key"); got != "k2" {
			t.Errorf("page_key = %q", got)
		}
		_, _ = w.Write([]byte(`{
			"transactions": [{"transaction_id": "txn-1"}, {"transaction_id": "txn-2"}],
			"next_page_key": "k3"
		}`))
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL}
	page, err := client.ListTransactions(context.Background(), "user 7", "k2")
	if err != nil {
		t.Fatalf("ListTransactions returned %v", err)
	}
	if len(page.Transactions) != 2 || page.NextPageKey != "k3" {
		t.Errorf("page = %+v", page)
	}
}

func TestListTransactionsRequiresRef(t *testing.T) {
	t.Parallel()

	client := &Client{BaseURL: "http://localhost:0"}
	if _, err := client.ListTransactions(context.Background(), "  ", ""); err == nil {
		t.Fatal("expected an error for a blank partner user ref")
	}
}
