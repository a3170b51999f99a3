package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rampkit/gateway/internal/debuginfo"
	"github.com/rampkit/gateway/internal/onramp"
)

// QuoteCreator is the slice of the provider client the quote endpoint needs.
type QuoteCreator interface {
	CreateBuyQuote(ctx context.Context, req onramp.QuoteRequest) (*onramp.Quote, error)
}

type quoteResponse struct {
	Quote             *onramp.Quote `json:"quote,omitempty"`
	UserLimitExceeded bool          `json:"user_limit_exceeded,omitempty"`
}

// QuoteHandler wraps quote creation. A user_limit_exceeded rejection is a
// normal UI state for the purchase form, not a failure, so it comes back as
// 200 with a flag the client can render. Requests without a country fall
// back to the session's purchase country.
func QuoteHandler(quotes QuoteCreator, sessionCtx debuginfo.ContextProvider) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		if quotes == nil {
			writeError(w, http.StatusServiceUnavailable, "onramp client is not configured")
			return
		}

		var req onramp.QuoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "decode quote request: "+err.Error())
			return
		}
		if req.Country == "" && sessionCtx != nil {
			req.Country = sessionCtx.Country()
		}

		quote, err := quotes.CreateBuyQuote(r.Context(), req)
		if err != nil {
			if onramp.IsUserLimitExceeded(err) {
				writeJSON(w, http.StatusOK, quoteResponse{UserLimitExceeded: true})
				return
			}
			var apiErr *onramp.APIError
			if errors.As(err, &apiErr) {
				writeError(w, http.StatusBadGateway, apiErr.Error())
				return
			}
			writeError(w, http.StatusBadGateway, "create quote: "+err.Error())
			return
		}

		writeJSON(w, http.StatusOK, quoteResponse{Quote: quote})
	})
}
