package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rampkit/gateway/internal/debuginfo"
	"github.com/rampkit/gateway/internal/onramp"
)

// SessionTokenCreator is the slice of the provider client the checkout
// bootstrap endpoint needs.
type SessionTokenCreator interface {
	CreateSessionToken(ctx context.Context, req onramp.SessionTokenRequest) (*onramp.SessionToken, error)
}

// SessionTokenHandler mints the single-use token a client needs to start a
// checkout. Requests without a partner user ref fall back to the session's.
func SessionTokenHandler(tokens SessionTokenCreator, sessionCtx debuginfo.ContextProvider) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		if tokens == nil {
			writeError(w, http.StatusServiceUnavailable, "onramp client is not configured")
			return
		}

		var req onramp.SessionTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "decode session token request: "+err.Error())
			return
		}
		if strings.TrimSpace(req.DestinationAddress) == "" {
			writeError(w, http.StatusBadRequest, "destination_address is required")
			return
		}
		if req.PartnerUserRef == "" && sessionCtx != nil {
			req.PartnerUserRef = sessionCtx.CorrelationRef()
		}

		token, err := tokens.CreateSessionToken(r.Context(), req)
		if err != nil {
			var apiErr *onramp.APIError
			if errors.As(err, &apiErr) {
				writeError(w, http.StatusBadGateway, apiErr.Error())
				return
			}
			writeError(w, http.StatusBadGateway, "create session token: "+err.Error())
			return
		}

		writeJSON(w, http.StatusOK, token)
	})
}
