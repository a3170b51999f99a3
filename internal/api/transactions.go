package api

import (
	"context"
	"net/http"

	"github.com/rampkit/gateway/internal/debuginfo"
	"github.com/rampkit/gateway/internal/onramp"
)

// TransactionLister is the slice of the provider client the history endpoint
// needs.
type TransactionLister interface {
	ListTransactions(ctx context.Context, partnerUserRef, pageKey string) (*onramp.TransactionsPage, error)
}

type transactionsResponse struct {
	Transactions []transactionPayload `json:"transactions"`
	NextPageKey  string               `json:"next_page_key,omitempty"`
}

// TransactionsHandler lists a user's transaction history with each record
// normalized into the flat shape the error card and debug block consume.
func TransactionsHandler(lister TransactionLister, builder *debuginfo.Builder) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		if lister == nil {
			writeError(w, http.StatusServiceUnavailable, "onramp client is not configured")
			return
		}

		partnerUserRef := r.URL.Query().Get("partner_user_ref")
		if partnerUserRef == "" && builder != nil && builder.Context != nil {
			partnerUserRef = builder.Context.CorrelationRef()
		}
		if partnerUserRef == "" {
			writeError(w, http.StatusBadRequest, "partner_user_ref is required")
			return
		}

		page, err := lister.ListTransactions(r.Context(), partnerUserRef, r.URL.Query().Get("page_key"))
		if err != nil {
			writeError(w, http.StatusBadGateway, "list transactions: "+err.Error())
			return
		}

		var sessionCtx debuginfo.ContextProvider
		if builder != nil {
			sessionCtx = builder.Context
		}
		response := transactionsResponse{
			Transactions: make([]transactionPayload, 0, len(page.Transactions)),
			NextPageKey:  page.NextPageKey,
		}
		for _, raw := range page.Transactions {
			tx := onramp.NormalizeTransaction(raw, sessionCtx)
			response.Transactions = append(response.Transactions, transactionPayload{
				TransactionID:    tx.TransactionID,
				Status:           tx.Status,
				PurchaseCurrency: tx.PurchaseCurrency,
				PurchaseNetwork:  tx.PurchaseNetwork,
				PurchaseAmount:   tx.PurchaseAmount,
				PaymentTotal:     tx.PaymentTotal,
				PaymentCurrency:  tx.PaymentCurrency,
				PaymentMethod:    tx.PaymentMethod,
				WalletAddress:    tx.WalletAddress,
				TxHash:           tx.TxHash,
				CreatedAt:        tx.CreatedAt,
				PartnerUserRef:   tx.PartnerUserRef,
			})
		}
		writeJSON(w, http.StatusOK, response)
	})
}
