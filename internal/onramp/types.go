// Package onramp wraps the payment provider's REST API: quote creation,
// session tokens, and transaction history, plus the normalization of the
// provider's loosely-structured transaction records into the debug-info
// shape.
package onramp

import "encoding/json"

// Amount is the provider's structured money shape. Some endpoints return the
// same field as a bare scalar instead; the normalizer handles both.
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type QuoteRequest struct {
	PurchaseCurrency string `json:"purchase_currency"`
	PurchaseNetwork  string `json:"purchase_network,omitempty"`
	PaymentAmount    string `json:"payment_amount"`
	PaymentCurrency  string `json:"payment_currency"`
	PaymentMethod    string `json:"payment_method"`
	Country          string `json:"country"`
	Subdivision      string `json:"subdivision,omitempty"`
}

type Quote struct {
	QuoteID         string `json:"quote_id"`
	PaymentTotal    Amount `json:"payment_total"`
	PaymentSubtotal Amount `json:"payment_subtotal"`
	PurchaseAmount  Amount `json:"purchase_amount"`
	NetworkFee      Amount `json:"network_fee"`
	ProviderFee     Amount `json:"provider_fee"`
	ExpiresAt       string `json:"quote_expires_at,omitempty"`
}

type SessionTokenRequest struct {
	DestinationAddress string   `json:"destination_address"`
	Assets             []string `json:"assets,omitempty"`
	PartnerUserRef     string   `json:"partner_user_ref,omitempty"`
}

type SessionToken struct {
	Token     string `json:"token"`
	ChannelID string `json:"channel_id,omitempty"`
}

// TransactionsPage holds one page of transaction history. Records stay raw:
// the provider mixes object and scalar forms in amount fields, so decoding
// is deferred to the normalizer.
type TransactionsPage struct {
	Transactions []json.RawMessage `json:"transactions"`
	NextPageKey  string            `json:"next_page_key"`
}
