package onramp

import (
	"github.com/rampkit/gateway/internal/debuginfo"
	"github.com/tidwall/gjson"
)

// NormalizeTransaction maps one raw provider transaction record onto the
// debug-info shape. Missing fields map to absent, not defaulted; defaulting
// is the block builder's job. The partner user reference falls back to the
// session context when the record lacks one.
func NormalizeTransaction(raw []byte, sessionCtx debuginfo.ContextProvider) debuginfo.TransactionInfo {
	doc := gjson.ParseBytes(raw)

	info := debuginfo.TransactionInfo{
		TransactionID:    doc.Get("transaction_id").String(),
		Status:           doc.Get("status").String(),
		PurchaseCurrency: doc.Get("purchase_currency").String(),
		PurchaseNetwork:  doc.Get("purchase_network").String(),
		PurchaseAmount:   amountValue(doc.Get("purchase_amount")),
		PaymentTotal:     amountValue(doc.Get("payment_total")),
		PaymentCurrency:  doc.Get("payment_currency").String(),
		PaymentMethod:    doc.Get("payment_method").String(),
		WalletAddress:    doc.Get("wallet_address").String(),
		TxHash:           doc.Get("tx_hash").String(),
		CreatedAt:        doc.Get("created_at").String(),
		PartnerUserRef:   doc.Get("partner_user_ref").String(),
	}

	if info.PartnerUserRef == "" && sessionCtx != nil {
		info.PartnerUserRef = sessionCtx.CorrelationRef()
	}
	return info
}

// amountValue accepts the provider's two amount encodings: a structured
// {value, currency} object (its currency sub-field is discarded here, the
// separate top-level currency field wins) or a bare scalar.
func amountValue(result gjson.Result) string {
	if result.IsObject() {
		return result.Get("value").String()
	}
	return result.String()
}
