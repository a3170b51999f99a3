package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rampkit/gateway/internal/debuginfo"
	"github.com/rampkit/gateway/internal/mailer"
	"github.com/rampkit/gateway/internal/observability"
)

// Sender dispatches a composed support request over a configured channel
// (SMTP in the gateway binary).
type Sender interface {
	Send(ctx context.Context, req debuginfo.SupportRequest) error
}

// debugInfoPayload is the wire shape for the two debug-info variants.
// Exactly one of transaction / guest_checkout must be present.
type debugInfoPayload struct {
	Transaction   *transactionPayload   `json:"transaction"`
	GuestCheckout *guestCheckoutPayload `json:"guest_checkout"`
	ErrorMessage  string                `json:"error_message"`
	DebugMessage  string                `json:"debug_message"`
}

type transactionPayload struct {
	TransactionID    string `json:"transaction_id"`
	Status           string `json:"status"`
	PurchaseCurrency string `json:"purchase_currency"`
	PurchaseNetwork  string `json:"purchase_network"`
	PurchaseAmount   string `json:"purchase_amount"`
	PaymentTotal     string `json:"payment_total"`
	PaymentCurrency  string `json:"payment_currency"`
	PaymentMethod    string `json:"payment_method"`
	WalletAddress    string `json:"wallet_address"`
	TxHash           string `json:"tx_hash"`
	CreatedAt        string `json:"created_at"`
	PartnerUserRef   string `json:"partner_user_ref"`
}

type guestCheckoutPayload struct {
	Flow                  string `json:"flow"`
	AppID                 string `json:"app_id"`
	PartnerName           string `json:"partner_name"`
	DeviceID              string `json:"device_id"`
	EntityHash            string `json:"entity_hash"`
	TransactionIDAtCreate string `json:"transaction_id_at_create"`
	Asset                 string `json:"asset"`
	Network               string `json:"network"`
	Amount                string `json:"amount"`
	Currency              string `json:"currency"`
	PaymentMethod         string `json:"payment_method"`
}

type composeResponse struct {
	Address   string `json:"address"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	MailtoURI string `json:"mailto_uri"`
}

type launchResponse struct {
	Launched bool   `json:"launched"`
	Address  string `json:"address"`
}

func decodeDebugInfo(r *http.Request) (debuginfo.Info, error) {
	var payload debugInfoPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return debuginfo.Info{}, fmt.Errorf("decode debug info: %w", err)
	}
	if payload.Transaction == nil && payload.GuestCheckout == nil {
		return debuginfo.Info{}, fmt.Errorf("one of transaction or guest_checkout is required")
	}
	if payload.Transaction != nil && payload.GuestCheckout != nil {
		return debuginfo.Info{}, fmt.Errorf("transaction and guest_checkout are mutually exclusive")
	}

	var info debuginfo.Info
	if payload.Transaction != nil {
		tx := payload.Transaction
		info = debuginfo.ForTransaction(debuginfo.TransactionInfo{
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
	} else {
		guest := payload.GuestCheckout
		info = debuginfo.ForGuestCheckout(debuginfo.GuestCheckoutInfo{
			Flow:                  debuginfo.Flow(guest.Flow),
			AppID:                 guest.AppID,
			PartnerName:           guest.PartnerName,
			DeviceID:              guest.DeviceID,
			EntityHash:            guest.EntityHash,
			TransactionIDAtCreate: guest.TransactionIDAtCreate,
			Asset:                 guest.Asset,
			Network:               guest.Network,
			Amount:                guest.Amount,
			Currency:              guest.Currency,
			PaymentMethod:         guest.PaymentMethod,
		})
	}
	info.ErrorMessage = payload.ErrorMessage
	info.DebugMessage = payload.DebugMessage
	return info, nil
}

func flowLabel(info debuginfo.Info) string {
	if info.Kind == debuginfo.KindGuestCheckout {
		return "guest"
	}
	return "authenticated"
}

func ComposeHandler(builder *debuginfo.Builder, metrics *observability.Runtime) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		info, err := decodeDebugInfo(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		req := builder.ComposeSupportRequest(info)
		metrics.RecordSupportComposed(flowLabel(info))
		writeJSON(w, http.StatusOK, composeResponse{
			Address:   req.Address,
			Subject:   req.Subject,
			Body:      req.Body,
			MailtoURI: mailer.URI(req),
		})
	})
}

// LaunchHandler composes the support email and asks the OS to open the mail
// client. A launch failure is an expected outcome on headless hosts, so it
// is reported as launched=false rather than a server error.
func LaunchHandler(builder *debuginfo.Builder, launcher mailer.Launcher, metrics *observability.Runtime) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		info, err := decodeDebugInfo(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		req := builder.ComposeSupportRequest(info)
		metrics.RecordSupportComposed(flowLabel(info))

		launched := false
		if launcher != nil {
			if launchErr := launcher.Launch(r.Context(), req); launchErr == nil {
				launched = true
			} else {
				metrics.RecordMailLaunchFailure()
			}
		}
		writeJSON(w, http.StatusOK, launchResponse{
			Launched: launched,
			Address:  req.Address,
		})
	})
}

func SendHandler(builder *debuginfo.Builder, sender Sender, metrics *observability.Runtime) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		if sender == nil {
			writeError(w, http.StatusServiceUnavailable, "smtp delivery is not configured")
			return
		}
		info, err := decodeDebugInfo(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		req := builder.ComposeSupportRequest(info)
		metrics.RecordSupportComposed(flowLabel(info))
		if err := sender.Send(r.Context(), req); err != nil {
			writeError(w, http.StatusBadGateway, "send support email: "+err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"sent":    true,
			"address": req.Address,
		})
	})
}
