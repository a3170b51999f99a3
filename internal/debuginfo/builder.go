package debuginfo

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const (
	// BlockHeader and BlockFooter frame every emitted block. Support tooling
	// parses the block line by line, so neither may vary.
	BlockHeader = "--- Debug Information (please do not edit) ---"
	BlockFooter = "---"

	// DefaultPartnerName is the static fallback when the caller supplied no
	// partner display name.
	DefaultPartnerName = "Rampkit Demo"

	defaultAppID    = "unknown"
	defaultLocale   = "en-US"
	defaultCurrency = "USD"
	defaultAmount   = "0"
)

const (
	deviceIDBytes   = 16
	entityHashBytes = 32
)

// ContextProvider supplies the current user/session context the builder
// reads while formatting. Implementations must be safe for concurrent use;
// the builder never writes through this interface.
type ContextProvider interface {
	// CorrelationRef returns the partner-assigned user reference for the
	// current session, or "" when there is none.
	CorrelationRef() string
	AppID() string
	AppVersion() string
	// Locale returns the active BCP-47 locale, or "" when unknown.
	Locale() string
	// Timezone returns the active IANA zone, or "" when unknown.
	Timezone() string
	// Country returns the ISO 3166-1 alpha-2 purchase country, or "" when
	// unknown.
	Country() string
	SandboxMode() bool
}

// Builder turns an Info value into the line-oriented debug block and the
// companion support email. The zero value works: it falls back to the OS
// CSPRNG, the wall clock, and no session context.
type Builder struct {
	Context ContextProvider
	Random  RandomSource
	Now     func() time.Time

	// Address overrides the support mailbox used by ComposeSupportRequest.
	Address string
}

// BuildDebugBlock emits the fixed-format block for info. Field order within
// each variant is part of the published format contract; reordering breaks
// the line-based parsing on the support side. The call always succeeds for a
// well-formed Info and panics on an unknown Kind, which is a programming
// error, not an input condition.
func (b *Builder) BuildDebugBlock(info Info) string {
	lines := make([]string, 0, 24)
	add := func(key, value string) {
		lines = append(lines, key+": "+value)
	}
	addPresent := func(key, value string) {
		if value != "" {
			add(key, value)
		}
	}

	lines = append(lines, BlockHeader)

	switch info.Kind {
	case KindGuestCheckout:
		guest := info.Guest
		if guest == nil {
			guest = &GuestCheckoutInfo{}
		}
		flow := guest.Flow
		if flow == "" {
			flow = FlowGuest
		}
		add("flowType", string(flow))
		add("appId", b.resolveAppID(guest.AppID))
		add("partnerName", valueOr(guest.PartnerName, DefaultPartnerName))
		add("deviceId", b.valueOrGenerated(guest.DeviceID, deviceIDBytes))
		add("guestEntityHash", b.valueOrGenerated(guest.EntityHash, entityHashBytes))
		add("guestAmount", valueOr(guest.Amount, defaultAmount))
		add("guestCurrency", valueOr(guest.Currency, defaultCurrency))
		addPresent("guestAsset", guest.Asset)
		addPresent("guestNetwork", guest.Network)
		addPresent("guestPaymentMethod", guest.PaymentMethod)
		addPresent("guestTransactionIdAtCreate", guest.TransactionIDAtCreate)

	case KindTransaction:
		tx := info.Transaction
		if tx == nil {
			tx = &TransactionInfo{}
		}
		add("flowType", string(FlowAuthenticated))
		add("appId", b.resolveAppID(""))
		add("partnerName", DefaultPartnerName)
		// The transaction variant carries no caller-supplied device
		// identifier, so one is regenerated on every call. Matches the
		// upstream behavior; see DESIGN.md before changing it.
		add("deviceId", b.generatedID(deviceIDBytes))
		addPresent("transactionId", tx.TransactionID)
		addPresent("status", tx.Status)
		addPresent("purchaseCurrency", tx.PurchaseCurrency)
		addPresent("purchaseNetwork", tx.PurchaseNetwork)
		addPresent("purchaseAmount", tx.PurchaseAmount)
		addPresent("paymentTotal", tx.PaymentTotal)
		addPresent("paymentCurrency", tx.PaymentCurrency)
		addPresent("paymentMethod", tx.PaymentMethod)
		addPresent("walletAddress", tx.WalletAddress)
		addPresent("txHash", tx.TxHash)
		addPresent("createdAt", tx.CreatedAt)
		addPresent("partnerUserRef", tx.PartnerUserRef)

	default:
		panic(fmt.Sprintf("debuginfo: info kind %d matches neither variant", info.Kind))
	}

	add("appVersion", valueOr(b.contextAppVersion(), defaultAppID))
	add("timestamp", b.now().UTC().Format(time.RFC3339))
	add("locale", valueOr(b.contextLocale(), defaultLocale))
	add("timezone", b.timezone())
	if b.Context != nil && b.Context.SandboxMode() {
		add("environment", "sandbox")
	}
	addPresent("errorMessage", info.ErrorMessage)
	addPresent("debugMessage", info.DebugMessage)

	lines = append(lines, BlockFooter)
	return strings.Join(lines, "\n")
}

// resolveAppID applies the appId fallback chain: the caller-supplied value,
// then the context provider's application identifier, then "unknown".
func (b *Builder) resolveAppID(own string) string {
	if own != "" {
		return own
	}
	if b.Context != nil {
		if id := b.Context.AppID(); id != "" {
			return id
		}
	}
	return defaultAppID
}

// timezone resolves the IANA zone in two steps: the context provider first,
// then the zone the process itself runs in. An unresolvable zone reports UTC.
func (b *Builder) timezone() string {
	if b.Context != nil {
		if tz := b.Context.Timezone(); tz != "" {
			return tz
		}
	}
	return systemTimezone()
}

// localZoneName is a seam for tests; it reports the process-level zone name.
var localZoneName = func() string {
	return time.Now().Location().String()
}

func systemTimezone() string {
	name := localZoneName()
	if name == "" || name == "Local" {
		return "UTC"
	}
	return name
}

func (b *Builder) contextAppVersion() string {
	if b.Context == nil {
		return ""
	}
	return b.Context.AppVersion()
}

func (b *Builder) contextLocale() string {
	if b.Context == nil {
		return ""
	}
	return b.Context.Locale()
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func (b *Builder) valueOrGenerated(value string, n int) string {
	if value != "" {
		return value
	}
	return b.generatedID(n)
}

// generatedID produces a fresh hex identifier. The identifiers exist only
// for best-effort uniqueness of a one-off support ticket, so a failed
// CSPRNG read degrades to a time-derived value instead of failing the email.
func (b *Builder) generatedID(n int) string {
	src := b.Random
	if src == nil {
		src = CryptoRandom{}
	}
	raw, err := src.Bytes(n)
	if err != nil {
		return fmt.Sprintf("t%x", b.now().UnixNano())
	}
	return hex.EncodeToString(raw)
}

func valueOr(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
