package debuginfo

// Kind discriminates the two debug-info variants. The discriminant is an
// explicit tag rather than structural field probing so an input that matches
// neither shape is caught at the switch instead of producing a malformed block.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransaction
	KindGuestCheckout
)

// Flow tells support whether a checkout ran as a guest or as an
// authenticated user.
type Flow string

const (
	FlowGuest         Flow = "guest"
	FlowAuthenticated Flow = "authenticated"
)

// TransactionInfo describes a completed or attempted purchase tied to an
// authenticated user. Every field is optional; absent fields are omitted
// from the emitted block.
type TransactionInfo struct {
	TransactionID    string
	Status           string
	PurchaseCurrency string
	PurchaseNetwork  string
	PurchaseAmount   string
	PaymentTotal     string
	PaymentCurrency  string
	PaymentMethod    string
	WalletAddress    string
	TxHash           string
	CreatedAt        string
	PartnerUserRef   string
}

// GuestCheckoutInfo describes a checkout attempt that has not produced a
// transaction record yet.
type GuestCheckoutInfo struct {
	Flow                  Flow
	AppID                 string
	PartnerName           string
	DeviceID              string
	EntityHash            string
	TransactionIDAtCreate string
	Asset                 string
	Network               string
	Amount                string
	Currency              string
	PaymentMethod         string
}

// Info is the tagged union handed to the builder. Exactly one variant is
// active per value; ErrorMessage and DebugMessage ride on the envelope and
// apply to both variants.
type Info struct {
	Kind        Kind
	Transaction *TransactionInfo
	Guest       *GuestCheckoutInfo

	ErrorMessage string
	DebugMessage string
}

// ForTransaction wraps a transaction record in an Info envelope.
func ForTransaction(tx TransactionInfo) Info {
	return Info{Kind: KindTransaction, Transaction: &tx}
}

// ForGuestCheckout wraps in-progress guest checkout parameters in an Info
// envelope.
func ForGuestCheckout(guest GuestCheckoutInfo) Info {
	return Info{Kind: KindGuestCheckout, Guest: &guest}
}
