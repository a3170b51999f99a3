package debuginfo

import (
	"errors"
	"strings"
	"testing"
)

type failingRandom struct{}

func (failingRandom) Bytes(int) ([]byte, error) {
	return nil, errors.New("entropy exhausted")
}

func TestCorrelationIDPrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		info Info
		ref  string
		want string
	}{
		{
			name: "guest entity hash wins over transaction id",
			info: Info{
				Kind:        KindGuestCheckout,
				Guest:       &GuestCheckoutInfo{EntityHash: "hash-9"},
				Transaction: &TransactionInfo{TransactionID: "txn-1"},
			},
			ref:  "user-7",
			want: "hash-9",
		},
		{
			name: "transaction id when no entity hash",
			info: ForTransaction(TransactionInfo{TransactionID: "txn-1"}),
			ref:  "user-7",
			want: "txn-1",
		},
		{
			name: "context ref and time when neither identifier is present",
			info: ForGuestCheckout(GuestCheckoutInfo{}),
			ref:  "user-7",
			// fixedClock unix seconds appended to the session reference.
			want: "user-7-1773480413",
		},
		{
			name: "random fallback without a context ref",
			info: ForGuestCheckout(GuestCheckoutInfo{}),
			ref:  "",
			want: strings.Repeat("01", 8),
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			builder := &Builder{
				Context: stubContext{ref: tc.ref},
				Random:  &stubRandom{},
				Now:     fixedClock,
			}
			if got := builder.CorrelationID(tc.info); got != tc.want {
				t.Errorf("CorrelationID = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCorrelationIDTruncatesContextDerivedValue(t *testing.T) {
	t.Parallel()

	builder := &Builder{
		Context: stubContext{ref: strings.Repeat("r", 40)},
		Random:  &stubRandom{},
		Now:     fixedClock,
	}
	got := builder.CorrelationID(ForGuestCheckout(GuestCheckoutInfo{}))
	if len(got) != correlationIDMaxLen {
		t.Errorf("len = %d, want %d (got %q)", len(got), correlationIDMaxLen, got)
	}
}

func TestCorrelationIDRandomReadFailureDegrades(t *testing.T) {
	t.Parallel()

	builder := &Builder{Random: failingRandom{}, Now: fixedClock}
	got := builder.CorrelationID(ForGuestCheckout(GuestCheckoutInfo{}))
	if got == "" {
		t.Fatal("CorrelationID returned an empty identifier")
	}
	if !strings.HasPrefix(got, "t") {
		t.Errorf("degraded identifier = %q, want a time-derived t-prefixed value", got)
	}
}

func TestComposeSupportRequest(t *testing.T) {
	t.Parallel()

	builder := &Builder{
		Context: stubContext{appVersion: "1.0.0", locale: "en-US", timezone: "UTC"},
		Random:  &stubRandom{},
		Now:     fixedClock,
	}

	info := ForGuestCheckout(GuestCheckoutInfo{EntityHash: "hash-9", PartnerName: "Acme"})
	req := builder.ComposeSupportRequest(info)

	if req.Address != DefaultSupportAddress {
		t.Errorf("Address = %q, want %q", req.Address, DefaultSupportAddress)
	}
	if want := "Guest Checkout Support Request [hash-9]"; req.Subject != want {
		t.Errorf("Subject = %q, want %q", req.Subject, want)
	}

	placeholder, block, found := strings.Cut(req.Body, "\n\n")
	if !found {
		t.Fatalf("body has no blank line separator:\n%s", req.Body)
	}
	if placeholder != bodyPlaceholder {
		t.Errorf("placeholder = %q, want %q", placeholder, bodyPlaceholder)
	}
	if !strings.HasPrefix(block, BlockHeader) {
		t.Errorf("body block does not start with the header:\n%s", block)
	}
	if !strings.HasSuffix(block, BlockFooter) {
		t.Errorf("body block does not end with the footer:\n%s", block)
	}
}

func TestComposeSupportRequestAddressOverride(t *testing.T) {
	t.Parallel()

	builder := &Builder{
		Address: "helpdesk@acme.example",
		Random:  &stubRandom{},
		Now:     fixedClock,
	}
	req := builder.ComposeSupportRequest(ForGuestCheckout(GuestCheckoutInfo{EntityHash: "h"}))
	if req.Address != "helpdesk@acme.example" {
		t.Errorf("Address = %q, want the configured override", req.Address)
	}
}
