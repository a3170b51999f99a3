package debuginfo

import "fmt"

// DefaultSupportAddress is the fixed support mailbox tickets are sent to.
const DefaultSupportAddress = "support@rampkit.dev"

const (
	subjectFormat   = "Guest Checkout Support Request [%s]"
	bodyPlaceholder = "Please describe the issue you encountered:"
)

const correlationIDMaxLen = 32

// SupportRequest carries the three unencoded logical fields of a support
// email. Percent-encoding into a mailto form is the mail-launch boundary's
// concern, not this package's.
type SupportRequest struct {
	Address string
	Subject string
	Body    string
}

// CorrelationID picks the identifier embedded in the email subject so a
// support agent can tell tickets apart. Precedence, first match wins: the
// guest entity hash, the transaction identifier, a value derived from the
// session's partner-user reference and the current time, and finally a
// purely random string. It is a human-correlation aid with no uniqueness
// guarantee beyond "distinguishable in a support inbox".
func (b *Builder) CorrelationID(info Info) string {
	if info.Guest != nil && info.Guest.EntityHash != "" {
		return info.Guest.EntityHash
	}
	if info.Transaction != nil && info.Transaction.TransactionID != "" {
		return info.Transaction.TransactionID
	}
	if b.Context != nil {
		if ref := b.Context.CorrelationRef(); ref != "" {
			id := fmt.Sprintf("%s-%d", ref, b.now().Unix())
			if len(id) > correlationIDMaxLen {
				id = id[:correlationIDMaxLen]
			}
			return id
		}
	}
	return b.generatedID(8)
}

// ComposeSupportRequest builds the ready-to-send email for info.
func (b *Builder) ComposeSupportRequest(info Info) SupportRequest {
	address := b.Address
	if address == "" {
		address = DefaultSupportAddress
	}
	return SupportRequest{
		Address: address,
		Subject: fmt.Sprintf(subjectFormat, b.CorrelationID(info)),
		Body:    bodyPlaceholder + "\n\n" + b.BuildDebugBlock(info),
	}
}
