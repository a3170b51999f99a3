// Package mailer is the mail-launch boundary: it percent-encodes a composed
// support request into a mailto target and hands it to the platform email
// client, or dispatches it directly over SMTP.
package mailer

import (
	"net/url"
	"strings"

	"github.com/rampkit/gateway/internal/debuginfo"
)

// URI encodes the three logical fields of a support request into a mailto
// URI. Subject and body use %20 for spaces rather than the query-string "+"
// form, which many mail clients render literally.
func URI(req debuginfo.SupportRequest) string {
	var b strings.Builder
	b.WriteString("mailto:")
	b.WriteString(url.PathEscape(req.Address))
	b.WriteString("?subject=")
	b.WriteString(escape(req.Subject))
	b.WriteString("&body=")
	b.WriteString(escape(req.Body))
	return b.String()
}

func escape(value string) string {
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}
