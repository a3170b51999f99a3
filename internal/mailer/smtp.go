package mailer

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
	"github.com/rampkit/gateway/internal/debuginfo"
)

// SMTPSender dispatches a composed support request directly over SMTP when
// the gateway is configured to file tickets itself instead of handing off to
// the user's mail client.
type SMTPSender struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// send is a seam for tests; it performs the actual SMTP exchange.
var send = func(e *email.Email, addr string, auth smtp.Auth) error {
	return e.Send(addr, auth)
}

func (s SMTPSender) Send(_ context.Context, req debuginfo.SupportRequest) error {
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)

	e := email.NewEmail()
	e.From = s.From
	e.To = []string{req.Address}
	e.Subject = req.Subject
	e.Text = []byte(req.Body)

	if err := send(e, addr, auth); err != nil {
		return fmt.Errorf("send support email via %s: %w", addr, err)
	}
	return nil
}
