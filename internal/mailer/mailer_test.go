package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/jordan-wright/email"
	"github.com/rampkit/gateway/internal/debuginfo"
)

func TestURIEncoding(t *testing.T) {
	t.Parallel()

	req := debuginfo.SupportRequest{
		Address: "support@rampkit.dev",
		Subject: "Guest Checkout Support Request [hash-9]",
		Body:    "Please describe the issue you encountered:\n\nline one",
	}

	got := URI(req)

	if !strings.HasPrefix(got, "mailto:support@rampkit.dev?subject=") {
		t.Errorf("URI prefix wrong: %q", got)
	}
	if strings.Contains(got, "+") {
		t.Errorf("URI uses query-style + encoding, mail clients render it literally: %q", got)
	}
	if !strings.Contains(got, "subject=Guest%20Checkout%20Support%20Request%20%5Bhash-9%5D") {
		t.Errorf("subject not percent-encoded as expected: %q", got)
	}
	if !strings.Contains(got, "%0A%0Aline%20one") {
		t.Errorf("body newlines not encoded as %%0A: %q", got)
	}
}

func TestOpenerFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		goos     string
		wantName string
	}{
		{goos: "darwin", wantName: "open"},
		{goos: "windows", wantName: "rundll32"},
		{goos: "linux", wantName: "xdg-open"},
		{goos: "freebsd", wantName: "xdg-open"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.goos, func(t *testing.T) {
			t.Parallel()

			name, args := openerFor(tc.goos, "mailto:x")
			if name != tc.wantName {
				t.Errorf("opener = %q, want %q", name, tc.wantName)
			}
			if len(args) == 0 || args[len(args)-1] != "mailto:x" {
				t.Errorf("target missing from args: %v", args)
			}
		})
	}
}

func TestOSLauncher(t *testing.T) {
	original := runOpener
	defer func() { runOpener = original }()

	req := debuginfo.SupportRequest{Address: "support@rampkit.dev", Subject: "s", Body: "b"}

	var gotTarget string
	runOpener = func(_ context.Context, _ string, args ...string) error {
		gotTarget = args[len(args)-1]
		return nil
	}
	if err := (OSLauncher{}).Launch(context.Background(), req); err != nil {
		t.Fatalf("Launch returned %v, want nil", err)
	}
	if gotTarget != URI(req) {
		t.Errorf("launched target = %q, want %q", gotTarget, URI(req))
	}

	runOpener = func(context.Context, string, ...string) error {
		return errors.New("no handler registered")
	}
	if err := (OSLauncher{}).Launch(context.Background(), req); err == nil {
		t.Fatal("Launch returned nil, want the opener failure")
	}
}

func TestSMTPSender(t *testing.T) {
	original := send
	defer func() { send = original }()

	var gotAddr string
	var gotEmail *email.Email
	send = func(e *email.Email, addr string, _ smtp.Auth) error {
		gotEmail = e
		gotAddr = addr
		return nil
	}

	sender := SMTPSender{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "u",
		Password: "p",
		From:     "gateway@example.com",
	}
	req := debuginfo.SupportRequest{Address: "support@rampkit.dev", Subject: "subj", Body: "body"}
	if err := sender.Send(context.Background(), req); err != nil {
		t.Fatalf("Send returned %v, want nil", err)
	}

	if gotAddr != "smtp.example.com:587" {
		t.Errorf("addr = %q", gotAddr)
	}
	if gotEmail.From != "gateway@example.com" {
		t.Errorf("From = %q", gotEmail.From)
	}
	if len(gotEmail.To) != 1 || gotEmail.To[0] != "support@rampkit.dev" {
		t.Errorf("To = %v", gotEmail.To)
	}
	if gotEmail.Subject != "subj" || string(gotEmail.Text) != "body" {
		t.Errorf("subject/body = %q / %q", gotEmail.Subject, gotEmail.Text)
	}

	send = func(*email.Email, string, smtp.Auth) error {
		return errors.New("connection refused")
	}
	if err := sender.Send(context.Background(), req); err == nil {
		t.Fatal("Send returned nil, want the SMTP failure")
	}
}
