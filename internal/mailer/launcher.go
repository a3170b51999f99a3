package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"

	"github.com/rampkit/gateway/internal/debuginfo"
)

// Launcher attempts to open a composed support request in an email client.
// A launch either succeeds or reports failure; there are no partial states,
// and a failure is an expected outcome the caller turns into fallback
// guidance, never a fatal fault.
type Launcher interface {
	Launch(ctx context.Context, req debuginfo.SupportRequest) error
}

// runOpener is a seam for tests; it executes the platform opener.
var runOpener = func(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// OSLauncher opens the mailto target with the platform URL handler.
type OSLauncher struct {
	Logger *slog.Logger
}

func (l OSLauncher) Launch(ctx context.Context, req debuginfo.SupportRequest) error {
	target := URI(req)
	name, args := openerFor(runtime.GOOS, target)
	if err := runOpener(ctx, name, args...); err != nil {
		if l.Logger != nil {
			l.Logger.WarnContext(ctx, "mail client launch failed", "opener", name, "error", err)
		}
		return fmt.Errorf("open mail client via %s: %w", name, err)
	}
	return nil
}

func openerFor(goos, target string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{target}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}
	default:
		return "xdg-open", []string{target}
	}
}
