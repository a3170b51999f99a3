package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/joho/godotenv"

	"github.com/rampkit/gateway/internal/config"
	"github.com/rampkit/gateway/internal/debuginfo"
	"github.com/rampkit/gateway/internal/mailer"
)

const lastFailureLookupTimeout = 5 * time.Second

// runSupport composes a support email on the command line: either from the
// guest-checkout details passed as flags, or from the most recent failed
// exchange in the request log.
func runSupport(args []string, out io.Writer, errOut io.Writer) int {
	flagSet := flag.NewFlagSet("support", flag.ContinueOnError)
	flagSet.SetOutput(errOut)
	configPath := flagSet.String("config", defaultConfigPath, "Path to config file")
	fromLastFailure := flagSet.Bool("from-last-failure", false, "Compose from the most recent logged failure")
	launch := flagSet.Bool("launch", false, "Open the system mail client with the composed email")

	appID := flagSet.String("app-id", "", "Application identifier")
	entityHash := flagSet.String("entity-hash", "", "Guest checkout entity hash")
	deviceID := flagSet.String("device-id", "", "Device identifier")
	amount := flagSet.String("amount", "", "Purchase amount")
	currency := flagSet.String("currency", "", "Purchase currency")
	asset := flagSet.String("asset", "", "Purchased asset")
	network := flagSet.String("network", "", "Settlement network")
	paymentMethod := flagSet.String("payment-method", "", "Payment method")
	errorMessage := flagSet.String("error", "", "Error message to include")
	debugMessage := flagSet.String("debug", "", "Extra debug message to include")

	if err := flagSet.Parse(args); err != nil {
		return 2
	}
	if flagSet.NArg() != 0 {
		fmt.Fprintln(errOut, "support does not accept positional arguments")
		return 2
	}

	_ = godotenv.Load()

	cfg, err := loadAndValidateConfig(*configPath)
	if err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 1
	}
	builder := newBuilder(cfg)

	var info debuginfo.Info
	if *fromLastFailure {
		info, err = infoFromLastFailure(cfg)
		if err != nil {
			fmt.Fprintf(errOut, "%v\n", err)
			return 1
		}
	} else {
		info = debuginfo.ForGuestCheckout(debuginfo.GuestCheckoutInfo{
			AppID:         *appID,
			EntityHash:    *entityHash,
			DeviceID:      *deviceID,
			Amount:        *amount,
			Currency:      *currency,
			Asset:         *asset,
			Network:       *network,
			PaymentMethod: *paymentMethod,
		})
	}
	if *errorMessage != "" {
		info.ErrorMessage = *errorMessage
	}
	if *debugMessage != "" {
		info.DebugMessage = *debugMessage
	}

	req := builder.ComposeSupportRequest(info)
	fmt.Fprintf(out, "To: %s\n", req.Address)
	fmt.Fprintf(out, "Subject: %s\n\n", req.Subject)
	fmt.Fprintln(out, req.Body)
	fmt.Fprintf(out, "\n%s\n", mailer.URI(req))

	if *launch {
		launcher := mailer.OSLauncher{Logger: slog.New(slog.NewTextHandler(errOut, nil))}
		if launchErr := launcher.Launch(context.Background(), req); launchErr != nil {
			// Launch failure is an expected outcome on headless hosts; the
			// composed email above is still usable.
			fmt.Fprintf(errOut, "mail client did not open: %v\n", launchErr)
		} else {
			fmt.Fprintln(out, "mail client opened")
		}
	}
	return 0
}

func infoFromLastFailure(cfg config.Config) (debuginfo.Info, error) {
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return debuginfo.Info{}, err
	}
	defer func() { _ = closeStore() }()

	ctx, cancel := context.WithTimeout(context.Background(), lastFailureLookupTimeout)
	defer cancel()
	failures, err := store.RecentFailures(ctx, 1)
	if err != nil {
		return debuginfo.Info{}, fmt.Errorf("load recent failures: %w", err)
	}
	if len(failures) == 0 {
		return debuginfo.Info{}, fmt.Errorf("no failed exchanges in the request log")
	}

	record := failures[0]
	info := debuginfo.ForGuestCheckout(debuginfo.GuestCheckoutInfo{
		AppID: cfg.Support.AppID,
	})
	info.ErrorMessage = record.ErrorCode
	info.DebugMessage = fmt.Sprintf("%s %s -> %d (%s) correlation_id=%s",
		record.Method, record.Path, record.Status, record.ErrorMessage, record.CorrelationID)
	return info, nil
}
