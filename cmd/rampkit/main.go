package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rampkit/gateway/internal/api"
	"github.com/rampkit/gateway/internal/config"
	"github.com/rampkit/gateway/internal/debuginfo"
	"github.com/rampkit/gateway/internal/mailer"
	"github.com/rampkit/gateway/internal/observability"
	"github.com/rampkit/gateway/internal/onramp"
	"github.com/rampkit/gateway/internal/proxy"
	"github.com/rampkit/gateway/internal/requestlog"
	"github.com/rampkit/gateway/internal/session"
	"github.com/rampkit/gateway/internal/version"
)

const defaultConfigPath = "rampkit.yaml"

const logWriterShutdownTimeout = 5 * time.Second
const otelShutdownTimeout = 5 * time.Second
const serverReadHeaderTimeout = 10 * time.Second
const serverReadTimeout = 30 * time.Second
const serverIdleTimeout = 2 * time.Minute
const onrampRequestTimeout = 30 * time.Second

var signalNotifyContext = signal.NotifyContext

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		return runServe(nil)
	}

	switch args[0] {
	case "version", "--version", "-v":
		fmt.Println(version.String())
		return 0
	case "serve":
		return runServe(args[1:])
	case "support":
		return runSupport(args[1:], os.Stdout, os.Stderr)
	case "config":
		return runConfig(args[1:], os.Stdout, os.Stderr)
	default:
		printUsage(os.Stderr)
		return 2
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "usage: rampkit [serve|support|config|version]")
	fmt.Fprintln(out, "  serve    run the gateway (default)")
	fmt.Fprintln(out, "  support  compose a support email from flags or the last logged failure")
	fmt.Fprintln(out, "  config   validate configuration")
	fmt.Fprintln(out, "  version  print build information")
}

func runConfig(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 || args[0] != "validate" {
		fmt.Fprintln(errOut, "usage: rampkit config validate [--config path/to/rampkit.yaml]")
		return 2
	}

	flagSet := flag.NewFlagSet("config validate", flag.ContinueOnError)
	flagSet.SetOutput(errOut)
	configPath := flagSet.String("config", defaultConfigPath, "Path to config file")
	if err := flagSet.Parse(args[1:]); err != nil {
		return 2
	}
	if flagSet.NArg() != 0 {
		fmt.Fprintln(errOut, "config validate does not accept positional arguments")
		return 2
	}

	if _, err := loadAndValidateConfig(*configPath); err != nil {
		fmt.Fprintf(errOut, "config is invalid: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "config is valid: %s\n", *configPath)
	return 0
}

func loadAndValidateConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// sessionContext assembles the per-process session context: environment
// first, config overrides on top.
func sessionContext(cfg config.Config) session.Context {
	sessionCtx := session.FromEnvironment()
	if appID := strings.TrimSpace(cfg.Support.AppID); appID != "" {
		sessionCtx.ApplicationID = appID
	}
	if country := strings.TrimSpace(cfg.Onramp.Country); country != "" {
		sessionCtx.CountryCode = country
	}
	sessionCtx.Sandbox = cfg.Onramp.Sandbox
	return sessionCtx
}

func newBuilder(cfg config.Config) *debuginfo.Builder {
	return &debuginfo.Builder{
		Context: sessionContext(cfg),
		Random:  debuginfo.CryptoRandom{},
		Address: cfg.Support.Address,
	}
}

func openStore(cfg config.Config) (requestlog.Store, func() error, error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		store, err := requestlog.NewSQLiteStore(cfg.Storage.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize sqlite storage: %w", err)
		}
		return store, store.Close, nil
	case "postgres":
		store, err := requestlog.NewPostgresStore(cfg.Storage.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize postgres storage: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage.driver %q", cfg.Storage.Driver)
	}
}

func runServe(args []string) int {
	flagSet := flag.NewFlagSet("serve", flag.ContinueOnError)
	flagSet.SetOutput(os.Stderr)
	configPath := flagSet.String("config", defaultConfigPath, "Path to config file")
	if err := flagSet.Parse(args); err != nil {
		return 2
	}

	// Local-first tooling: a .env next to the binary is the easiest place to
	// keep the provider API key out of the YAML file.
	_ = godotenv.Load()

	cfg, err := loadAndValidateConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	logger := slog.New(observability.NewTraceLogHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
	))

	otelRuntime, otelErr := observability.Setup(context.Background(), cfg.Observability.OTel, version.String(), logger)
	if otelErr != nil {
		logger.Error("failed to initialize opentelemetry; continuing with instrumentation disabled", "error", otelErr)
	}
	if otelRuntime != nil {
		defer shutdownOpenTelemetry(logger, otelRuntime, otelShutdownTimeout)
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("failed to close request log store", "error", err)
		}
	}()

	// Headroom for short bursts while keeping explicit backpressure (drop on
	// full queue) if storage falls behind.
	writer := requestlog.NewWriter(store, 1024)
	writer.OnWriteFailure = func(failure requestlog.WriteFailure) {
		logger.Error(
			"request log write failed; dropping batch",
			"batch_size", failure.BatchSize,
			"error_class", failure.Class,
			"error", failure.Err,
		)
		if otelRuntime != nil {
			otelRuntime.RecordLogWriteFailure(failure.Class, failure.BatchSize)
		}
	}
	writer.Start(context.Background())
	defer shutdownLogWriter(logger, writer, logWriterShutdownTimeout)

	builder := newBuilder(cfg)
	launcher := mailer.OSLauncher{Logger: logger}

	var sender api.Sender
	if cfg.SMTP.Enabled {
		sender = mailer.SMTPSender{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}
	}

	outboundTransport := http.DefaultTransport
	if otelRuntime != nil {
		outboundTransport = otelRuntime.WrapHTTPTransport(outboundTransport)
	}
	onrampClient := &onramp.Client{
		BaseURL: cfg.Onramp.Upstream,
		APIKey:  cfg.Onramp.APIKey,
		HTTPClient: &http.Client{
			Transport: outboundTransport,
			Timeout:   onrampRequestTimeout,
		},
		Logger: logger,
	}

	apiHandler := api.NewRouter(api.RouterOptions{
		AppVersion:    version.String(),
		Store:         store,
		StorageDriver: cfg.Storage.Driver,
		StoragePath:   cfg.Storage.Path,
		Builder:       builder,
		Launcher:      launcher,
		Sender:        sender,
		Quotes:        onrampClient,
		Tokens:        onrampClient,
		Transactions:  onrampClient,
		Metrics:       otelRuntime,
	})

	proxyOptions := proxy.HandlerOptions{}
	if otelRuntime != nil {
		proxyOptions.Transport = otelRuntime.WrapHTTPTransport(http.DefaultTransport)
	}
	proxyHandler, err := proxy.NewHandlerWithOptions([]proxy.Route{
		{Prefix: cfg.Onramp.Prefix, Upstream: cfg.Onramp.Upstream, APIKey: cfg.Onramp.APIKey},
	}, logger, apiHandler, proxyOptions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to configure proxy routes: %v\n", err)
		return 1
	}

	recordSink := func(record *requestlog.Record) {
		if writer.Enqueue(record) {
			return
		}
		logger.Warn(
			"request log queue is full; dropping record",
			"correlation_id", record.CorrelationID,
			"path", record.Path,
			"status", record.Status,
		)
		if otelRuntime != nil {
			otelRuntime.RecordLogQueueDrop(record.Path, record.Status)
		}
	}
	serverHandler := proxy.RecordingMiddleware(logger, recordSink, proxy.RecordingOptions{
		Sandbox: cfg.Onramp.Sandbox,
	}, proxyHandler)
	if otelRuntime != nil {
		serverHandler = otelRuntime.WrapHTTPHandler(serverHandler)
	}

	server := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           serverHandler,
		ReadHeaderTimeout: serverReadHeaderTimeout,
		ReadTimeout:       serverReadTimeout,
		IdleTimeout:       serverIdleTimeout,
	}

	logger.Info(
		"startup banner",
		"version", version.String(),
		"addr", server.Addr,
		"storage_driver", cfg.Storage.Driver,
		"onramp_upstream", cfg.Onramp.Upstream,
		"onramp_prefix", cfg.Onramp.Prefix,
		"sandbox", cfg.Onramp.Sandbox,
		"smtp_enabled", cfg.SMTP.Enabled,
		"config_path", *configPath,
	)

	ctx, stop := signalNotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown", "error", err)
			return 1
		}
		logger.Info("gateway stopped")
		return 0
	case err := <-errCh:
		if err != nil {
			logger.Error("gateway failed", "error", err)
			return 1
		}
		return 0
	}
}

func shutdownLogWriter(logger *slog.Logger, writer *requestlog.Writer, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := writer.Shutdown(ctx); err != nil {
		logger.Error("failed to flush request log writer", "error", err)
	}
}

func shutdownOpenTelemetry(logger *slog.Logger, runtime *observability.Runtime, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := runtime.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown opentelemetry", "error", err)
	}
}
