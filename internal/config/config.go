package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Onramp        OnrampConfig        `yaml:"onramp"`
	Support       SupportConfig       `yaml:"support"`
	SMTP          SMTPConfig          `yaml:"smtp"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

// OnrampConfig describes the payment provider behind the local proxy. The
// API key stays in the gateway; mobile clients only ever see the proxy.
type OnrampConfig struct {
	Upstream string `yaml:"upstream"`
	Prefix   string `yaml:"prefix"`
	APIKey   string `yaml:"api_key"`
	// Country is the default ISO 3166-1 alpha-2 purchase country applied to
	// quote requests that do not carry one.
	Country string `yaml:"country"`
	Sandbox bool   `yaml:"sandbox"`
}

type SupportConfig struct {
	// Address overrides the built-in support mailbox when set.
	Address string `yaml:"address"`
	// AppID identifies this integration in emitted debug blocks.
	AppID string `yaml:"app_id"`
}

type SMTPConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type ObservabilityConfig struct {
	OTel OTelConfig `yaml:"otel"`
}

type OTelConfig struct {
	Enabled                bool    `yaml:"enabled"`
	Endpoint               string  `yaml:"endpoint"`
	Insecure               bool    `yaml:"insecure"`
	ServiceName            string  `yaml:"service_name"`
	TracesEnabled          bool    `yaml:"traces_enabled"`
	MetricsEnabled         bool    `yaml:"metrics_enabled"`
	SamplingRatio          float64 `yaml:"sampling_ratio"`
	ExportTimeoutMS        int     `yaml:"export_timeout_ms"`
	MetricExportIntervalMS int     `yaml:"metric_export_interval_ms"`
}

const (
	defaultOTELEndpoint               = "localhost:4318"
	defaultOTELServiceName            = "rampkit-gateway"
	defaultOTELSamplingRatio          = 1.0
	defaultOTELExportTimeoutMS        = 3000
	defaultOTELMetricExportIntervalMS = 10000
)

func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8090,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   "./data/rampkit.db",
		},
		Onramp: OnrampConfig{
			Upstream: "https://api.developer.coinbase.com",
			Prefix:   "/provider",
		},
		SMTP: SMTPConfig{
			Port: 587,
		},
		Observability: ObservabilityConfig{
			OTel: OTelConfig{
				Enabled:                false,
				Endpoint:               defaultOTELEndpoint,
				Insecure:               true,
				ServiceName:            defaultOTELServiceName,
				TracesEnabled:          true,
				MetricsEnabled:         true,
				SamplingRatio:          defaultOTELSamplingRatio,
				ExportTimeoutMS:        defaultOTELExportTimeoutMS,
				MetricExportIntervalMS: defaultOTELMetricExportIntervalMS,
			},
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			decoder := yaml.NewDecoder(bytes.NewReader(data))
			decoder.KnownFields(true)
			decodeErr := decoder.Decode(&cfg)
			if errors.Is(decodeErr, io.EOF) {
				decodeErr = nil
			}
			if decodeErr != nil {
				return Config{}, fmt.Errorf("parse yaml %q: %w", path, decodeErr)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks configuration invariants required at runtime.
func Validate(cfg Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535 (got %d)", cfg.Server.Port)
	}

	switch driver := strings.TrimSpace(cfg.Storage.Driver); driver {
	case "sqlite":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			return errors.New("storage.path is required when storage.driver=sqlite")
		}
	case "postgres":
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			return errors.New("storage.dsn is required when storage.driver=postgres")
		}
	default:
		return fmt.Errorf("storage.driver must be one of sqlite, postgres (got %q)", cfg.Storage.Driver)
	}

	prefix := strings.TrimSpace(cfg.Onramp.Prefix)
	if prefix == "" || !strings.HasPrefix(prefix, "/") {
		return fmt.Errorf("onramp.prefix must start with '/' (got %q)", cfg.Onramp.Prefix)
	}
	upstream := strings.TrimSpace(cfg.Onramp.Upstream)
	if upstream == "" {
		return errors.New("onramp.upstream is required")
	}
	parsed, err := url.Parse(upstream)
	if err != nil {
		return fmt.Errorf("parse onramp.upstream: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("onramp.upstream must include scheme and host (got %q)", cfg.Onramp.Upstream)
	}
	if country := strings.TrimSpace(cfg.Onramp.Country); country != "" && len(country) != 2 {
		return fmt.Errorf("onramp.country must be a two-letter code (got %q)", cfg.Onramp.Country)
	}

	if address := strings.TrimSpace(cfg.Support.Address); address != "" && !strings.Contains(address, "@") {
		return fmt.Errorf("support.address must be an email address (got %q)", cfg.Support.Address)
	}

	if cfg.SMTP.Enabled {
		if strings.TrimSpace(cfg.SMTP.Host) == "" {
			return errors.New("smtp.host is required when smtp.enabled=true")
		}
		if cfg.SMTP.Port <= 0 || cfg.SMTP.Port > 65535 {
			return fmt.Errorf("smtp.port must be between 1 and 65535 (got %d)", cfg.SMTP.Port)
		}
		if strings.TrimSpace(cfg.SMTP.From) == "" {
			return errors.New("smtp.from is required when smtp.enabled=true")
		}
	}

	return validateOTelConfig(cfg.Observability.OTel)
}

func validateOTelConfig(cfg OTelConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return errors.New("observability.otel.endpoint is required when observability.otel.enabled=true")
	}
	if strings.TrimSpace(cfg.ServiceName) == "" {
		return errors.New("observability.otel.service_name is required when observability.otel.enabled=true")
	}
	if !cfg.TracesEnabled && !cfg.MetricsEnabled {
		return errors.New("observability.otel requires traces_enabled and/or metrics_enabled when enabled")
	}
	if cfg.SamplingRatio < 0 || cfg.SamplingRatio > 1 {
		return fmt.Errorf("observability.otel.sampling_ratio must be between 0 and 1 (got %f)", cfg.SamplingRatio)
	}
	if cfg.ExportTimeoutMS <= 0 {
		return fmt.Errorf("observability.otel.export_timeout_ms must be > 0 (got %d)", cfg.ExportTimeoutMS)
	}
	if cfg.MetricExportIntervalMS <= 0 {
		return fmt.Errorf("observability.otel.metric_export_interval_ms must be > 0 (got %d)", cfg.MetricExportIntervalMS)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if host := os.Getenv("RAMPKIT_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("RAMPKIT_PORT"); port != "" {
		v, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid RAMPKIT_PORT: %w", err)
		}
		cfg.Server.Port = v
	}

	if driver := os.Getenv("RAMPKIT_STORAGE_DRIVER"); driver != "" {
		cfg.Storage.Driver = driver
	}
	if path := os.Getenv("RAMPKIT_STORAGE_PATH"); path != "" {
		cfg.Storage.Path = path
	}
	if dsn := os.Getenv("RAMPKIT_STORAGE_DSN"); dsn != "" {
		cfg.Storage.DSN = dsn
	}

	if upstream := os.Getenv("RAMPKIT_ONRAMP_UPSTREAM"); upstream != "" {
		cfg.Onramp.Upstream = upstream
	}
	if apiKey := os.Getenv("RAMPKIT_ONRAMP_API_KEY"); apiKey != "" {
		cfg.Onramp.APIKey = apiKey
	}
	if country := os.Getenv("RAMPKIT_ONRAMP_COUNTRY"); country != "" {
		cfg.Onramp.Country = country
	}
	if sandbox := os.Getenv("RAMPKIT_SANDBOX"); sandbox != "" {
		v, err := strconv.ParseBool(sandbox)
		if err != nil {
			return fmt.Errorf("invalid RAMPKIT_SANDBOX: %w", err)
		}
		cfg.Onramp.Sandbox = v
	}

	if address := os.Getenv("RAMPKIT_SUPPORT_ADDRESS"); address != "" {
		cfg.Support.Address = address
	}
	if appID := os.Getenv("RAMPKIT_APP_ID"); appID != "" {
		cfg.Support.AppID = appID
	}

	if smtpHost := os.Getenv("RAMPKIT_SMTP_HOST"); smtpHost != "" {
		cfg.SMTP.Host = smtpHost
		cfg.SMTP.Enabled = true
	}
	if smtpPort := os.Getenv("RAMPKIT_SMTP_PORT"); smtpPort != "" {
		v, err := strconv.Atoi(smtpPort)
		if err != nil {
			return fmt.Errorf("invalid RAMPKIT_SMTP_PORT: %w", err)
		}
		cfg.SMTP.Port = v
	}
	if smtpUser := os.Getenv("RAMPKIT_SMTP_USERNAME"); smtpUser != "" {
		cfg.SMTP.Username = smtpUser
	}
	if smtpPass := os.Getenv("RAMPKIT_SMTP_PASSWORD"); smtpPass != "" {
		cfg.SMTP.Password = smtpPass
	}
	if smtpFrom := os.Getenv("RAMPKIT_SMTP_FROM"); smtpFrom != "" {
		cfg.SMTP.From = smtpFrom
	}

	return applyOTelEnv(cfg)
}

func applyOTelEnv(cfg *Config) error {
	configured := false
	sdkDisabledSet := false

	if sdkDisabled := strings.TrimSpace(os.Getenv("OTEL_SDK_DISABLED")); sdkDisabled != "" {
		v, err := strconv.ParseBool(sdkDisabled)
		if err != nil {
			return fmt.Errorf("invalid OTEL_SDK_DISABLED: %w", err)
		}
		cfg.Observability.OTel.Enabled = !v
		sdkDisabledSet = true
		configured = true
	}
	if endpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); endpoint != "" {
		cfg.Observability.OTel.Endpoint = endpoint
		configured = true
	}
	if insecure := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); insecure != "" {
		v, err := strconv.ParseBool(insecure)
		if err != nil {
			return fmt.Errorf("invalid OTEL_EXPORTER_OTLP_INSECURE: %w", err)
		}
		cfg.Observability.OTel.Insecure = v
		configured = true
	}
	if serviceName := strings.TrimSpace(os.Getenv("OTEL_SERVICE_NAME")); serviceName != "" {
		cfg.Observability.OTel.ServiceName = serviceName
		configured = true
	}
	if samplingRatio := strings.TrimSpace(os.Getenv("OTEL_TRACES_SAMPLER_ARG")); samplingRatio != "" {
		v, err := strconv.ParseFloat(samplingRatio, 64)
		if err != nil {
			return fmt.Errorf("invalid OTEL_TRACES_SAMPLER_ARG: %w", err)
		}
		cfg.Observability.OTel.SamplingRatio = v
		configured = true
	}
	if configured && !sdkDisabledSet {
		cfg.Observability.OTel.Enabled = true
	}
	return nil
}
