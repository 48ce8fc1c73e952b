package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile          = ".env"
	defaultPort             = "8080"
	defaultReadTimeout      = 15 * time.Second
	defaultWriteTimeout     = 30 * time.Second
	defaultIdleTimeout      = 120 * time.Second
	defaultEnvironment      = "local"
	defaultCurrency         = "USD"
	defaultAuthCookieName   = "snapedits_session"
	defaultInvoiceDir       = "invoices"
	defaultInvoiceBaseURL   = "/api/v1/orders"
	defaultSweepInterval    = 6 * time.Hour
	defaultSweepMaxAttempts = 3
	defaultSMTPPort         = 587
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Environment string
	Firestore   FirestoreConfig
	Auth        AuthConfig
	PayPal      PayPalConfig
	SMTP        SMTPConfig
	Invoices    InvoiceConfig
	Sweep       SweepConfig
	Currency    string
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// AuthConfig controls session token verification.
type AuthConfig struct {
	JWTSecret  string
	CookieName string
}

// PayPalConfig collects PayPal REST credentials.
type PayPalConfig struct {
	ClientID string
	Secret   string
	Live     bool
}

// SMTPConfig describes the outbound mail relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// InvoiceConfig controls where generated invoice PDFs are written and how
// their public URLs are built.
type InvoiceConfig struct {
	Directory string
	BaseURL   string
}

// SweepConfig controls the background refund retry loop.
type SweepConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// and environment variables.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Environment: strings.ToLower(stringWithDefault(lookup, "API_ENVIRONMENT", defaultEnvironment)),
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Auth: AuthConfig{
			JWTSecret:  stringWithDefault(lookup, "API_AUTH_JWT_SECRET", ""),
			CookieName: stringWithDefault(lookup, "API_AUTH_COOKIE_NAME", defaultAuthCookieName),
		},
		PayPal: PayPalConfig{
			ClientID: stringWithDefault(lookup, "API_PAYPAL_CLIENT_ID", ""),
			Secret:   stringWithDefault(lookup, "API_PAYPAL_SECRET", ""),
			Live:     boolWithDefault(lookup, "API_PAYPAL_LIVE", false),
		},
		SMTP: SMTPConfig{
			Host:     stringWithDefault(lookup, "API_SMTP_HOST", ""),
			Port:     intWithDefault(lookup, "API_SMTP_PORT", defaultSMTPPort),
			Username: stringWithDefault(lookup, "API_SMTP_USERNAME", ""),
			Password: stringWithDefault(lookup, "API_SMTP_PASSWORD", ""),
			From:     stringWithDefault(lookup, "API_SMTP_FROM", ""),
		},
		Invoices: InvoiceConfig{
			Directory: stringWithDefault(lookup, "API_INVOICE_DIR", defaultInvoiceDir),
			BaseURL:   stringWithDefault(lookup, "API_INVOICE_BASE_URL", defaultInvoiceBaseURL),
		},
		Sweep: SweepConfig{
			Interval:    durationWithDefault(lookup, "API_REFUND_SWEEP_INTERVAL", defaultSweepInterval),
			MaxAttempts: intWithDefault(lookup, "API_REFUND_SWEEP_MAX_ATTEMPTS", defaultSweepMaxAttempts),
		},
		Currency: strings.ToUpper(stringWithDefault(lookup, "API_CURRENCY", defaultCurrency)),
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Firestore.ProjectID == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	if strings.TrimSpace(cfg.Auth.CookieName) == "" {
		missing = append(missing, "Auth.CookieName")
	}
	if strings.TrimSpace(cfg.Invoices.Directory) == "" {
		missing = append(missing, "Invoices.Directory")
	}
	if cfg.Sweep.Interval <= 0 {
		missing = append(missing, "Sweep.Interval")
	}
	if cfg.Sweep.MaxAttempts <= 0 {
		missing = append(missing, "Sweep.MaxAttempts")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
