package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName          = "SKAET USSD"
	defaultAppEnv           = "development"
	defaultPort             = "8080"
	defaultLogLevel         = "info"
	defaultShutdownDelay    = 10 * time.Second
	defaultSessionTTL       = 300 * time.Second
	defaultWebhookReplayTTL = 24 * time.Hour
	defaultHTTPTimeout      = 10 * time.Second
	defaultStoreTimeout     = 2 * time.Second
	defaultGateway          = "flutterwave"
	defaultFlutterwaveURL   = "https://api.flutterwave.com/v3"
	defaultTermiiURL        = "https://api.ng.termii.com"
	defaultCurrencyURL      = "https://api.currencyapi.com/v3"
	defaultWithdrawalBank   = "058"
	defaultSMSChannel       = "generic"
	defaultRateLimit        = 30
	defaultNotifyWorkers    = 4
	defaultNotifyQueue      = 256
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration

	SessionTTL       time.Duration
	WebhookReplayTTL time.Duration
	HTTPTimeout      time.Duration
	StoreTimeout     time.Duration

	PaymentGateway       string
	FlutterwaveBaseURL   string
	FlutterwaveSecretKey string
	FlutterwaveHash      string
	WithdrawalBankCode   string

	TermiiBaseURL string
	TermiiAPIKey  string
	SMSSender     string
	SMSChannel    string

	CurrencyBaseURL string
	CurrencyAPIKey  string

	AdminJWTSecret     string
	MigrateOnStart     bool
	RateLimitPerMinute int
	NotifyWorkers      int
	NotifyQueue        int
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:              getEnv("APP_NAME", defaultAppName),
		AppEnv:               getEnv("APP_ENV", defaultAppEnv),
		Port:                 getEnv("PORT", defaultPort),
		LogLevel:             strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisURL:             os.Getenv("REDIS_URL"),
		PaymentGateway:       strings.ToLower(getEnv("PAYMENT_GATEWAY", defaultGateway)),
		FlutterwaveBaseURL:   getEnv("FLUTTERWAVE_BASE_URL", defaultFlutterwaveURL),
		FlutterwaveSecretKey: os.Getenv("FLUTTERWAVE_SECRET_KEY"),
		FlutterwaveHash:      os.Getenv("FLUTTERWAVE_WEBHOOK_HASH"),
		WithdrawalBankCode:   getEnv("WITHDRAWAL_BANK_CODE", defaultWithdrawalBank),
		TermiiBaseURL:        getEnv("TERMII_BASE_URL", defaultTermiiURL),
		TermiiAPIKey:         os.Getenv("TERMII_API_KEY"),
		SMSSender:            os.Getenv("SMS_SENDER"),
		SMSChannel:           getEnv("SMS_CHANNEL", defaultSMSChannel),
		CurrencyBaseURL:      getEnv("CURRENCY_API_BASE_URL", defaultCurrencyURL),
		CurrencyAPIKey:       os.Getenv("CURRENCY_API_KEY"),
		AdminJWTSecret:       os.Getenv("ADMIN_JWT_SECRET"),
	}

	durations := []struct {
		prefix   string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"SHUTDOWN_TIMEOUT", defaultShutdownDelay, &cfg.ShutdownPeriod},
		{"SESSION_TTL", defaultSessionTTL, &cfg.SessionTTL},
		{"WEBHOOK_REPLAY_TTL", defaultWebhookReplayTTL, &cfg.WebhookReplayTTL},
		{"HTTP_TIMEOUT", defaultHTTPTimeout, &cfg.HTTPTimeout},
		{"STORE_TIMEOUT", defaultStoreTimeout, &cfg.StoreTimeout},
	}
	for _, d := range durations {
		v, err := durationEnv(d.prefix, d.fallback)
		if err != nil {
			return Config{}, err
		}
		*d.dst = v
	}

	ints := []struct {
		key      string
		fallback int
		dst      *int
	}{
		{"RATE_LIMIT_PER_MINUTE", defaultRateLimit, &cfg.RateLimitPerMinute},
		{"NOTIFY_WORKERS", defaultNotifyWorkers, &cfg.NotifyWorkers},
		{"NOTIFY_QUEUE", defaultNotifyQueue, &cfg.NotifyQueue},
	}
	for _, i := range ints {
		v, err := intEnv(i.key, i.fallback)
		if err != nil {
			return Config{}, err
		}
		*i.dst = v
	}

	if v := os.Getenv("MIGRATE_ON_START"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid MIGRATE_ON_START: %w", err)
		}
		cfg.MigrateOnStart = b
	}

	if cfg.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("SESSION_TTL must be positive")
	}

	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.FlutterwaveSecretKey == "" {
			return Config{}, fmt.Errorf("FLUTTERWAVE_SECRET_KEY must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.FlutterwaveHash == "" {
			return Config{}, fmt.Errorf("FLUTTERWAVE_WEBHOOK_HASH must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the environment allows in-memory backends and stub collaborators.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// durationEnv reads PREFIX_SECONDS as an integer number of seconds, falling
// back to PREFIX as a Go duration string.
func durationEnv(prefix string, fallback time.Duration) (time.Duration, error) {
	secondsKey := prefix + "_SECONDS"
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(prefix); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", prefix, err)
		}
		return d, nil
	}
	return fallback, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
