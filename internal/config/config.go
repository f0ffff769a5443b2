package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName        = "Cowrie"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultQuoteTTL       = 2 * time.Minute
	defaultProviderWait   = 30 * time.Second
)

// RailConfig holds connection details for one external banking rail.
type RailConfig struct {
	BaseURL string
	APIKey  string
}

// AmountLimits bounds a single transaction in minor units for one currency.
type AmountLimits struct {
	MinMinor int64
	MaxMinor int64
}

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	JWTSecret      string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	// NGNRail is the naira virtual-account provider.
	NGNRail RailConfig
	// MulticurrencyRail is the multi-currency processor.
	MulticurrencyRail RailConfig
	// MulticurrencyWebhookSecret is the base64 shared secret used to verify
	// inbound multi-currency events.
	MulticurrencyWebhookSecret string
	ProviderTimeout            time.Duration

	// TransferLimits bounds transfer and withdrawal amounts per currency,
	// in minor units.
	TransferLimits map[string]AmountLimits
	// TransferFeeMinor is the flat fee charged after a successful transfer
	// initiation, in minor units of the transfer currency.
	TransferFeeMinor int64
	// FeeAccountNumber receives collected fees on the NGN rail.
	FeeAccountNumber string
	FeeBankCode      string
	// SwapQuoteTTL is how long an FX quote stays executable.
	SwapQuoteTTL time.Duration
}

// Load reads configuration values from the environment and populates a Config
// instance. A .env file is honoured when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,
		NGNRail: RailConfig{
			BaseURL: os.Getenv("NGN_RAIL_BASE_URL"),
			APIKey:  os.Getenv("NGN_RAIL_API_KEY"),
		},
		MulticurrencyRail: RailConfig{
			BaseURL: os.Getenv("MC_RAIL_BASE_URL"),
			APIKey:  os.Getenv("MC_RAIL_API_KEY"),
		},
		MulticurrencyWebhookSecret: os.Getenv("MC_WEBHOOK_SECRET"),
		ProviderTimeout:            defaultProviderWait,
		TransferLimits:             defaultTransferLimits(),
		TransferFeeMinor:           5000, // NGN 50.00 unless overridden
		FeeAccountNumber:           os.Getenv("FEE_ACCOUNT_NUMBER"),
		FeeBankCode:                os.Getenv("FEE_BANK_CODE"),
		SwapQuoteTTL:               defaultQuoteTTL,
	}

	if d, err := durationEnv("SHUTDOWN_TIMEOUT"); err != nil {
		return Config{}, err
	} else if d > 0 {
		cfg.ShutdownPeriod = d
	}
	if d, err := durationEnv("IDEMPOTENCY_TTL"); err != nil {
		return Config{}, err
	} else if d > 0 {
		cfg.IdempotencyTTL = d
	}
	if d, err := durationEnv("PROVIDER_TIMEOUT"); err != nil {
		return Config{}, err
	} else if d > 0 {
		cfg.ProviderTimeout = d
	}
	if d, err := durationEnv("SWAP_QUOTE_TTL"); err != nil {
		return Config{}, err
	} else if d > 0 {
		cfg.SwapQuoteTTL = d
	}

	if v := os.Getenv("TRANSFER_FEE_MINOR"); v != "" {
		fee, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TRANSFER_FEE_MINOR: %w", err)
		}
		cfg.TransferFeeMinor = fee
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must be set")
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

func defaultTransferLimits() map[string]AmountLimits {
	return map[string]AmountLimits{
		"NGN": {MinMinor: 10_000, MaxMinor: 500_000_000}, // 100.00 to 5,000,000.00
		"USD": {MinMinor: 100, MaxMinor: 1_000_000},
		"EUR": {MinMinor: 100, MaxMinor: 1_000_000},
		"GBP": {MinMinor: 100, MaxMinor: 1_000_000},
	}
}

// durationEnv reads KEY as a Go duration or KEY_SECONDS as an integer second
// count. Returns zero when neither is set.
func durationEnv(key string) (time.Duration, error) {
	if v := os.Getenv(key + "_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s_SECONDS: %w", key, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, nil
	}
	return 0, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
