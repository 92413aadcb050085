// Package config reads service settings from the environment, optionally
// seeded from a .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/domain"
)

type Stripe struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
	APIURL         string
	Currency       string
	Timeout        time.Duration
}

type SMTP struct {
	Addr     string
	Host     string
	From     string
	Username string
	Password string
}

// Shopper holds settings for the command-line storefront client.
type Shopper struct {
	APIURL  string
	Home    string
	Timeout time.Duration
}

type Config struct {
	Port             string
	PostgresURL      string
	MigrationsPath   string
	JWTSecret        string
	JWTTTL           time.Duration
	CookieSecure     bool
	CORSOrigins      []string
	Stripe           Stripe
	KafkaBrokers     []string
	OrderEventsTopic string
	S3Bucket         string
	OTLPEndpoint     string
	Pricing          domain.ThresholdPolicy
	SMTP             SMTP
	Shopper          Shopper
}

// Load reads the environment. A missing .env file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Port:             getenv("PORT", "5000"),
		PostgresURL:      os.Getenv("POSTGRES_URL"),
		MigrationsPath:   getenv("MIGRATIONS_PATH", "file://migrations"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		CORSOrigins:      splitList(getenv("CORS_ORIGINS", "http://localhost:3000,http://localhost:3333,https://wristix.vercel.app,https://*.vercel.app")),
		KafkaBrokers:     splitList(os.Getenv("KAFKA_BROKERS")),
		OrderEventsTopic: getenv("ORDER_EVENTS_TOPIC", "order.events"),
		S3Bucket:         os.Getenv("S3_BUCKET"),
		OTLPEndpoint:     getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		Stripe: Stripe{
			SecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
			PublishableKey: os.Getenv("STRIPE_PUBLISHABLE_KEY"),
			WebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
			APIURL:         getenv("STRIPE_API_URL", "https://api.stripe.com"),
			Currency:       getenv("PAYMENT_CURRENCY", "usd"),
		},
		SMTP: SMTP{
			Addr:     os.Getenv("SMTP_ADDRESS"),
			Host:     os.Getenv("SMTP_HOST"),
			From:     os.Getenv("FROM_EMAIL"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
		},
		Shopper: Shopper{
			APIURL: getenv("WRISTIX_API_URL", "http://localhost:5000"),
			Home:   getenv("WRISTIX_HOME", defaultShopperHome()),
		},
	}

	var err error
	if cfg.JWTTTL, err = durationEnv("JWT_TTL", 30*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Stripe.Timeout, err = durationEnv("PAYMENT_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.Shopper.Timeout, err = durationEnv("WRISTIX_API_TIMEOUT", 20*time.Second); err != nil {
		return nil, err
	}
	if cfg.CookieSecure, err = boolEnv("COOKIE_SECURE", true); err != nil {
		return nil, err
	}

	cfg.Pricing = domain.DefaultPricing()
	if cfg.Pricing.FlatShipping, err = decimalEnv("SHIPPING_FLAT", cfg.Pricing.FlatShipping); err != nil {
		return nil, err
	}
	if cfg.Pricing.FreeShippingOver, err = decimalEnv("FREE_SHIPPING_OVER", cfg.Pricing.FreeShippingOver); err != nil {
		return nil, err
	}
	if cfg.Pricing.TaxRate, err = decimalEnv("TAX_RATE", cfg.Pricing.TaxRate); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ValidateAPI checks the settings the API server cannot start without.
func (c *Config) ValidateAPI() error {
	var missing []string
	if c.PostgresURL == "" {
		missing = append(missing, "POSTGRES_URL")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ValidateNotifier checks the settings the email notifier needs.
func (c *Config) ValidateNotifier() error {
	var missing []string
	if len(c.KafkaBrokers) == 0 {
		missing = append(missing, "KAFKA_BROKERS")
	}
	if c.SMTP.Addr == "" {
		missing = append(missing, "SMTP_ADDRESS")
	}
	if c.SMTP.From == "" {
		missing = append(missing, "FROM_EMAIL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func defaultShopperHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wristix"
	}
	return filepath.Join(home, ".wristix")
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

func decimalEnv(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
