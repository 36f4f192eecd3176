// Package config loads process configuration from the environment, reading
// a .env file first when one exists.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/joho/godotenv"

	"github.com/xraph/condoledger/payment"
	"github.com/xraph/condoledger/types"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// Config is the process configuration of the condoledger binary.
type Config struct {
	StoreDriver   string
	DatabaseURL   string
	SQLitePath    string
	MongoURI      string
	MongoDatabase string
	PGMaxConns    int32

	KafkaBrokers  []string
	KafkaTopic    string
	RabbitMQURL   string
	RabbitMQQueue string

	Locale     types.Locale
	Thresholds payment.Thresholds
	LogLevel   slog.Level
}

// Load reads the given .env files (".env" when none are given) and then
// the environment. A missing .env file is not an error. Variables already
// set in the environment win over the file.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil {
		slog.Warn("No .env file found, relying on System Env Variables", "error", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (*Config, error) {
	var errs []error

	cfg := &Config{
		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", DriverMemory)),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "condoledger.db"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
		MongoDatabase: getEnv("MONGO_DATABASE", "condoledger"),
		KafkaBrokers:  splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "condoledger.events"),
		RabbitMQURL:   getEnv("RABBITMQ_URL", ""),
		RabbitMQQueue: getEnv("RABBITMQ_QUEUE", "condoledger.events"),
	}

	maxConns, err := getInt("PG_MAX_CONNS", 10)
	errs = append(errs, err)
	cfg.PGMaxConns = int32(maxConns)

	cfg.Locale = types.DefaultLocale()
	cfg.Locale.CurrencyCode = getEnv("CURRENCY_CODE", cfg.Locale.CurrencyCode)
	cfg.Locale.DecimalSeparator, err = getRune("DECIMAL_SEPARATOR", cfg.Locale.DecimalSeparator)
	errs = append(errs, err)
	cfg.Locale.ThousandsSeparator, err = getRune("THOUSANDS_SEPARATOR", cfg.Locale.ThousandsSeparator)
	errs = append(errs, err)
	digits, err := getInt("FRACTION_DIGITS", int(cfg.Locale.FractionDigits))
	errs = append(errs, err)
	cfg.Locale.FractionDigits = int32(digits)

	cfg.Thresholds = payment.DefaultThresholds()
	cfg.Thresholds.Mild, err = getInt("MILD_OVERDUE_DAYS", cfg.Thresholds.Mild)
	errs = append(errs, err)
	cfg.Thresholds.Moderate, err = getInt("MODERATE_OVERDUE_DAYS", cfg.Thresholds.Moderate)
	errs = append(errs, err)

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("config: LOG_LEVEL: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory, DriverSQLite, DriverMongo:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if err := c.Locale.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Thresholds.Mild < 0 || c.Thresholds.Moderate < c.Thresholds.Mild {
		return fmt.Errorf("config: overdue thresholds %d/%d must satisfy 0 <= mild <= moderate",
			c.Thresholds.Mild, c.Thresholds.Moderate)
	}
	if c.PGMaxConns <= 0 {
		return fmt.Errorf("config: PG_MAX_CONNS must be positive, got %d", c.PGMaxConns)
	}
	return nil
}

// Helper to get env with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback, fmt.Errorf("config: %s: %q is not an integer", key, raw)
	}
	return n, nil
}

// getRune reads a single-character setting. "none" (or an empty value)
// yields 0, which disables an optional separator.
func getRune(key string, fallback rune) (rune, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	if raw == "" || strings.EqualFold(raw, "none") {
		return 0, nil
	}
	if utf8.RuneCountInString(raw) != 1 {
		return fallback, fmt.Errorf("config: %s: %q must be a single character", key, raw)
	}
	r, _ := utf8.DecodeRuneInString(raw)
	return r, nil
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
