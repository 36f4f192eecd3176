package extension

import (
	"fmt"
	"unicode/utf8"

	"github.com/xraph/condoledger/payment"
	"github.com/xraph/condoledger/types"
)

// Config holds the condominium ledger extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.condoledger" or "condoledger" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// EnableMetrics registers Prometheus collectors for ledger activity on
	// the default registerer.
	EnableMetrics bool `json:"enable_metrics" mapstructure:"enable_metrics" yaml:"enable_metrics"`

	// CurrencyCode is appended to formatted amounts (default: "AOA").
	CurrencyCode string `json:"currency_code" mapstructure:"currency_code" yaml:"currency_code"`

	// DecimalSeparator and ThousandsSeparator are single characters
	// (default: "," and ".").
	DecimalSeparator   string `json:"decimal_separator" mapstructure:"decimal_separator" yaml:"decimal_separator"`
	ThousandsSeparator string `json:"thousands_separator" mapstructure:"thousands_separator" yaml:"thousands_separator"`

	// FractionDigits is the number of digits rendered after the decimal
	// separator (default: 2). Nil means unset, so zero-digit currencies can
	// be configured.
	FractionDigits *int32 `json:"fraction_digits" mapstructure:"fraction_digits" yaml:"fraction_digits"`

	// MildOverdueDays and ModerateOverdueDays bound the overdue buckets
	// (default: 15 and 30). Nil means unset.
	MildOverdueDays     *int `json:"mild_overdue_days" mapstructure:"mild_overdue_days" yaml:"mild_overdue_days"`
	ModerateOverdueDays *int `json:"moderate_overdue_days" mapstructure:"moderate_overdue_days" yaml:"moderate_overdue_days"`

	// DefaultPageSize applies to payment listings that do not ask for one
	// (default: 20).
	DefaultPageSize int `json:"default_page_size" mapstructure:"default_page_size" yaml:"default_page_size"`

	// GroveDatabase is the name of a grove.DB registered in the DI container.
	// When set, the extension resolves this named database and constructs
	// the store matching its driver (pg, sqlite or mongo).
	// When empty and WithGroveDatabase was called, the default (unnamed) DB is used.
	GroveDatabase string `json:"grove_database" mapstructure:"grove_database" yaml:"grove_database"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	loc := types.DefaultLocale()
	th := payment.DefaultThresholds()
	return Config{
		CurrencyCode:        loc.CurrencyCode,
		DecimalSeparator:    string(loc.DecimalSeparator),
		ThousandsSeparator:  string(loc.ThousandsSeparator),
		FractionDigits:      ref(loc.FractionDigits),
		MildOverdueDays:     ref(th.Mild),
		ModerateOverdueDays: ref(th.Moderate),
		DefaultPageSize:     20,
	}
}

// Locale converts the separator settings into a types.Locale.
func (c Config) Locale() (types.Locale, error) {
	dec, err := separator("decimal_separator", c.DecimalSeparator)
	if err != nil {
		return types.Locale{}, err
	}
	thousands, err := separator("thousands_separator", c.ThousandsSeparator)
	if err != nil {
		return types.Locale{}, err
	}
	loc := types.Locale{
		DecimalSeparator:   dec,
		ThousandsSeparator: thousands,
		CurrencyCode:       c.CurrencyCode,
		FractionDigits:     types.DefaultLocale().FractionDigits,
	}
	if c.FractionDigits != nil {
		loc.FractionDigits = *c.FractionDigits
	}
	return loc, loc.Validate()
}

// Thresholds returns the overdue bucket bounds.
func (c Config) Thresholds() payment.Thresholds {
	th := payment.DefaultThresholds()
	if c.MildOverdueDays != nil {
		th.Mild = *c.MildOverdueDays
	}
	if c.ModerateOverdueDays != nil {
		th.Moderate = *c.ModerateOverdueDays
	}
	return th
}

func ref[T any](v T) *T { return &v }

func separator(key, s string) (rune, error) {
	if s == "" {
		return 0, nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) {
		return 0, fmt.Errorf("condoledger: %s must be a single character, got %q", key, s)
	}
	return r, nil
}
