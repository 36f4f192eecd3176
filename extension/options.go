package extension

import (
	ledger "github.com/xraph/condoledger"
	"github.com/xraph/condoledger/plugin"
	"github.com/xraph/condoledger/store"
)

// Option configures the condominium ledger Forge extension.
type Option func(*Extension)

// WithStore sets the store for the ledger engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithLedgerOption passes a ledger.Option through to the underlying engine.
// Pass-through options are applied after the config-derived ones.
func WithLedgerOption(opt ledger.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers a ledger plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, ledger.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithMetrics registers Prometheus collectors for ledger activity.
func WithMetrics() Option {
	return func(e *Extension) { e.config.EnableMetrics = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithCurrencyCode sets the currency code appended to formatted amounts.
func WithCurrencyCode(code string) Option {
	return func(e *Extension) { e.config.CurrencyCode = code }
}

// WithFractionDigits sets the number of digits after the decimal separator.
// Zero is a valid setting for currencies without minor units.
func WithFractionDigits(n int32) Option {
	return func(e *Extension) { e.config.FractionDigits = ref(n) }
}

// WithOverdueDays sets the mild and moderate overdue bounds in days.
func WithOverdueDays(mild, moderate int) Option {
	return func(e *Extension) {
		e.config.MildOverdueDays = ref(mild)
		e.config.ModerateOverdueDays = ref(moderate)
	}
}

// WithDefaultPageSize sets the page size used when a listing does not ask for one.
func WithDefaultPageSize(n int) Option {
	return func(e *Extension) { e.config.DefaultPageSize = n }
}

// WithGroveDatabase sets the name of the grove.DB to resolve from the DI container.
// The extension constructs the matching store backend (postgres/sqlite/mongo)
// from the grove driver. Pass an empty string to use the default (unnamed) grove.DB.
func WithGroveDatabase(name string) Option {
	return func(e *Extension) {
		e.config.GroveDatabase = name
		e.useGrove = true
	}
}
