// Package extension provides the Forge extension adapter for the
// condominium ledger.
//
// It implements the forge.Extension interface to integrate the ledger
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.condoledger" or
// "condoledger" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	ledger "github.com/xraph/condoledger"
	"github.com/xraph/condoledger/observability"
	"github.com/xraph/condoledger/store"
	"github.com/xraph/condoledger/store/memory"
	"github.com/xraph/condoledger/store/mongo"
	"github.com/xraph/condoledger/store/postgres"
	"github.com/xraph/condoledger/store/sqlite"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "condoledger"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Condominium current accounts and payment tracking"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the condominium ledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *ledger.Ledger
	store      store.Store
	ledgerOpts []ledger.Option
	useGrove   bool
}

// New creates a new Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Ledger instance.
// This is nil until Register is called.
func (e *Extension) Engine() *ledger.Ledger { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the ledger engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil && (e.useGrove || e.config.GroveDatabase != "") {
		s, err := e.resolveGroveStore(fapp)
		if err != nil {
			return err
		}
		e.store = s
	}
	if e.store == nil {
		e.store = memory.New()
	}

	opts, err := e.buildLedgerOpts()
	if err != nil {
		return err
	}
	e.engine = ledger.New(e.store, opts...)

	return vessel.Provide(fapp.Container(), func() (*ledger.Ledger, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("condoledger: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("condoledger: store not initialized")
	}
	return e.store.Ping(ctx)
}

// resolveGroveStore resolves a *grove.DB from the DI container and builds
// the store backend for its driver.
func (e *Extension) resolveGroveStore(fapp forge.App) (store.Store, error) {
	var (
		db  *grove.DB
		err error
	)
	if name := e.config.GroveDatabase; name != "" {
		db, err = vessel.InjectNamed[*grove.DB](fapp.Container(), name)
	} else {
		db, err = vessel.Inject[*grove.DB](fapp.Container())
	}
	if err != nil {
		return nil, fmt.Errorf("condoledger: resolve grove database %q: %w", e.config.GroveDatabase, err)
	}

	s, err := storeForDB(db)
	if err != nil {
		return nil, err
	}
	e.Logger().Debug("condoledger: using grove database",
		forge.F("name", e.config.GroveDatabase),
		forge.F("driver", db.Driver().Name()),
	)
	return s, nil
}

// storeForDB picks the store backend matching the grove driver.
func storeForDB(db *grove.DB) (store.Store, error) {
	switch name := db.Driver().Name(); name {
	case "pg":
		return postgres.New(db), nil
	case "sqlite":
		return sqlite.New(db), nil
	case "mongo":
		return mongo.New(db), nil
	default:
		return nil, fmt.Errorf("condoledger: unsupported grove driver %q", name)
	}
}

// buildLedgerOpts constructs ledger.Option values from the resolved config.
func (e *Extension) buildLedgerOpts() ([]ledger.Option, error) {
	loc, err := e.config.Locale()
	if err != nil {
		return nil, err
	}

	opts := make([]ledger.Option, 0, len(e.ledgerOpts)+4)
	opts = append(opts,
		ledger.WithLocale(loc),
		ledger.WithThresholds(e.config.Thresholds()),
		ledger.WithDefaultPageSize(e.config.DefaultPageSize),
	)

	if e.config.EnableMetrics {
		factory := observability.NewPrometheusFactory(nil)
		opts = append(opts, ledger.WithPlugin(observability.NewMetricsExtension(factory)))
	}

	// Pass-through options win over config-derived ones.
	opts = append(opts, e.ledgerOpts...)

	return opts, nil
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("condoledger: configuration is required but not found in config files; " +
				"ensure 'extensions.condoledger' or 'condoledger' key exists in your config")
		}
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("condoledger: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("enable_metrics", e.config.EnableMetrics),
		forge.F("currency_code", e.config.CurrencyCode),
		forge.F("mild_overdue_days", e.config.Thresholds().Mild),
		forge.F("moderate_overdue_days", e.config.Thresholds().Moderate),
		forge.F("grove_database", e.config.GroveDatabase),
		forge.F("default_page_size", e.config.DefaultPageSize),
	)

	return nil
}

// configKeys are tried in order when loading config from files.
var configKeys = []string{"extensions.condoledger", "condoledger"}

// configSource is the subset of the Forge config manager used for loading.
type configSource interface {
	IsSet(key string) bool
	Bind(key string, target any) error
}

// bindError records a config key that was present but failed to bind.
type bindError struct {
	key string
	err error
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cfg, key, failures := loadFileConfig(e.App().Config())
	for _, f := range failures {
		e.Logger().Warn("condoledger: failed to bind config",
			forge.F("key", f.key),
			forge.F("error", f.err),
		)
	}
	if key == "" {
		return Config{}, false
	}
	e.Logger().Debug("condoledger: loaded config from file",
		forge.F("key", key),
	)
	return cfg, true
}

// loadFileConfig binds the first config key that is set and binds cleanly.
// It returns the key used ("" when none) and every bind failure on the way.
func loadFileConfig(src configSource) (Config, string, []bindError) {
	var failures []bindError
	for _, key := range configKeys {
		if !src.IsSet(key) {
			continue
		}
		var cfg Config
		if err := src.Bind(key, &cfg); err != nil {
			failures = append(failures, bindError{key: key, err: err})
			continue
		}
		return cfg, key, failures
	}
	return Config{}, "", failures
}

// mergeWithDefaults fills unset fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.CurrencyCode == "" {
		cfg.CurrencyCode = defaults.CurrencyCode
	}
	if cfg.DecimalSeparator == "" {
		cfg.DecimalSeparator = defaults.DecimalSeparator
	}
	if cfg.ThousandsSeparator == "" {
		cfg.ThousandsSeparator = defaults.ThousandsSeparator
	}
	if cfg.FractionDigits == nil {
		cfg.FractionDigits = defaults.FractionDigits
	}
	if cfg.MildOverdueDays == nil {
		cfg.MildOverdueDays = defaults.MildOverdueDays
	}
	if cfg.ModerateOverdueDays == nil {
		cfg.ModerateOverdueDays = defaults.ModerateOverdueDays
	}
	if cfg.DefaultPageSize == 0 {
		cfg.DefaultPageSize = defaults.DefaultPageSize
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.EnableMetrics {
		yamlConfig.EnableMetrics = true
	}

	if yamlConfig.CurrencyCode == "" {
		yamlConfig.CurrencyCode = programmaticConfig.CurrencyCode
	}
	if yamlConfig.DecimalSeparator == "" {
		yamlConfig.DecimalSeparator = programmaticConfig.DecimalSeparator
	}
	if yamlConfig.ThousandsSeparator == "" {
		yamlConfig.ThousandsSeparator = programmaticConfig.ThousandsSeparator
	}

	if yamlConfig.GroveDatabase == "" {
		yamlConfig.GroveDatabase = programmaticConfig.GroveDatabase
	}

	if yamlConfig.FractionDigits == nil {
		yamlConfig.FractionDigits = programmaticConfig.FractionDigits
	}
	if yamlConfig.MildOverdueDays == nil {
		yamlConfig.MildOverdueDays = programmaticConfig.MildOverdueDays
	}
	if yamlConfig.ModerateOverdueDays == nil {
		yamlConfig.ModerateOverdueDays = programmaticConfig.ModerateOverdueDays
	}
	if yamlConfig.DefaultPageSize == 0 {
		yamlConfig.DefaultPageSize = programmaticConfig.DefaultPageSize
	}

	return e.mergeWithDefaults(yamlConfig)
}
