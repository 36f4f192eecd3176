package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/condoledger/payment"
	"github.com/xraph/condoledger/plugin"
	"github.com/xraph/condoledger/store"
	"github.com/xraph/condoledger/types"
)

const (
	// DefaultPageSize is the payment listing page size when none is given.
	DefaultPageSize = 20
	// MaxPageSize caps any requested page size.
	MaxPageSize = 200
)

// Clock supplies the current time. Every operation reads it once.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now returns f().
func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Ledger is the condominium ledger engine. It owns account balances, the
// payment lifecycle and its audit trail on top of a single store.
type Ledger struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	clock   Clock

	locale          types.Locale
	thresholds      payment.Thresholds
	extraStates     []payment.State
	defaultPageSize int
}

// New creates a new Ledger instance.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:           s,
		plugins:         plugin.NewRegistry(),
		logger:          slog.Default(),
		clock:           systemClock{},
		locale:          types.DefaultLocale(),
		thresholds:      payment.DefaultThresholds(),
		defaultPageSize: DefaultPageSize,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		if err := l.plugins.Register(p); err != nil {
			l.logger.Warn("plugin registration failed", "plugin", p.Name(), "error", err)
		}
	}
}

// WithPluginTimeout bounds each plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		l.plugins.WithTimeout(d)
	}
}

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(l *Ledger) {
		l.clock = c
	}
}

// WithLocale sets how amounts are parsed and displayed.
func WithLocale(loc types.Locale) Option {
	return func(l *Ledger) {
		l.locale = loc
	}
}

// WithThresholds sets the overdue classification thresholds.
func WithThresholds(th payment.Thresholds) Option {
	return func(l *Ledger) {
		l.thresholds = th
	}
}

// WithStates allows payment states beyond the built-in ones.
func WithStates(states ...payment.State) Option {
	return func(l *Ledger) {
		l.extraStates = append(l.extraStates, states...)
	}
}

// WithDefaultPageSize sets the listing page size used when a request
// leaves it unset. Values above MaxPageSize are capped.
func WithDefaultPageSize(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.defaultPageSize = min(n, MaxPageSize)
		}
	}
}

// Start migrates the store and initializes plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.locale.Validate(); err != nil {
		return ValidationError{Field: "locale", Message: err.Error()}
	}
	if l.thresholds.Mild < 0 || l.thresholds.Moderate < l.thresholds.Mild {
		return ValidationError{Field: "thresholds", Message: fmt.Sprintf("invalid overdue thresholds %d/%d", l.thresholds.Mild, l.thresholds.Moderate)}
	}

	if err := l.store.Migrate(ctx); err != nil {
		return err
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("ledger started",
		"currency", l.locale.CurrencyCode,
		"mild_overdue_days", l.thresholds.Mild,
		"moderate_overdue_days", l.thresholds.Moderate,
		"plugins", l.plugins.Count(),
	)

	return nil
}

// Stop shuts down the Ledger and closes the store.
func (l *Ledger) Stop() error {
	l.plugins.EmitShutdown(context.Background())
	return l.store.Close()
}

// Store returns the underlying store.
func (l *Ledger) Store() store.Store { return l.store }

// Locale returns the configured money locale.
func (l *Ledger) Locale() types.Locale { return l.locale }

// Thresholds returns the configured overdue thresholds.
func (l *Ledger) Thresholds() payment.Thresholds { return l.thresholds }

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry { return l.plugins }

// Normalize parses an amount with the configured locale, failing soft to zero.
func (l *Ledger) Normalize(v any) decimal.Decimal { return l.locale.Normalize(v) }

// Format renders an amount with the configured locale.
func (l *Ledger) Format(d decimal.Decimal) string { return l.locale.Format(d) }

func (l *Ledger) now() time.Time {
	return l.clock.Now().UTC()
}

// positiveAmount normalizes v and requires a magnitude above zero.
func (l *Ledger) positiveAmount(field string, v any) (decimal.Decimal, error) {
	d, err := l.locale.NormalizeStrict(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %w", ErrInvalidAmount, field, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidAmount, field, d)
	}
	if err := l.checkPrecision(field, d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// checkPrecision rejects amounts the locale cannot render without rounding.
func (l *Ledger) checkPrecision(field string, d decimal.Decimal) error {
	if !d.Truncate(l.locale.FractionDigits).Equal(d) {
		return fmt.Errorf("%w: %s %s has more than %d fraction digits",
			ErrInvalidAmount, field, d, l.locale.FractionDigits)
	}
	return nil
}
