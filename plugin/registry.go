package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/condoledger/account"
	"github.com/xraph/condoledger/id"
	"github.com/xraph/condoledger/payment"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook implementations are discovered once, at registration.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit               []OnInit
	onShutdown           []OnShutdown
	onAccountOpened      []OnAccountOpened
	onPostingRecorded    []OnPostingRecorded
	onPostingsPurged     []OnPostingsPurged
	onAccountClosed      []OnAccountClosed
	onPaymentCreated     []OnPaymentCreated
	onPaymentUpdated     []OnPaymentUpdated
	onPaymentDeactivated []OnPaymentDeactivated
	onPaymentPurged      []OnPaymentPurged
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	var hooks []string
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
		hooks = append(hooks, "OnInit")
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
		hooks = append(hooks, "OnShutdown")
	}
	if v, ok := p.(OnAccountOpened); ok {
		r.onAccountOpened = append(r.onAccountOpened, v)
		hooks = append(hooks, "OnAccountOpened")
	}
	if v, ok := p.(OnPostingRecorded); ok {
		r.onPostingRecorded = append(r.onPostingRecorded, v)
		hooks = append(hooks, "OnPostingRecorded")
	}
	if v, ok := p.(OnPostingsPurged); ok {
		r.onPostingsPurged = append(r.onPostingsPurged, v)
		hooks = append(hooks, "OnPostingsPurged")
	}
	if v, ok := p.(OnAccountClosed); ok {
		r.onAccountClosed = append(r.onAccountClosed, v)
		hooks = append(hooks, "OnAccountClosed")
	}
	if v, ok := p.(OnPaymentCreated); ok {
		r.onPaymentCreated = append(r.onPaymentCreated, v)
		hooks = append(hooks, "OnPaymentCreated")
	}
	if v, ok := p.(OnPaymentUpdated); ok {
		r.onPaymentUpdated = append(r.onPaymentUpdated, v)
		hooks = append(hooks, "OnPaymentUpdated")
	}
	if v, ok := p.(OnPaymentDeactivated); ok {
		r.onPaymentDeactivated = append(r.onPaymentDeactivated, v)
		hooks = append(hooks, "OnPaymentDeactivated")
	}
	if v, ok := p.(OnPaymentPurged); ok {
		r.onPaymentPurged = append(r.onPaymentPurged, v)
		hooks = append(hooks, "OnPaymentPurged")
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", hooks,
	)

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, l any) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	emit(ctx, r, "OnInit", plugins, func(p OnInit) error { return p.OnInit(ctx, l) })
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	emit(ctx, r, "OnShutdown", plugins, func(p OnShutdown) error { return p.OnShutdown(ctx) })
}

// EmitAccountOpened emits an account opened event.
func (r *Registry) EmitAccountOpened(ctx context.Context, a *account.Account, opening *account.Posting) {
	r.mu.RLock()
	plugins := r.onAccountOpened
	r.mu.RUnlock()

	emit(ctx, r, "OnAccountOpened", plugins, func(p OnAccountOpened) error {
		return p.OnAccountOpened(ctx, a, opening)
	})
}

// EmitPostingRecorded emits a posting recorded event.
func (r *Registry) EmitPostingRecorded(ctx context.Context, a *account.Account, posting *account.Posting) {
	r.mu.RLock()
	plugins := r.onPostingRecorded
	r.mu.RUnlock()

	emit(ctx, r, "OnPostingRecorded", plugins, func(p OnPostingRecorded) error {
		return p.OnPostingRecorded(ctx, a, posting)
	})
}

// EmitPostingsPurged emits a postings purged event.
func (r *Registry) EmitPostingsPurged(ctx context.Context, accountID id.AccountID, removed int64) {
	r.mu.RLock()
	plugins := r.onPostingsPurged
	r.mu.RUnlock()

	emit(ctx, r, "OnPostingsPurged", plugins, func(p OnPostingsPurged) error {
		return p.OnPostingsPurged(ctx, accountID, removed)
	})
}

// EmitAccountClosed emits an account closed event.
func (r *Registry) EmitAccountClosed(ctx context.Context, accountID id.AccountID) {
	r.mu.RLock()
	plugins := r.onAccountClosed
	r.mu.RUnlock()

	emit(ctx, r, "OnAccountClosed", plugins, func(p OnAccountClosed) error {
		return p.OnAccountClosed(ctx, accountID)
	})
}

// EmitPaymentCreated emits a payment created event.
func (r *Registry) EmitPaymentCreated(ctx context.Context, pay *payment.Payment) {
	r.mu.RLock()
	plugins := r.onPaymentCreated
	r.mu.RUnlock()

	emit(ctx, r, "OnPaymentCreated", plugins, func(p OnPaymentCreated) error {
		return p.OnPaymentCreated(ctx, pay)
	})
}

// EmitPaymentUpdated emits a payment updated event.
func (r *Registry) EmitPaymentUpdated(ctx context.Context, before, after *payment.Payment, changes []payment.Change) {
	r.mu.RLock()
	plugins := r.onPaymentUpdated
	r.mu.RUnlock()

	emit(ctx, r, "OnPaymentUpdated", plugins, func(p OnPaymentUpdated) error {
		return p.OnPaymentUpdated(ctx, before, after, changes)
	})
}

// EmitPaymentDeactivated emits a payment deactivated event.
func (r *Registry) EmitPaymentDeactivated(ctx context.Context, pay *payment.Payment) {
	r.mu.RLock()
	plugins := r.onPaymentDeactivated
	r.mu.RUnlock()

	emit(ctx, r, "OnPaymentDeactivated", plugins, func(p OnPaymentDeactivated) error {
		return p.OnPaymentDeactivated(ctx, pay)
	})
}

// EmitPaymentPurged emits a payment purged event.
func (r *Registry) EmitPaymentPurged(ctx context.Context, paymentID id.PaymentID) {
	r.mu.RLock()
	plugins := r.onPaymentPurged
	r.mu.RUnlock()

	emit(ctx, r, "OnPaymentPurged", plugins, func(p OnPaymentPurged) error {
		return p.OnPaymentPurged(ctx, paymentID)
	})
}

func emit[T Plugin](ctx context.Context, r *Registry, hook string, plugins []T, call func(T) error) {
	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return call(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the ledger.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
