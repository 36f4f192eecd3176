// Package plugin provides an extensible plugin system for the condominium
// ledger. Plugins hook into lifecycle events after the change commits.
package plugin

import (
	"context"

	"github.com/xraph/condoledger/account"
	"github.com/xraph/condoledger/id"
	"github.com/xraph/condoledger/payment"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l any) error
}

// OnShutdown is called when the ledger stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnAccountOpened is called after an account and its opening posting commit.
type OnAccountOpened interface {
	Plugin
	OnAccountOpened(ctx context.Context, a *account.Account, opening *account.Posting) error
}

// OnPostingRecorded is called after a posting and the balance it moved commit.
type OnPostingRecorded interface {
	Plugin
	OnPostingRecorded(ctx context.Context, a *account.Account, p *account.Posting) error
}

// OnPostingsPurged is called after every posting of an account was removed.
type OnPostingsPurged interface {
	Plugin
	OnPostingsPurged(ctx context.Context, accountID id.AccountID, removed int64) error
}

// OnAccountClosed is called after an account is deleted.
type OnAccountClosed interface {
	Plugin
	OnAccountClosed(ctx context.Context, accountID id.AccountID) error
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentCreated is called after a payment and its CREATE entry commit.
type OnPaymentCreated interface {
	Plugin
	OnPaymentCreated(ctx context.Context, p *payment.Payment) error
}

// OnPaymentUpdated is called after an update commits. changes is empty
// when only unaudited fields moved.
type OnPaymentUpdated interface {
	Plugin
	OnPaymentUpdated(ctx context.Context, before, after *payment.Payment, changes []payment.Change) error
}

// OnPaymentDeactivated is called after a soft delete commits.
type OnPaymentDeactivated interface {
	Plugin
	OnPaymentDeactivated(ctx context.Context, p *payment.Payment) error
}

// OnPaymentPurged is called after a payment is physically removed.
type OnPaymentPurged interface {
	Plugin
	OnPaymentPurged(ctx context.Context, paymentID id.PaymentID) error
}
