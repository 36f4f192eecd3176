// Package store defines the aggregate persistence interface.
// Each backend implements this interface.
package store

import (
	"context"

	"github.com/xraph/condoledger/account"
	"github.com/xraph/condoledger/audit"
	"github.com/xraph/condoledger/owner"
	"github.com/xraph/condoledger/payment"
)

// Store is the unified storage interface for all condominium ledger entities.
type Store interface {
	owner.Store
	account.Store
	payment.Store
	audit.Store

	// RunInTx runs fn in a transaction. Store methods called with the
	// context passed to fn take part in it. The transaction commits when fn
	// returns nil and rolls back otherwise, including on panic. A nested
	// call joins the outer transaction.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error

	// Migrate creates or updates the schema.
	Migrate(ctx context.Context) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}
