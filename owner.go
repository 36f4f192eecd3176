package ledger

import (
	"context"
	"strings"

	"github.com/xraph/condoledger/id"
	"github.com/xraph/condoledger/owner"
	"github.com/xraph/condoledger/types"
)

// ──────────────────────────────────────────────────
// Owners
// ──────────────────────────────────────────────────

// CreateOwner registers a unit owner.
func (l *Ledger) CreateOwner(ctx context.Context, o *owner.Owner) error {
	if strings.TrimSpace(o.Name) == "" {
		return ValidationError{Field: "name", Message: "owner name is required"}
	}
	if o.ID.IsNil() {
		o.ID = id.NewOwnerID()
	}
	o.Entity = types.NewEntityAt(l.now())

	if err := l.store.CreateOwner(ctx, o); err != nil {
		return err
	}

	l.logger.Debug("owner created", "owner_id", o.ID.String())
	return nil
}

// GetOwner retrieves an owner by ID.
func (l *Ledger) GetOwner(ctx context.Context, ownerID id.OwnerID) (*owner.Owner, error) {
	return l.store.GetOwner(ctx, ownerID)
}

// ListOwners lists owners by name.
func (l *Ledger) ListOwners(ctx context.Context, opts owner.ListOpts) ([]*owner.Owner, error) {
	return l.store.ListOwners(ctx, opts)
}

// UpdateOwner replaces an owner's contact details. The creation time is kept.
func (l *Ledger) UpdateOwner(ctx context.Context, o *owner.Owner) error {
	if strings.TrimSpace(o.Name) == "" {
		return ValidationError{Field: "name", Message: "owner name is required"}
	}

	existing, err := l.store.GetOwner(ctx, o.ID)
	if err != nil {
		return err
	}
	o.Entity = existing.Entity
	o.Touch(l.now())

	if err := l.store.UpdateOwner(ctx, o); err != nil {
		return err
	}

	l.logger.Debug("owner updated", "owner_id", o.ID.String())
	return nil
}
