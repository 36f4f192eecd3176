package payment

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xraph/condoledger/id"
)

// Store persists payment records. Listings are ordered by issue date, newest
// first, with ties broken by ID descending so pages never overlap.
type Store interface {
	CreatePayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, paymentID id.PaymentID) (*Payment, error)
	// GetPaymentForUpdate reads the payment and holds it against concurrent
	// writers until the surrounding transaction ends.
	GetPaymentForUpdate(ctx context.Context, paymentID id.PaymentID) (*Payment, error)
	UpdatePayment(ctx context.Context, p *Payment) error
	DeletePayment(ctx context.Context, paymentID id.PaymentID) error
	ListPayments(ctx context.Context, f Filter, opts ListOpts) ([]*Payment, error)
	CountPayments(ctx context.Context, f Filter) (int64, error)
	SumPayments(ctx context.Context, f Filter) (decimal.Decimal, error)
}

type ListOpts struct {
	Limit  int
	Offset int
}

// Matches reports whether p satisfies f. Stores without a query language
// use it to filter in process.
func (f Filter) Matches(p *Payment) bool {
	if f.Active != nil && p.Active != *f.Active {
		return false
	}
	if f.State != "" && p.State != f.State {
		return false
	}
	if !f.OwnerID.IsNil() && p.OwnerID != f.OwnerID {
		return false
	}
	if !f.UnitID.IsNil() && p.UnitID != f.UnitID {
		return false
	}
	return true
}
