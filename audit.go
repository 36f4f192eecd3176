package ledger

import (
	"context"

	"github.com/xraph/condoledger/audit"
	"github.com/xraph/condoledger/id"
)

// AuditTrail returns a payment's history, newest first. History survives a
// purge, so ErrPaymentNotFound is only returned when neither the payment
// nor any entry for it exists.
func (l *Ledger) AuditTrail(ctx context.Context, paymentID id.PaymentID) ([]*audit.Entry, error) {
	entries, err := l.store.ListAudit(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		return entries, nil
	}
	if _, err := l.store.GetPayment(ctx, paymentID); err != nil {
		return nil, err
	}
	return []*audit.Entry{}, nil
}
