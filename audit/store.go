package audit

import (
	"context"

	"github.com/xraph/condoledger/id"
)

type Store interface {
	// AppendAudit must be called inside the transaction of the change it
	// records.
	AppendAudit(ctx context.Context, e *Entry) error
	// ListAudit returns entries newest first, ties broken by ID descending.
	ListAudit(ctx context.Context, paymentID id.PaymentID) ([]*Entry, error)
}
