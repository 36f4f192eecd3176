package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/condoledger/audit"
	"github.com/xraph/condoledger/id"
	"github.com/xraph/condoledger/payment"
	"github.com/xraph/condoledger/types"
)

// CreatePaymentInput holds the fields of a new payment. Amount is
// normalized with the configured locale.
type CreatePaymentInput struct {
	Amount      any
	Description string
	// State defaults to PENDING.
	State string
	// IssuedAt defaults to the time of the call.
	IssuedAt *time.Time
	DueAt    *time.Time

	UnitID       id.UnitID
	OwnerID      id.OwnerID
	TenantID     id.TenantID
	ActingUserID id.UserID
}

// ──────────────────────────────────────────────────
// Payment Lifecycle
// ──────────────────────────────────────────────────

// CreatePayment creates an active payment and its CREATE audit entry in one
// transaction.
func (l *Ledger) CreatePayment(ctx context.Context, in CreatePaymentInput) (*payment.Payment, error) {
	amount, err := l.positiveAmount("amount", in.Amount)
	if err != nil {
		return nil, err
	}
	state := payment.StatePending
	if in.State != "" {
		if state, err = l.parseState(in.State); err != nil {
			return nil, err
		}
	}

	now := l.now()
	issued := now
	if in.IssuedAt != nil {
		issued = in.IssuedAt.UTC()
	}

	p := &payment.Payment{
		Entity:      types.NewEntityAt(now),
		ID:          id.NewPaymentID(),
		Amount:      amount,
		Description: in.Description,
		State:       state,
		IssuedAt:    issued,
		DueAt:       utcPtr(in.DueAt),
		Active:      true,
		UnitID:      in.UnitID,
		OwnerID:     in.OwnerID,
		TenantID:    in.TenantID,
		UserID:      in.ActingUserID,
	}

	entry := &audit.Entry{
		ID:           id.NewAuditEntryID(),
		PaymentID:    p.ID,
		Action:       audit.ActionCreate,
		Detail:       fmt.Sprintf("Amount: %s, State: %s", l.locale.FormatPlain(amount), state),
		ActingUserID: in.ActingUserID,
		RecordedAt:   now,
	}

	err = l.store.RunInTx(ctx, func(ctx context.Context) error {
		if err := l.store.CreatePayment(ctx, p); err != nil {
			return err
		}
		return l.store.AppendAudit(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	l.decoratePayment(p, now)

	l.logger.Debug("payment created",
		"payment_id", p.ID.String(),
		"amount", amount.String(),
		"state", string(state),
	)
	l.plugins.EmitPaymentCreated(ctx, p)

	return p, nil
}

// UpdatePayment applies a partial update. Inactive payments can be
// updated too. When amount, state, description or due date change, one
// EDIT entry listing every changed field is written in the same
// transaction; an update that changes nothing writes nothing.
func (l *Ledger) UpdatePayment(ctx context.Context, paymentID id.PaymentID, patch payment.Patch) (*payment.Payment, error) {
	var (
		amount decimal.Decimal
		state  payment.State
		err    error
	)
	if patch.Amount != nil {
		if amount, err = l.positiveAmount("amount", patch.Amount); err != nil {
			return nil, err
		}
	}
	if patch.State != "" {
		if state, err = l.parseState(patch.State); err != nil {
			return nil, err
		}
	}

	now := l.now()
	var (
		before, after *payment.Payment
		changes       []payment.Change
		written       bool
	)
	err = l.store.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		before, err = l.store.GetPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}

		after = before.Clone()
		if patch.Amount != nil {
			after.Amount = amount
		}
		if state != "" {
			after.State = state
		}
		if patch.Description != nil {
			after.Description = *patch.Description
		}
		switch {
		case patch.ClearDueAt:
			after.DueAt = nil
		case patch.DueAt != nil:
			after.DueAt = utcPtr(patch.DueAt)
		}
		if patch.UnitID != nil {
			after.UnitID = *patch.UnitID
		}
		if patch.OwnerID != nil {
			after.OwnerID = *patch.OwnerID
		}
		if patch.TenantID != nil {
			after.TenantID = *patch.TenantID
		}

		changes = payment.Diff(before, after, l.locale)
		if len(changes) == 0 && !associationsChanged(before, after) {
			return nil
		}

		after.Touch(now)
		if err := l.store.UpdatePayment(ctx, after); err != nil {
			return err
		}
		written = true

		if len(changes) == 0 {
			return nil
		}
		return l.store.AppendAudit(ctx, &audit.Entry{
			ID:           id.NewAuditEntryID(),
			PaymentID:    paymentID,
			Action:       audit.ActionEdit,
			Detail:       payment.Describe(changes),
			ActingUserID: patch.ActingUserID,
			RecordedAt:   now,
		})
	})
	if err != nil {
		return nil, err
	}

	l.decoratePayment(after, now)
	if !written {
		return after, nil
	}

	l.decoratePayment(before, now)
	l.logger.Debug("payment updated",
		"payment_id", paymentID.String(),
		"changes", len(changes),
	)
	l.plugins.EmitPaymentUpdated(ctx, before, after, changes)

	return after, nil
}

// DeactivatePayment soft-deletes a payment and records a DEACTIVATE entry.
// Every call is audited, including one on an already inactive payment.
func (l *Ledger) DeactivatePayment(ctx context.Context, paymentID id.PaymentID, actingUserID id.UserID) (*payment.Payment, error) {
	now := l.now()
	var (
		p         *payment.Payment
		wasActive bool
	)
	err := l.store.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = l.store.GetPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}

		wasActive = p.Active
		p.Active = false
		p.Touch(now)
		if err := l.store.UpdatePayment(ctx, p); err != nil {
			return err
		}
		return l.store.AppendAudit(ctx, &audit.Entry{
			ID:           id.NewAuditEntryID(),
			PaymentID:    paymentID,
			Action:       audit.ActionDeactivate,
			Detail:       fmt.Sprintf("Active: %t → false", wasActive),
			ActingUserID: actingUserID,
			RecordedAt:   now,
		})
	})
	if err != nil {
		return nil, err
	}

	l.decoratePayment(p, now)
	l.logger.Debug("payment deactivated",
		"payment_id", paymentID.String(),
		"was_active", wasActive,
	)
	l.plugins.EmitPaymentDeactivated(ctx, p)
	return p, nil
}

// PurgePayment physically removes a payment. This is the privileged path
// outside the audited lifecycle; the payment's audit entries are kept.
func (l *Ledger) PurgePayment(ctx context.Context, paymentID id.PaymentID) error {
	err := l.store.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := l.store.GetPaymentForUpdate(ctx, paymentID); err != nil {
			return err
		}
		return l.store.DeletePayment(ctx, paymentID)
	})
	if err != nil {
		return err
	}

	l.logger.Debug("payment purged", "payment_id", paymentID.String())
	l.plugins.EmitPaymentPurged(ctx, paymentID)
	return nil
}

// GetPayment retrieves a payment, active or not, with its derived fields.
func (l *Ledger) GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	p, err := l.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	l.decoratePayment(p, l.now())
	return p, nil
}

// ListPayments returns one page of payments, newest issue date first.
func (l *Ledger) ListPayments(ctx context.Context, f payment.Filter, page payment.Page) (*payment.Result, error) {
	if f.State != "" {
		st, err := l.parseState(string(f.State))
		if err != nil {
			return nil, err
		}
		f.State = st
	}
	page = l.normalizePage(page)

	total, err := l.store.CountPayments(ctx, f)
	if err != nil {
		return nil, err
	}
	items, err := l.store.ListPayments(ctx, f, payment.ListOpts{
		Limit:  page.Size,
		Offset: (page.Number - 1) * page.Size,
	})
	if err != nil {
		return nil, err
	}

	now := l.now()
	for _, p := range items {
		l.decoratePayment(p, now)
	}

	return &payment.Result{
		Items:      items,
		TotalCount: total,
		TotalPages: int((total + int64(page.Size) - 1) / int64(page.Size)),
		Page:       page.Number,
		PageSize:   page.Size,
	}, nil
}

// ListDeactivated lists soft-deleted payments.
func (l *Ledger) ListDeactivated(ctx context.Context, page payment.Page) (*payment.Result, error) {
	return l.ListPayments(ctx, payment.Filter{Active: payment.Bool(false)}, page)
}

// TotalPaid sums the active PAID payments of an owner.
func (l *Ledger) TotalPaid(ctx context.Context, ownerID id.OwnerID) (decimal.Decimal, error) {
	if _, err := l.store.GetOwner(ctx, ownerID); err != nil {
		return decimal.Zero, err
	}
	return l.store.SumPayments(ctx, payment.Filter{
		Active:  payment.Bool(true),
		State:   payment.StatePaid,
		OwnerID: ownerID,
	})
}

// Overdue returns the active payments matching f that are past due,
// most overdue first. All payments are classified against one instant.
func (l *Ledger) Overdue(ctx context.Context, f payment.Filter) ([]*payment.Payment, error) {
	f.Active = payment.Bool(true)
	now := l.now()

	var overdue []*payment.Payment
	for offset := 0; ; offset += MaxPageSize {
		batch, err := l.store.ListPayments(ctx, f, payment.ListOpts{Limit: MaxPageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		for _, p := range batch {
			l.decoratePayment(p, now)
			if p.Classification.IsOverdue() {
				overdue = append(overdue, p)
			}
		}
		if len(batch) < MaxPageSize {
			break
		}
	}

	sort.SliceStable(overdue, func(i, j int) bool {
		return overdue[i].Classification.Days > overdue[j].Classification.Days
	})
	return overdue, nil
}

// ClassifyPayment labels a payment against the current time.
func (l *Ledger) ClassifyPayment(p *payment.Payment) payment.Label {
	return payment.ClassifyWith(l.thresholds, p.State, p.DueAt, l.now())
}

func (l *Ledger) parseState(s string) (payment.State, error) {
	st, err := payment.ParseState(s, l.extraStates...)
	if err != nil {
		return "", ValidationError{Field: "state", Message: err.Error()}
	}
	return st, nil
}

func (l *Ledger) normalizePage(p payment.Page) payment.Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size <= 0 {
		p.Size = l.defaultPageSize
	}
	p.Size = min(p.Size, MaxPageSize)
	return p
}

func (l *Ledger) decoratePayment(p *payment.Payment, now time.Time) {
	p.Classification = payment.ClassifyWith(l.thresholds, p.State, p.DueAt, now)
	p.AmountFormatted = l.locale.Format(p.Amount)
}

func associationsChanged(before, after *payment.Payment) bool {
	return before.UnitID != after.UnitID ||
		before.OwnerID != after.OwnerID ||
		before.TenantID != after.TenantID
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
