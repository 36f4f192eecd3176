// Package publisher turns ledger lifecycle hooks into domain events and
// hands them to a Sink such as a Kafka topic or a RabbitMQ queue.
//
// Events are keyed by the account or payment they concern, so a sink that
// partitions by key keeps each entity's events in order.
package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/xraph/condoledger/account"
	"github.com/xraph/condoledger/id"
	"github.com/xraph/condoledger/payment"
	"github.com/xraph/condoledger/plugin"
)

// Event types.
const (
	TypeAccountOpened      = "condoledger.account.opened"
	TypeAccountClosed      = "condoledger.account.closed"
	TypePostingRecorded    = "condoledger.posting.recorded"
	TypePostingsPurged     = "condoledger.postings.purged"
	TypePaymentCreated     = "condoledger.payment.created"
	TypePaymentUpdated     = "condoledger.payment.updated"
	TypePaymentDeactivated = "condoledger.payment.deactivated"
	TypePaymentPurged      = "condoledger.payment.purged"
)

// Event is the envelope written to a sink.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Key        string          `json:"key"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Sink delivers encoded events.
type Sink interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Compile-time interface checks.
var (
	_ plugin.Plugin               = (*Plugin)(nil)
	_ plugin.OnAccountOpened      = (*Plugin)(nil)
	_ plugin.OnPostingRecorded    = (*Plugin)(nil)
	_ plugin.OnPostingsPurged     = (*Plugin)(nil)
	_ plugin.OnAccountClosed      = (*Plugin)(nil)
	_ plugin.OnPaymentCreated     = (*Plugin)(nil)
	_ plugin.OnPaymentUpdated     = (*Plugin)(nil)
	_ plugin.OnPaymentDeactivated = (*Plugin)(nil)
	_ plugin.OnPaymentPurged      = (*Plugin)(nil)
	_ plugin.OnShutdown           = (*Plugin)(nil)
)

// Plugin publishes every lifecycle hook as an Event. Publish failures are
// returned to the registry, which logs them; the ledger change has already
// committed.
type Plugin struct {
	sink  Sink
	now   func() time.Time
	newID func() uuid.UUID
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithClock sets the time source for OccurredAt.
func WithClock(now func() time.Time) Option {
	return func(p *Plugin) { p.now = now }
}

// New creates a publishing plugin over sink.
func New(sink Sink, opts ...Option) *Plugin {
	p := &Plugin{
		sink:  sink,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.New,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return "publisher" }

// OnShutdown closes the sink.
func (p *Plugin) OnShutdown(context.Context) error {
	return p.sink.Close()
}

// ──────────────────────────────────────────────────
// Payloads
// ──────────────────────────────────────────────────

// AccountData is the payload of account and posting events.
type AccountData struct {
	AccountID id.AccountID     `json:"account_id"`
	OwnerID   id.OwnerID       `json:"owner_id,omitzero"`
	Balance   string           `json:"balance,omitempty"`
	Posting   *account.Posting `json:"posting,omitempty"`
	Removed   int64            `json:"removed,omitempty"`
}

// PaymentData is the payload of payment events.
type PaymentData struct {
	PaymentID id.PaymentID     `json:"payment_id"`
	Payment   *payment.Payment `json:"payment,omitempty"`
	Changes   []payment.Change `json:"changes,omitempty"`
	Detail    string           `json:"detail,omitempty"`
}

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnAccountOpened implements plugin.OnAccountOpened.
func (p *Plugin) OnAccountOpened(ctx context.Context, a *account.Account, opening *account.Posting) error {
	return p.publish(ctx, TypeAccountOpened, a.ID.String(), AccountData{
		AccountID: a.ID,
		OwnerID:   a.OwnerID,
		Balance:   a.CurrentBalance.String(),
		Posting:   opening,
	})
}

// OnPostingRecorded implements plugin.OnPostingRecorded.
func (p *Plugin) OnPostingRecorded(ctx context.Context, a *account.Account, posting *account.Posting) error {
	return p.publish(ctx, TypePostingRecorded, a.ID.String(), AccountData{
		AccountID: a.ID,
		OwnerID:   a.OwnerID,
		Balance:   a.CurrentBalance.String(),
		Posting:   posting,
	})
}

// OnPostingsPurged implements plugin.OnPostingsPurged.
func (p *Plugin) OnPostingsPurged(ctx context.Context, accountID id.AccountID, removed int64) error {
	return p.publish(ctx, TypePostingsPurged, accountID.String(), AccountData{
		AccountID: accountID,
		Balance:   "0",
		Removed:   removed,
	})
}

// OnAccountClosed implements plugin.OnAccountClosed.
func (p *Plugin) OnAccountClosed(ctx context.Context, accountID id.AccountID) error {
	return p.publish(ctx, TypeAccountClosed, accountID.String(), AccountData{AccountID: accountID})
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentCreated implements plugin.OnPaymentCreated.
func (p *Plugin) OnPaymentCreated(ctx context.Context, pay *payment.Payment) error {
	return p.publish(ctx, TypePaymentCreated, pay.ID.String(), PaymentData{PaymentID: pay.ID, Payment: pay})
}

// OnPaymentUpdated implements plugin.OnPaymentUpdated.
func (p *Plugin) OnPaymentUpdated(ctx context.Context, _, after *payment.Payment, changes []payment.Change) error {
	return p.publish(ctx, TypePaymentUpdated, after.ID.String(), PaymentData{
		PaymentID: after.ID,
		Payment:   after,
		Changes:   changes,
		Detail:    payment.Describe(changes),
	})
}

// OnPaymentDeactivated implements plugin.OnPaymentDeactivated.
func (p *Plugin) OnPaymentDeactivated(ctx context.Context, pay *payment.Payment) error {
	return p.publish(ctx, TypePaymentDeactivated, pay.ID.String(), PaymentData{PaymentID: pay.ID, Payment: pay})
}

// OnPaymentPurged implements plugin.OnPaymentPurged.
func (p *Plugin) OnPaymentPurged(ctx context.Context, paymentID id.PaymentID) error {
	return p.publish(ctx, TypePaymentPurged, paymentID.String(), PaymentData{PaymentID: paymentID})
}

func (p *Plugin) publish(ctx context.Context, eventType, key string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return p.sink.Publish(ctx, Event{
		ID:         p.newID(),
		Type:       eventType,
		OccurredAt: p.now(),
		Key:        key,
		Data:       raw,
	})
}
