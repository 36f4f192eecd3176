package audithook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/condoledger/account"
	"github.com/xraph/condoledger/id"
	"github.com/xraph/condoledger/payment"
)

type captured struct {
	events []*AuditEvent
	err    error
}

func (c *captured) Record(_ context.Context, evt *AuditEvent) error {
	c.events = append(c.events, evt)
	return c.err
}

func TestPaymentEvents(t *testing.T) {
	rec := &captured{}
	ext := New(rec)
	ctx := context.Background()

	p := &payment.Payment{
		ID:     id.NewPaymentID(),
		Amount: decimal.RequireFromString("150.00"),
		State:  payment.StatePending,
		UserID: id.NewUserID(),
	}
	after := p.Clone()
	after.State = payment.StatePaid
	changes := []payment.Change{{Field: "State", Old: "PENDING", New: "PAID"}}

	_ = ext.OnPaymentCreated(ctx, p)
	_ = ext.OnPaymentUpdated(ctx, p, after, changes)
	_ = ext.OnPaymentUpdated(ctx, p, after, nil)
	_ = ext.OnPaymentDeactivated(ctx, after)
	_ = ext.OnPaymentPurged(ctx, p.ID)

	want := []string{ActionPaymentCreated, ActionPaymentUpdated, ActionPaymentDeactivated, ActionPaymentPurged}
	if len(rec.events) != len(want) {
		t.Fatalf("events: got %d, want %d", len(rec.events), len(want))
	}
	for i, action := range want {
		if rec.events[i].Action != action {
			t.Errorf("event %d: got %s, want %s", i, rec.events[i].Action, action)
		}
		if rec.events[i].ResourceID != p.ID.String() {
			t.Errorf("event %d: resource id got %s", i, rec.events[i].ResourceID)
		}
	}
	if got := rec.events[1].Metadata["detail"]; got != "State: PENDING → PAID" {
		t.Errorf("update detail: got %v", got)
	}
	if got := rec.events[3].Severity; got != SeverityCritical {
		t.Errorf("purge severity: got %s, want %s", got, SeverityCritical)
	}
}

func TestAccountEvents(t *testing.T) {
	rec := &captured{}
	ext := New(rec)
	ctx := context.Background()

	a := &account.Account{
		ID:             id.NewAccountID(),
		OwnerID:        id.NewOwnerID(),
		InitialBalance: decimal.NewFromInt(100),
		CurrentBalance: decimal.NewFromInt(100),
	}
	opening := &account.Posting{ID: id.NewPostingID(), AccountID: a.ID, Kind: account.KindCredit, Amount: a.InitialBalance, OccurredAt: time.Now()}

	_ = ext.OnAccountOpened(ctx, a, opening)
	_ = ext.OnPostingRecorded(ctx, a, opening)
	_ = ext.OnPostingsPurged(ctx, a.ID, 3)
	_ = ext.OnAccountClosed(ctx, a.ID)

	if len(rec.events) != 4 {
		t.Fatalf("events: got %d, want 4", len(rec.events))
	}
	if got := rec.events[0].Metadata["opening_posting_id"]; got != opening.ID.String() {
		t.Errorf("opening posting: got %v", got)
	}
	if got := rec.events[2].Metadata["removed"]; got != int64(3) {
		t.Errorf("removed: got %v", got)
	}
}

func TestEnabledActions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
		want int
	}{
		{"All", func(*Extension) {}, 2},
		{"Only created", WithEnabledActions(ActionPaymentCreated), 1},
		{"Without purge", WithDisabledActions(ActionPaymentPurged), 1},
		{"Without both", WithDisabledActions(ActionPaymentCreated, ActionPaymentPurged), 0},
		{"Payment category", WithCategories(CategoryPayment), 2},
		{"Account category", WithCategories(CategoryAccount), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &captured{}
			ext := New(rec, tt.opt)
			p := &payment.Payment{ID: id.NewPaymentID()}

			_ = ext.OnPaymentCreated(context.Background(), p)
			_ = ext.OnPaymentPurged(context.Background(), p.ID)

			if len(rec.events) != tt.want {
				t.Errorf("events: got %d, want %d", len(rec.events), tt.want)
			}
		})
	}
}

func TestRecorderFailureIsSwallowed(t *testing.T) {
	rec := &captured{err: errors.New("backend down")}
	ext := New(rec, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	if err := ext.OnPaymentPurged(context.Background(), id.NewPaymentID()); err != nil {
		t.Errorf("OnPaymentPurged: got %v, want nil", err)
	}
	if len(rec.events) != 1 {
		t.Errorf("events: got %d, want 1", len(rec.events))
	}
}
