package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xraph/condoledger/account"
	"github.com/xraph/condoledger/id"
	"github.com/xraph/condoledger/payment"
)

type memorySink struct {
	events []Event
	err    error
	closed bool
}

func (s *memorySink) Publish(_ context.Context, e Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, e)
	return nil
}

func (s *memorySink) Close() error {
	s.closed = true
	return nil
}

var fixed = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestPaymentEvents(t *testing.T) {
	sink := &memorySink{}
	p := New(sink, WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	pay := &payment.Payment{ID: id.NewPaymentID(), Amount: decimal.RequireFromString("100"), State: payment.StatePending, Active: true}
	after := pay.Clone()
	after.State = payment.StatePaid
	changes := []payment.Change{{Field: "State", Old: "PENDING", New: "PAID"}}

	if err := p.OnPaymentCreated(ctx, pay); err != nil {
		t.Fatalf("OnPaymentCreated: %v", err)
	}
	if err := p.OnPaymentUpdated(ctx, pay, after, changes); err != nil {
		t.Fatalf("OnPaymentUpdated: %v", err)
	}
	if err := p.OnPaymentPurged(ctx, pay.ID); err != nil {
		t.Fatalf("OnPaymentPurged: %v", err)
	}

	wantTypes := []string{TypePaymentCreated, TypePaymentUpdated, TypePaymentPurged}
	if len(sink.events) != len(wantTypes) {
		t.Fatalf("events: got %d, want %d", len(sink.events), len(wantTypes))
	}
	seen := make(map[uuid.UUID]bool)
	for i, e := range sink.events {
		if e.Type != wantTypes[i] {
			t.Errorf("event %d type: got %s, want %s", i, e.Type, wantTypes[i])
		}
		if e.Key != pay.ID.String() {
			t.Errorf("event %d key: got %s, want %s", i, e.Key, pay.ID)
		}
		if !e.OccurredAt.Equal(fixed) {
			t.Errorf("event %d time: got %v", i, e.OccurredAt)
		}
		if seen[e.ID] {
			t.Errorf("event %d: duplicate id %s", i, e.ID)
		}
		seen[e.ID] = true
	}

	var data struct {
		Detail  string           `json:"detail"`
		Changes []payment.Change `json:"changes"`
	}
	if err := json.Unmarshal(sink.events[1].Data, &data); err != nil {
		t.Fatalf("decode update payload: %v", err)
	}
	if data.Detail != "State: PENDING → PAID" || len(data.Changes) != 1 || data.Changes[0].Field != "State" {
		t.Errorf("update payload: got %+v", data)
	}
}

func TestAccountEvents(t *testing.T) {
	sink := &memorySink{}
	p := New(sink)
	ctx := context.Background()

	a := &account.Account{ID: id.NewAccountID(), OwnerID: id.NewOwnerID(), CurrentBalance: decimal.RequireFromString("250.5")}
	posting := &account.Posting{ID: id.NewPostingID(), AccountID: a.ID, Kind: account.KindCredit, Amount: decimal.RequireFromString("250.5")}

	_ = p.OnAccountOpened(ctx, a, posting)
	_ = p.OnPostingsPurged(ctx, a.ID, 4)
	_ = p.OnAccountClosed(ctx, a.ID)

	if len(sink.events) != 3 {
		t.Fatalf("events: got %d, want 3", len(sink.events))
	}

	var opened AccountData
	if err := json.Unmarshal(sink.events[0].Data, &opened); err != nil {
		t.Fatalf("decode opened payload: %v", err)
	}
	if opened.Balance != "250.5" || opened.Posting == nil || opened.Posting.ID != posting.ID {
		t.Errorf("opened payload: got %+v", opened)
	}

	var purged AccountData
	if err := json.Unmarshal(sink.events[1].Data, &purged); err != nil {
		t.Fatalf("decode purged payload: %v", err)
	}
	if purged.Removed != 4 || purged.Balance != "0" {
		t.Errorf("purged payload: got %+v", purged)
	}
}

func TestSinkErrorsAreReturned(t *testing.T) {
	boom := errors.New("broker down")
	sink := &memorySink{err: boom}
	p := New(sink)

	err := p.OnPaymentPurged(context.Background(), id.NewPaymentID())
	if !errors.Is(err, boom) {
		t.Errorf("OnPaymentPurged: got %v, want %v", err, boom)
	}

	if err := p.OnShutdown(context.Background()); err != nil {
		t.Fatalf("OnShutdown: %v", err)
	}
	if !sink.closed {
		t.Error("sink not closed on shutdown")
	}
}
