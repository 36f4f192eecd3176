// Package storetest is a behavioural suite every store.Store backend runs
// from its own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	ledger "github.com/xraph/condoledger"
	"github.com/xraph/condoledger/account"
	"github.com/xraph/condoledger/audit"
	"github.com/xraph/condoledger/id"
	"github.com/xraph/condoledger/owner"
	"github.com/xraph/condoledger/payment"
	"github.com/xraph/condoledger/store"
	"github.com/xraph/condoledger/types"
)

// Factory returns a fresh, migrated store. It should register cleanup on t.
type Factory func(t *testing.T) store.Store

var base = time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

// Run runs the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Owners", func(t *testing.T) { testOwners(t, newStore(t)) })
	t.Run("Accounts", func(t *testing.T) { testAccounts(t, newStore(t)) })
	t.Run("Postings", func(t *testing.T) { testPostings(t, newStore(t)) })
	t.Run("Payments", func(t *testing.T) { testPayments(t, newStore(t)) })
	t.Run("PaymentFilters", func(t *testing.T) { testPaymentFilters(t, newStore(t)) })
	t.Run("Audit", func(t *testing.T) { testAudit(t, newStore(t)) })
	t.Run("Rollback", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("ConcurrentPosts", func(t *testing.T) { testConcurrentPosts(t, newStore(t)) })
}

func createOwner(t *testing.T, s store.Store, name string) *owner.Owner {
	t.Helper()
	o := &owner.Owner{
		Entity:   types.NewEntityAt(base),
		ID:       id.NewOwnerID(),
		Name:     name,
		Email:    "owner@example.com",
		Metadata: map[string]string{"floor": "3"},
	}
	if err := s.CreateOwner(context.Background(), o); err != nil {
		t.Fatalf("CreateOwner: %v", err)
	}
	return o
}

func createAccount(t *testing.T, s store.Store, ownerID id.OwnerID) *account.Account {
	t.Helper()
	a := &account.Account{
		Entity:         types.NewEntityAt(base),
		ID:             id.NewAccountID(),
		OwnerID:        ownerID,
		InitialBalance: decimal.RequireFromString("1500.75"),
	}
	if err := s.CreateAccount(context.Background(), a); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	return a
}

func testOwners(t *testing.T, s store.Store) {
	ctx := context.Background()
	b := createOwner(t, s, "Bruno")
	a := createOwner(t, s, "Ana")

	got, err := s.GetOwner(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetOwner: %v", err)
	}
	if got.Name != "Bruno" || got.Metadata["floor"] != "3" {
		t.Errorf("GetOwner: got %+v", got)
	}

	list, err := s.ListOwners(ctx, owner.ListOpts{Limit: 10})
	if err != nil {
		t.Fatalf("ListOwners: %v", err)
	}
	if len(list) != 2 || list[0].ID != a.ID {
		t.Errorf("ListOwners: want Ana first, got %d owners", len(list))
	}

	b.Phone = "+244 900 000 000"
	b.UpdatedAt = base.Add(time.Hour)
	if err := s.UpdateOwner(ctx, b); err != nil {
		t.Fatalf("UpdateOwner: %v", err)
	}
	got, _ = s.GetOwner(ctx, b.ID)
	if got.Phone != b.Phone {
		t.Errorf("UpdateOwner: phone got %q, want %q", got.Phone, b.Phone)
	}

	if _, err := s.GetOwner(ctx, id.NewOwnerID()); !errors.Is(err, ledger.ErrOwnerNotFound) {
		t.Errorf("GetOwner unknown: got %v, want %v", err, ledger.ErrOwnerNotFound)
	}
	missing := &owner.Owner{ID: id.NewOwnerID(), Name: "Nobody"}
	if err := s.UpdateOwner(ctx, missing); !errors.Is(err, ledger.ErrOwnerNotFound) {
		t.Errorf("UpdateOwner unknown: got %v, want %v", err, ledger.ErrOwnerNotFound)
	}
}

func testAccounts(t *testing.T, s store.Store) {
	ctx := context.Background()
	o := createOwner(t, s, "Carla")
	a := createAccount(t, s, o.ID)

	dup := &account.Account{Entity: types.NewEntityAt(base), ID: id.NewAccountID(), OwnerID: o.ID}
	if err := s.CreateAccount(ctx, dup); !errors.Is(err, ledger.ErrAccountExists) {
		t.Errorf("CreateAccount duplicate owner: got %v, want %v", err, ledger.ErrAccountExists)
	}

	got, err := s.GetAccountByOwner(ctx, o.ID)
	if err != nil {
		t.Fatalf("GetAccountByOwner: %v", err)
	}
	if got.ID != a.ID || !got.InitialBalance.Equal(a.InitialBalance) {
		t.Errorf("GetAccountByOwner: got %+v", got)
	}

	balance := decimal.RequireFromString("-20.05")
	if err := s.SetAccountBalance(ctx, a.ID, balance, base.Add(time.Minute)); err != nil {
		t.Fatalf("SetAccountBalance: %v", err)
	}
	got, _ = s.GetAccountForUpdate(ctx, a.ID)
	if !got.CurrentBalance.Equal(balance) {
		t.Errorf("balance: got %s, want %s", got.CurrentBalance, balance)
	}

	list, err := s.ListAccountsByOwner(ctx, o.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListAccountsByOwner: got %d, %v", len(list), err)
	}

	if err := s.DeleteAccount(ctx, a.ID); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if _, err := s.GetAccount(ctx, a.ID); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Errorf("GetAccount after delete: got %v", err)
	}
	if err := s.SetAccountBalance(ctx, a.ID, balance, base); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Errorf("SetAccountBalance unknown: got %v", err)
	}
}

func testPostings(t *testing.T, s store.Store) {
	ctx := context.Background()
	o := createOwner(t, s, "Duarte")
	a := createAccount(t, s, o.ID)

	amounts := []string{"10.10", "0.01", "99999999.99"}
	for i, amt := range amounts {
		p := &account.Posting{
			ID:          id.NewPostingID(),
			AccountID:   a.ID,
			Kind:        account.KindCredit,
			Amount:      decimal.RequireFromString(amt),
			Description: "posting",
			// Inserted newest first to check ordering.
			OccurredAt: base.Add(time.Duration(len(amounts)-i) * time.Hour),
			CreatedAt:  base,
		}
		if err := s.CreatePosting(ctx, p); err != nil {
			t.Fatalf("CreatePosting: %v", err)
		}
	}

	postings, err := s.ListPostings(ctx, a.ID, account.ListOpts{})
	if err != nil {
		t.Fatalf("ListPostings: %v", err)
	}
	if len(postings) != 3 {
		t.Fatalf("ListPostings: got %d, want 3", len(postings))
	}
	if !postings[0].Amount.Equal(decimal.RequireFromString("99999999.99")) {
		t.Errorf("oldest first: got %s", postings[0].Amount)
	}
	if want := decimal.RequireFromString("100000010.09"); !account.Balance(postings).Equal(want) {
		t.Errorf("sum: got %s, want %s", account.Balance(postings), want)
	}

	page, _ := s.ListPostings(ctx, a.ID, account.ListOpts{Limit: 1, Offset: 1})
	if len(page) != 1 || !page[0].Amount.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("paged postings: got %v", page)
	}

	n, err := s.CountPostings(ctx, a.ID)
	if err != nil || n != 3 {
		t.Errorf("CountPostings: got %d, %v", n, err)
	}

	orphan := &account.Posting{ID: id.NewPostingID(), AccountID: id.NewAccountID(), Kind: account.KindDebit, Amount: decimal.NewFromInt(1), OccurredAt: base, CreatedAt: base}
	if err := s.CreatePosting(ctx, orphan); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Errorf("CreatePosting orphan: got %v, want %v", err, ledger.ErrAccountNotFound)
	}

	removed, err := s.DeletePostings(ctx, a.ID)
	if err != nil || removed != 3 {
		t.Errorf("DeletePostings: got %d, %v", removed, err)
	}
}

func newPayment(issued time.Time, amount string) *payment.Payment {
	return &payment.Payment{
		Entity:   types.NewEntityAt(base),
		ID:       id.NewPaymentID(),
		Amount:   decimal.RequireFromString(amount),
		State:    payment.StatePending,
		IssuedAt: issued,
		Active:   true,
	}
}

func testPayments(t *testing.T, s store.Store) {
	ctx := context.Background()
	due := base.Add(72 * time.Hour)

	p := newPayment(base, "1234.56")
	p.Description = "Quota"
	p.DueAt = &due
	p.UnitID = id.NewUnitID()
	p.UserID = id.NewUserID()
	if err := s.CreatePayment(ctx, p); err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	got, err := s.GetPayment(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPayment: %v", err)
	}
	if !got.Amount.Equal(p.Amount) || got.DueAt == nil || !got.DueAt.Equal(due) || got.UnitID != p.UnitID || !got.OwnerID.IsNil() {
		t.Errorf("GetPayment: got %+v", got)
	}

	got.State = payment.StatePaid
	got.DueAt = nil
	got.Active = false
	got.UpdatedAt = base.Add(time.Hour)
	if err := s.UpdatePayment(ctx, got); err != nil {
		t.Fatalf("UpdatePayment: %v", err)
	}
	got, _ = s.GetPaymentForUpdate(ctx, p.ID)
	if got.State != payment.StatePaid || got.DueAt != nil || got.Active {
		t.Errorf("after update: got %+v", got)
	}

	if err := s.DeletePayment(ctx, p.ID); err != nil {
		t.Fatalf("DeletePayment: %v", err)
	}
	if _, err := s.GetPayment(ctx, p.ID); !errors.Is(err, ledger.ErrPaymentNotFound) {
		t.Errorf("GetPayment after delete: got %v", err)
	}
	if err := s.DeletePayment(ctx, p.ID); !errors.Is(err, ledger.ErrPaymentNotFound) {
		t.Errorf("DeletePayment twice: got %v", err)
	}
	if err := s.UpdatePayment(ctx, p); !errors.Is(err, ledger.ErrPaymentNotFound) {
		t.Errorf("UpdatePayment unknown: got %v", err)
	}
}

func testPaymentFilters(t *testing.T, s store.Store) {
	ctx := context.Background()
	ownerID := id.NewOwnerID()

	var created []*payment.Payment
	for i := range 6 {
		p := newPayment(base.Add(time.Duration(i%3)*time.Hour), "10.50")
		if i < 4 {
			p.OwnerID = ownerID
		}
		if i%2 == 0 {
			p.State = payment.StatePaid
		}
		p.Active = i != 0
		if err := s.CreatePayment(ctx, p); err != nil {
			t.Fatalf("CreatePayment: %v", err)
		}
		created = append(created, p)
	}

	all, err := s.ListPayments(ctx, payment.Filter{}, payment.ListOpts{})
	if err != nil {
		t.Fatalf("ListPayments: %v", err)
	}
	if len(all) != 6 {
		t.Fatalf("ListPayments: got %d, want 6", len(all))
	}
	for i := 1; i < len(all); i++ {
		prev, cur := all[i-1], all[i]
		if cur.IssuedAt.After(prev.IssuedAt) ||
			(cur.IssuedAt.Equal(prev.IssuedAt) && cur.ID.String() > prev.ID.String()) {
			t.Errorf("ordering broken at %d", i)
		}
	}

	paid := payment.Filter{Active: payment.Bool(true), State: payment.StatePaid, OwnerID: ownerID}
	n, err := s.CountPayments(ctx, paid)
	if err != nil || n != 1 {
		t.Errorf("CountPayments paid: got %d, %v", n, err)
	}
	sum, err := s.SumPayments(ctx, payment.Filter{Active: payment.Bool(true), OwnerID: ownerID})
	if err != nil {
		t.Fatalf("SumPayments: %v", err)
	}
	if want := decimal.RequireFromString("31.50"); !sum.Equal(want) {
		t.Errorf("SumPayments: got %s, want %s", sum, want)
	}
	none, err := s.SumPayments(ctx, payment.Filter{OwnerID: id.NewOwnerID()})
	if err != nil || !none.IsZero() {
		t.Errorf("SumPayments empty: got %s, %v", none, err)
	}

	inactive, _ := s.ListPayments(ctx, payment.Filter{Active: payment.Bool(false)}, payment.ListOpts{})
	if len(inactive) != 1 || inactive[0].ID != created[0].ID {
		t.Errorf("inactive: got %d", len(inactive))
	}

	page, _ := s.ListPayments(ctx, payment.Filter{}, payment.ListOpts{Limit: 4, Offset: 4})
	if len(page) != 2 {
		t.Errorf("last page: got %d, want 2", len(page))
	}
}

func testAudit(t *testing.T, s store.Store) {
	ctx := context.Background()
	paymentID := id.NewPaymentID()
	user := id.NewUserID()

	actions := []audit.Action{audit.ActionCreate, audit.ActionEdit, audit.ActionEdit, audit.ActionDeactivate}
	for i, action := range actions {
		e := &audit.Entry{
			ID:           id.NewAuditEntryID(),
			PaymentID:    paymentID,
			Action:       action,
			Detail:       "State: PENDING → PAID",
			ActingUserID: user,
			RecordedAt:   base.Add(time.Duration(i) * time.Second),
		}
		if err := s.AppendAudit(ctx, e); err != nil {
			t.Fatalf("AppendAudit: %v", err)
		}
	}

	entries, err := s.ListAudit(ctx, paymentID)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	if len(entries) != len(actions) {
		t.Fatalf("ListAudit: got %d, want %d", len(entries), len(actions))
	}
	if entries[0].Action != audit.ActionDeactivate || entries[3].Action != audit.ActionCreate {
		t.Errorf("ListAudit: want newest first, got %s..%s", entries[0].Action, entries[3].Action)
	}
	if entries[0].ActingUserID != user || entries[0].Detail != "State: PENDING → PAID" {
		t.Errorf("ListAudit: got %+v", entries[0])
	}

	empty, err := s.ListAudit(ctx, id.NewPaymentID())
	if err != nil || len(empty) != 0 {
		t.Errorf("ListAudit unknown: got %d, %v", len(empty), err)
	}
}

func testRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	o := createOwner(t, s, "Eva")
	a := createAccount(t, s, o.ID)
	p := newPayment(base, "5")
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.GetAccountForUpdate(ctx, a.ID); err != nil {
			return err
		}
		posting := &account.Posting{ID: id.NewPostingID(), AccountID: a.ID, Kind: account.KindCredit, Amount: decimal.NewFromInt(7), OccurredAt: base, CreatedAt: base}
		if err := s.CreatePosting(ctx, posting); err != nil {
			return err
		}
		if err := s.SetAccountBalance(ctx, a.ID, decimal.NewFromInt(7), base); err != nil {
			return err
		}
		err := s.RunInTx(ctx, func(ctx context.Context) error {
			return s.CreatePayment(ctx, p)
		})
		if err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunInTx: got %v, want %v", err, boom)
	}

	if n, _ := s.CountPostings(ctx, a.ID); n != 0 {
		t.Errorf("postings after rollback: got %d, want 0", n)
	}
	got, _ := s.GetAccount(ctx, a.ID)
	if !got.CurrentBalance.IsZero() {
		t.Errorf("balance after rollback: got %s, want 0", got.CurrentBalance)
	}
	if _, err := s.GetPayment(ctx, p.ID); !errors.Is(err, ledger.ErrPaymentNotFound) {
		t.Errorf("payment after rollback: got %v", err)
	}

	err = s.RunInTx(ctx, func(ctx context.Context) error {
		return s.CreatePayment(ctx, p)
	})
	if err != nil {
		t.Fatalf("RunInTx commit: %v", err)
	}
	if _, err := s.GetPayment(ctx, p.ID); err != nil {
		t.Errorf("payment after commit: %v", err)
	}
}

// testConcurrentPosts races a credit and a debit on each account through the
// ledger; the row lock must serialize them.
func testConcurrentPosts(t *testing.T, s store.Store) {
	ctx := context.Background()
	// The factory owns the store, so the ledger is never stopped here.
	l := ledger.New(s)
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	want := decimal.NewFromInt(70)
	for range 5 {
		o := &owner.Owner{Name: "Concurrent"}
		if err := l.CreateOwner(ctx, o); err != nil {
			t.Fatalf("CreateOwner: %v", err)
		}
		a, err := l.OpenAccount(ctx, o.ID, 0)
		if err != nil {
			t.Fatalf("OpenAccount: %v", err)
		}

		var g errgroup.Group
		g.Go(func() error {
			_, err := l.Post(ctx, ledger.PostInput{AccountID: a.ID, Kind: ledger.Credit, Amount: 100})
			return err
		})
		g.Go(func() error {
			_, err := l.Post(ctx, ledger.PostInput{AccountID: a.ID, Kind: ledger.Debit, Amount: 30})
			return err
		})
		if err := g.Wait(); err != nil {
			t.Fatalf("Post: %v", err)
		}

		report, err := l.VerifyBalance(ctx, a.ID)
		if err != nil {
			t.Fatalf("VerifyBalance: %v", err)
		}
		if !report.Stored.Equal(want) {
			t.Errorf("balance: got %s, want %s", report.Stored, want)
		}
		if report.Postings != 2 {
			t.Errorf("postings: got %d, want 2", report.Postings)
		}
	}
}
