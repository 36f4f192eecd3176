package ledger_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
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
	"github.com/xraph/condoledger/store/memory"
	"github.com/xraph/condoledger/types"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newLedger(t *testing.T, s store.Store, opts ...ledger.Option) *ledger.Ledger {
	t.Helper()
	base := []ledger.Option{
		ledger.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		ledger.WithClock(ledger.ClockFunc(func() time.Time { return fixedNow })),
	}
	l := ledger.New(s, append(base, opts...)...)
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = l.Stop() })
	return l
}

func newOwner(t *testing.T, l *ledger.Ledger) *owner.Owner {
	t.Helper()
	o := &owner.Owner{Name: "Maria Domingos"}
	if err := l.CreateOwner(context.Background(), o); err != nil {
		t.Fatalf("CreateOwner: %v", err)
	}
	return o
}

func mustDecimal(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// ──────────────────────────────────────────────────
// Accounts
// ──────────────────────────────────────────────────

func TestOpenAccount(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, memory.New())
	o := newOwner(t, l)

	a, err := l.OpenAccount(ctx, o.ID, "15.000,00 AOA")
	if err != nil {
		t.Fatalf("OpenAccount: %v", err)
	}
	if want := mustDecimal("15000"); !a.CurrentBalance.Equal(want) || !a.InitialBalance.Equal(want) {
		t.Errorf("balances: got %s/%s, want %s", a.InitialBalance, a.CurrentBalance, want)
	}
	if a.CurrentBalanceFormatted != "15.000,00 AOA" {
		t.Errorf("formatted: got %q", a.CurrentBalanceFormatted)
	}

	postings, err := l.ListPostings(ctx, a.ID, account.ListOpts{})
	if err != nil {
		t.Fatalf("ListPostings: %v", err)
	}
	if len(postings) != 1 || postings[0].Kind != account.KindCredit || postings[0].Description != account.OpeningDescription {
		t.Fatalf("opening posting: got %+v", postings)
	}

	if _, err := l.OpenAccount(ctx, o.ID, 0); !errors.Is(err, ledger.ErrAccountExists) {
		t.Errorf("second account: got %v, want %v", err, ledger.ErrAccountExists)
	}
}

func TestOpenAccountErrors(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, memory.New())
	o := newOwner(t, l)

	tests := []struct {
		name    string
		ownerID id.OwnerID
		initial any
		check   func(error) bool
	}{
		{"Unknown owner", id.NewOwnerID(), 0, ledger.IsNotFound},
		{"Negative", o.ID, "-10,00", ledger.IsInvalidAmount},
		{"Garbage", o.ID, "ten", ledger.IsInvalidAmount},
		{"Excess fraction digits", o.ID, "100,005", ledger.IsInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.OpenAccount(ctx, tt.ownerID, tt.initial)
			if !tt.check(err) {
				t.Errorf("OpenAccount: unexpected error %v", err)
			}
		})
	}
}

func TestOpenAccountWithoutInitialBalance(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, memory.New())
	o := newOwner(t, l)

	a, err := l.OpenAccount(ctx, o.ID, nil)
	if err != nil {
		t.Fatalf("OpenAccount: %v", err)
	}
	if !a.CurrentBalance.IsZero() {
		t.Errorf("balance: got %s, want 0", a.CurrentBalance)
	}
	postings, _ := l.ListPostings(ctx, a.ID, account.ListOpts{})
	if len(postings) != 0 {
		t.Errorf("postings: got %d, want 0", len(postings))
	}
}

func TestBalanceInvariant(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, memory.New())
	o := newOwner(t, l)

	a, err := l.OpenAccount(ctx, o.ID, "1.000,00")
	if err != nil {
		t.Fatalf("OpenAccount: %v", err)
	}

	steps := []struct {
		kind   account.Kind
		amount any
	}{
		{"credit", "250,50"},
		{"DEBITO", "100"},
		{account.KindDebit, 0.25},
		{"Credito", 1200},
		{account.KindDebit, "2.000,00 AOA"},
	}

	sum := decimal.Zero
	for i, step := range steps {
		p, err := l.Post(ctx, ledger.PostInput{AccountID: a.ID, Kind: step.kind, Amount: step.amount, Description: "step"})
		if err != nil {
			t.Fatalf("step %d: Post: %v", i, err)
		}
		sum = sum.Add(p.Signed())

		got, err := l.GetAccount(ctx, a.ID)
		if err != nil {
			t.Fatalf("step %d: GetAccount: %v", i, err)
		}
		if want := got.InitialBalance.Add(sum); !got.CurrentBalance.Equal(want) {
			t.Errorf("step %d: balance got %s, want %s", i, got.CurrentBalance, want)
		}
	}

	report, err := l.VerifyBalance(ctx, a.ID)
	if err != nil {
		t.Fatalf("VerifyBalance: %v", err)
	}
	if want := mustDecimal("350.25"); !report.Stored.Equal(want) {
		t.Errorf("final balance: got %s, want %s", report.Stored, want)
	}
	if report.Postings != len(steps)+1 {
		t.Errorf("postings: got %d, want %d", report.Postings, len(steps)+1)
	}
}

func TestPostValidation(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, memory.New())
	o := newOwner(t, l)
	a, _ := l.OpenAccount(ctx, o.ID, 0)

	tests := []struct {
		name  string
		input ledger.PostInput
		check func(error) bool
	}{
		{"Zero", ledger.PostInput{AccountID: a.ID, Kind: ledger.Credit, Amount: "0,00"}, ledger.IsInvalidAmount},
		{"Negative", ledger.PostInput{AccountID: a.ID, Kind: ledger.Credit, Amount: -5}, ledger.IsInvalidAmount},
		{"Unparseable", ledger.PostInput{AccountID: a.ID, Kind: ledger.Credit, Amount: "abc"}, ledger.IsInvalidAmount},
		{"Missing", ledger.PostInput{AccountID: a.ID, Kind: ledger.Credit}, ledger.IsInvalidAmount},
		{"Excess fraction digits", ledger.PostInput{AccountID: a.ID, Kind: ledger.Credit, Amount: 12.345}, ledger.IsInvalidAmount},
		{"Bad kind", ledger.PostInput{AccountID: a.ID, Kind: "refund", Amount: 5}, ledger.IsInvalidInput},
		{"Unknown account", ledger.PostInput{AccountID: id.NewAccountID(), Kind: ledger.Debit, Amount: 5}, ledger.IsNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.Post(ctx, tt.input); !tt.check(err) {
				t.Errorf("Post: unexpected error %v", err)
			}
		})
	}

	got, _ := l.GetAccount(ctx, a.ID)
	if !got.CurrentBalance.IsZero() {
		t.Errorf("balance after rejected posts: got %s, want 0", got.CurrentBalance)
	}
}

func TestPostToOwner(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, memory.New())
	o := newOwner(t, l)
	if _, err := l.OpenAccount(ctx, o.ID, 0); err != nil {
		t.Fatalf("OpenAccount: %v", err)
	}

	if _, err := l.PostToOwner(ctx, o.ID, ledger.PostInput{Kind: ledger.Credit, Amount: "50"}); err != nil {
		t.Fatalf("PostToOwner: %v", err)
	}
	a, _ := l.GetAccountByOwner(ctx, o.ID)
	if want := mustDecimal("50"); !a.CurrentBalance.Equal(want) {
		t.Errorf("balance: got %s, want %s", a.CurrentBalance, want)
	}

	if _, err := l.PostToOwner(ctx, id.NewOwnerID(), ledger.PostInput{Kind: ledger.Credit, Amount: "50"}); !ledger.IsNotFound(err) {
		t.Errorf("unknown owner: got %v", err)
	}
}

// failingStore injects a failure into one half of a posting.
type failingStore struct {
	*memory.Store
	failBalance bool
	failPosting bool
}

var errInjected = errors.New("injected failure")

func (s *failingStore) SetAccountBalance(ctx context.Context, accountID id.AccountID, balance decimal.Decimal, at time.Time) error {
	if s.failBalance {
		return errInjected
	}
	return s.Store.SetAccountBalance(ctx, accountID, balance, at)
}

func (s *failingStore) CreatePosting(ctx context.Context, p *account.Posting) error {
	if s.failPosting {
		return errInjected
	}
	return s.Store.CreatePosting(ctx, p)
}

func TestPostAtomicity(t *testing.T) {
	tests := []struct {
		name        string
		failBalance bool
		failPosting bool
	}{
		{"Balance update fails", true, false},
		{"Posting insert fails", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := &failingStore{Store: memory.New()}
			l := newLedger(t, s)
			o := newOwner(t, l)
			a, err := l.OpenAccount(ctx, o.ID, "100")
			if err != nil {
				t.Fatalf("OpenAccount: %v", err)
			}

			s.failBalance, s.failPosting = tt.failBalance, tt.failPosting
			if _, err := l.Post(ctx, ledger.PostInput{AccountID: a.ID, Kind: ledger.Debit, Amount: "40"}); !errors.Is(err, errInjected) {
				t.Fatalf("Post: got %v, want %v", err, errInjected)
			}
			s.failBalance, s.failPosting = false, false

			postings, _ := l.ListPostings(ctx, a.ID, account.ListOpts{})
			if len(postings) != 1 {
				t.Errorf("postings: got %d, want only the opening one", len(postings))
			}
			got, _ := l.GetAccount(ctx, a.ID)
			if want := mustDecimal("100"); !got.CurrentBalance.Equal(want) {
				t.Errorf("balance: got %s, want %s", got.CurrentBalance, want)
			}
		})
	}
}

func TestConcurrentPosts(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, memory.New())

	for range 20 {
		o := newOwner(t, l)
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

		got, _ := l.GetAccount(ctx, a.ID)
		if want := mustDecimal("70"); !got.CurrentBalance.Equal(want) {
			t.Fatalf("balance: got %s, want %s", got.CurrentBalance, want)
		}
	}
}

func TestCloseAccount(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, memory.New())
	o := newOwner(t, l)
	a, _ := l.OpenAccount(ctx, o.ID, "10")

	if err := l.CloseAccount(ctx, a.ID); !ledger.IsConflict(err) || !errors.Is(err, ledger.ErrAccountHasPostings) {
		t.Fatalf("CloseAccount with postings: got %v", err)
	}

	removed, err := l.PurgePostings(ctx, a.ID)
	if err != nil || removed != 1 {
		t.Fatalf("PurgePostings: got %d, %v", removed, err)
	}
	if _, err := l.VerifyBalance(ctx, a.ID); err != nil {
		t.Errorf("VerifyBalance after purge: %v", err)
	}

	if err := l.CloseAccount(ctx, a.ID); err != nil {
		t.Fatalf("CloseAccount: %v", err)
	}
	if _, err := l.GetAccount(ctx, a.ID); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Errorf("GetAccount after close: got %v", err)
	}
	if err := l.CloseAccount(ctx, a.ID); !ledger.IsNotFound(err) {
		t.Errorf("second close: got %v", err)
	}
}

func TestVerifyBalanceDetectsDrift(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	l := newLedger(t, s)
	o := newOwner(t, l)
	a, _ := l.OpenAccount(ctx, o.ID, "10")

	if err := s.SetAccountBalance(ctx, a.ID, mustDecimal("12"), fixedNow); err != nil {
		t.Fatalf("SetAccountBalance: %v", err)
	}

	report, err := l.VerifyBalance(ctx, a.ID)
	if !errors.Is(err, ledger.ErrBalanceDrift) {
		t.Fatalf("VerifyBalance: got %v, want %v", err, ledger.ErrBalanceDrift)
	}
	if want := mustDecimal("2"); !report.Drift().Equal(want) {
		t.Errorf("drift: got %s, want %s", report.Drift(), want)
	}
}

// ──────────────────────────────────────────────────
// Payments
// ──────────────────────────────────────────────────

func auditCount(t *testing.T, l *ledger.Ledger, paymentID id.PaymentID) int {
	t.Helper()
	entries, err := l.AuditTrail(context.Background(), paymentID)
	if err != nil {
		t.Fatalf("AuditTrail: %v", err)
	}
	return len(entries)
}

func TestCreatePayment(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, memory.New())
	due := fixedNow.Add(-20 * 24 * time.Hour)

	p, err := l.CreatePayment(ctx, ledger.CreatePaymentInput{Amount: "1.500,00", Description: "Quota", DueAt: &due})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if p.State != payment.StatePending || !p.Active || !p.IssuedAt.Equal(fixedNow) {
		t.Errorf("defaults: got state=%s active=%v issued=%v", p.State, p.Active, p.IssuedAt)
	}
	if p.AmountFormatted != "1.500,00 AOA" {
		t.Errorf("formatted: got %q", p.AmountFormatted)
	}
	if got := p.Classification.String(); got != "Moderately overdue (20 days)" {
		t.Errorf("classification: got %q", got)
	}

	entries, _ := l.AuditTrail(ctx, p.ID)
	if len(entries) != 1 || entries[0].Action != audit.ActionCreate {
		t.Fatalf("audit: got %+v", entries)
	}

	if _, err := l.CreatePayment(ctx, ledger.CreatePaymentInput{Amount: "0"}); !ledger.IsInvalidAmount(err) {
		t.Errorf("zero amount: got %v", err)
	}
	if _, err := l.CreatePayment(ctx, ledger.CreatePaymentInput{Amount: "1.500,001"}); !ledger.IsInvalidAmount(err) {
		t.Errorf("excess fraction digits: got %v", err)
	}
	if _, err := l.CreatePayment(ctx, ledger.CreatePaymentInput{Amount: 10, State: "refunded"}); !ledger.IsInvalidInput(err) {
		t.Errorf("unknown state: got %v", err)
	}
}

func TestUpdatePaymentAudit(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, memory.New())
	due := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	p, err := l.CreatePayment(ctx, ledger.CreatePaymentInput{Amount: 100, DueAt: &due})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	desc := "Quota"
	updated, err := l.UpdatePayment(ctx, p.ID, payment.Patch{
		Amount:      "150",
		State:       "pago",
		Description: &desc,
		ClearDueAt:  true,
	})
	if err != nil {
		t.Fatalf("UpdatePayment: %v", err)
	}
	if updated.State != payment.StatePaid || updated.DueAt != nil || updated.Classification.Status != payment.StatusPaid {
		t.Errorf("updated: got %+v", updated)
	}

	entries, _ := l.AuditTrail(ctx, p.ID)
	if len(entries) != 2 {
		t.Fatalf("audit entries: got %d, want 2", len(entries))
	}
	want := "Amount: 100,00 → 150,00, State: PENDING → PAID, Description: — → Quota, Due date: 2025-01-10 → —"
	if entries[0].Action != audit.ActionEdit || entries[0].Detail != want {
		t.Errorf("edit entry: got %s %q, want EDIT %q", entries[0].Action, entries[0].Detail, want)
	}

	// Omitted fields are kept, identical values are not a change.
	same := "Quota"
	if _, err := l.UpdatePayment(ctx, p.ID, payment.Patch{Description: &same, Amount: "150,00"}); err != nil {
		t.Fatalf("no-op UpdatePayment: %v", err)
	}
	if got := auditCount(t, l, p.ID); got != 2 {
		t.Errorf("audit after no-op: got %d, want 2", got)
	}

	// Associations change without an audit entry.
	unit := id.NewUnitID()
	moved, err := l.UpdatePayment(ctx, p.ID, payment.Patch{UnitID: &unit})
	if err != nil {
		t.Fatalf("UpdatePayment unit: %v", err)
	}
	if moved.UnitID != unit || !moved.Amount.Equal(mustDecimal("150")) {
		t.Errorf("moved: got unit %s amount %s", moved.UnitID, moved.Amount)
	}
	if got := auditCount(t, l, p.ID); got != 2 {
		t.Errorf("audit after association change: got %d, want 2", got)
	}

	if _, err := l.UpdatePayment(ctx, id.NewPaymentID(), payment.Patch{State: "PAID"}); !errors.Is(err, ledger.ErrPaymentNotFound) {
		t.Errorf("unknown payment: got %v", err)
	}
}

func TestDeactivatePayment(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, memory.New())
	user := id.NewUserID()

	p, _ := l.CreatePayment(ctx, ledger.CreatePaymentInput{Amount: 10, ActingUserID: user})
	keep, _ := l.CreatePayment(ctx, ledger.CreatePaymentInput{Amount: 20})

	got, err := l.DeactivatePayment(ctx, p.ID, user)
	if err != nil {
		t.Fatalf("DeactivatePayment: %v", err)
	}
	if got.Active {
		t.Error("payment still active")
	}

	active, _ := l.ListPayments(ctx, payment.Filter{Active: payment.Bool(true)}, payment.Page{})
	if active.TotalCount != 1 || active.Items[0].ID != keep.ID {
		t.Errorf("active list: got %d items", active.TotalCount)
	}
	inactive, _ := l.ListDeactivated(ctx, payment.Page{})
	if inactive.TotalCount != 1 || inactive.Items[0].ID != p.ID {
		t.Errorf("deactivated list: got %d items", inactive.TotalCount)
	}

	entries, _ := l.AuditTrail(ctx, p.ID)
	if len(entries) != 2 || entries[0].Action != audit.ActionDeactivate || entries[0].ActingUserID != user {
		t.Fatalf("audit: got %+v", entries)
	}

	// Deactivating again is still audited.
	again, err := l.DeactivatePayment(ctx, p.ID, user)
	if err != nil {
		t.Fatalf("second DeactivatePayment: %v", err)
	}
	if again.Active {
		t.Error("second DeactivatePayment: payment active")
	}
	entries, _ = l.AuditTrail(ctx, p.ID)
	if len(entries) != 3 {
		t.Fatalf("audit after repeat: got %d, want 3", len(entries))
	}
	details := map[string]bool{}
	for _, e := range entries[:2] {
		if e.Action != audit.ActionDeactivate {
			t.Errorf("audit after repeat: got %s, want %s", e.Action, audit.ActionDeactivate)
		}
		details[e.Detail] = true
	}
	if !details["Active: false → false"] {
		t.Errorf("audit after repeat: no entry for the inactive payment, got %v", details)
	}
}

func TestPurgePaymentKeepsAudit(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, memory.New())
	p, _ := l.CreatePayment(ctx, ledger.CreatePaymentInput{Amount: 10})

	if err := l.PurgePayment(ctx, p.ID); err != nil {
		t.Fatalf("PurgePayment: %v", err)
	}
	if _, err := l.GetPayment(ctx, p.ID); !errors.Is(err, ledger.ErrPaymentNotFound) {
		t.Errorf("GetPayment after purge: got %v", err)
	}
	if got := auditCount(t, l, p.ID); got != 1 {
		t.Errorf("audit after purge: got %d, want 1", got)
	}
	if _, err := l.AuditTrail(ctx, id.NewPaymentID()); !errors.Is(err, ledger.ErrPaymentNotFound) {
		t.Errorf("AuditTrail unknown: got %v", err)
	}
}

func TestListPaymentsPagination(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, memory.New())

	all := make(map[id.PaymentID]bool)
	for i := range 45 {
		issued := fixedNow.Add(-time.Duration(i%7) * time.Hour)
		p, err := l.CreatePayment(ctx, ledger.CreatePaymentInput{Amount: i + 1, IssuedAt: &issued})
		if err != nil {
			t.Fatalf("CreatePayment: %v", err)
		}
		all[p.ID] = true
	}
	inactive, _ := l.CreatePayment(ctx, ledger.CreatePaymentInput{Amount: 1})
	_, _ = l.DeactivatePayment(ctx, inactive.ID, id.Nil)

	seen := make(map[id.PaymentID]bool)
	filter := payment.Filter{Active: payment.Bool(true)}
	var last time.Time
	for page := 1; page <= 3; page++ {
		res, err := l.ListPayments(ctx, filter, payment.Page{Number: page, Size: 20})
		if err != nil {
			t.Fatalf("ListPayments page %d: %v", page, err)
		}
		if res.TotalCount != 45 || res.TotalPages != 3 {
			t.Fatalf("page %d: got total %d pages %d, want 45 and 3", page, res.TotalCount, res.TotalPages)
		}
		for _, p := range res.Items {
			if seen[p.ID] {
				t.Errorf("duplicate %s on page %d", p.ID, page)
			}
			if !last.IsZero() && p.IssuedAt.After(last) {
				t.Errorf("page %d not ordered by issue date", page)
			}
			last = p.IssuedAt
			seen[p.ID] = true
		}
	}
	if len(seen) != len(all) {
		t.Errorf("union of pages: got %d, want %d", len(seen), len(all))
	}
	for pid := range all {
		if !seen[pid] {
			t.Errorf("payment %s missing from pages", pid)
		}
	}
}

func TestListPaymentsPageDefaults(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, memory.New(), ledger.WithDefaultPageSize(5))
	for i := range 7 {
		_, _ = l.CreatePayment(ctx, ledger.CreatePaymentInput{Amount: i + 1, State: "paid"})
	}

	res, err := l.ListPayments(ctx, payment.Filter{State: "PAGO"}, payment.Page{Number: -1})
	if err != nil {
		t.Fatalf("ListPayments: %v", err)
	}
	if res.Page != 1 || res.PageSize != 5 || len(res.Items) != 5 || res.TotalPages != 2 {
		t.Errorf("defaults: got page %d size %d items %d pages %d", res.Page, res.PageSize, len(res.Items), res.TotalPages)
	}

	res, _ = l.ListPayments(ctx, payment.Filter{}, payment.Page{Size: 10_000})
	if res.PageSize != ledger.MaxPageSize {
		t.Errorf("page size cap: got %d, want %d", res.PageSize, ledger.MaxPageSize)
	}
}

func TestTotalPaidAndOverdue(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, memory.New())
	o := newOwner(t, l)
	day := 24 * time.Hour
	dueLong := fixedNow.Add(-40 * day)
	dueShort := fixedNow.Add(-2 * day)
	dueLater := fixedNow.Add(5 * day)

	inputs := []ledger.CreatePaymentInput{
		{Amount: "100", State: "PAID", OwnerID: o.ID},
		{Amount: "50,50", State: "PAID", OwnerID: o.ID},
		{Amount: "70", OwnerID: o.ID, DueAt: &dueShort},
		{Amount: "80", OwnerID: o.ID, DueAt: &dueLong},
		{Amount: "90", OwnerID: o.ID, DueAt: &dueLater},
		{Amount: "999", State: "PAID"},
	}
	var ids []id.PaymentID
	for _, in := range inputs {
		p, err := l.CreatePayment(ctx, in)
		if err != nil {
			t.Fatalf("CreatePayment: %v", err)
		}
		ids = append(ids, p.ID)
	}
	_, _ = l.DeactivatePayment(ctx, ids[1], id.Nil)

	total, err := l.TotalPaid(ctx, o.ID)
	if err != nil {
		t.Fatalf("TotalPaid: %v", err)
	}
	if want := mustDecimal("100"); !total.Equal(want) {
		t.Errorf("TotalPaid: got %s, want %s", total, want)
	}

	overdue, err := l.Overdue(ctx, payment.Filter{OwnerID: o.ID})
	if err != nil {
		t.Fatalf("Overdue: %v", err)
	}
	if len(overdue) != 2 || overdue[0].ID != ids[3] || overdue[1].ID != ids[2] {
		t.Fatalf("Overdue: got %d payments", len(overdue))
	}
	if got := overdue[0].Classification.String(); got != "Severely overdue (40 days)" {
		t.Errorf("worst label: got %q", got)
	}
}

func TestCustomStates(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, memory.New(), ledger.WithStates("PARTIAL"))

	p, err := l.CreatePayment(ctx, ledger.CreatePaymentInput{Amount: 10, State: "partial"})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if p.State != "PARTIAL" {
		t.Errorf("state: got %q, want PARTIAL", p.State)
	}
}

func TestAmountPrecisionFollowsLocale(t *testing.T) {
	ctx := context.Background()
	loc := types.DefaultLocale()
	loc.FractionDigits = 0
	l := newLedger(t, memory.New(), ledger.WithLocale(loc))

	tests := []struct {
		name    string
		amount  any
		wantErr bool
	}{
		{"Whole", "1.500", false},
		{"Trailing zero fraction", "1.500,0", false},
		{"Fraction", "1.500,5", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.CreatePayment(ctx, ledger.CreatePaymentInput{Amount: tt.amount})
			if got := ledger.IsInvalidAmount(err); got != tt.wantErr {
				t.Errorf("CreatePayment(%v): got error %v, wantErr %v", tt.amount, err, tt.wantErr)
			}
		})
	}
}
