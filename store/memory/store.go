// Package memory provides an in-process store.Store for tests and small
// deployments. A transaction holds the store-wide write lock and keeps an
// undo journal that is replayed when the transaction fails.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	ledger "github.com/xraph/condoledger"
	"github.com/xraph/condoledger/account"
	"github.com/xraph/condoledger/audit"
	"github.com/xraph/condoledger/id"
	"github.com/xraph/condoledger/owner"
	"github.com/xraph/condoledger/payment"
	ledgerstore "github.com/xraph/condoledger/store"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex
	closed bool

	owners   map[string]*owner.Owner
	accounts map[string]*account.Account
	postings map[string][]*account.Posting // by account, insertion order
	payments map[string]*payment.Payment
	audit    map[string][]*audit.Entry // by payment
}

func New() *Store {
	return &Store{
		owners:   make(map[string]*owner.Owner),
		accounts: make(map[string]*account.Account),
		postings: make(map[string][]*account.Posting),
		payments: make(map[string]*payment.Payment),
		audit:    make(map[string][]*audit.Entry),
	}
}

// ==================== Transactions ====================

type txKey struct{}

type memTx struct {
	store *Store
	undo  []func()
}

func (s *Store) txFrom(ctx context.Context) *memTx {
	if t, ok := ctx.Value(txKey{}).(*memTx); ok && t.store == s {
		return t
	}
	return nil
}

// RunInTx runs fn holding the write lock. On error or panic every change
// made through the transaction's context is undone in reverse order.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.txFrom(ctx) != nil {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ledger.ErrStoreClosed
	}

	t := &memTx{store: s}
	defer func() {
		if p := recover(); p != nil {
			t.rollback()
			panic(p)
		}
		if err != nil {
			t.rollback()
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, t))
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// write locks for a single mutation unless ctx carries a transaction, and
// returns the matching unlock plus a function that journals an undo step.
func (s *Store) write(ctx context.Context) (unlock func(), onUndo func(func())) {
	if t := s.txFrom(ctx); t != nil {
		return func() {}, func(u func()) { t.undo = append(t.undo, u) }
	}
	s.mu.Lock()
	return s.mu.Unlock, func(func()) {}
}

func (s *Store) read(ctx context.Context) (unlock func()) {
	if s.txFrom(ctx) != nil {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

// Migrate is a no-op; the maps are ready on construction.
func (s *Store) Migrate(context.Context) error { return nil }

func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ledger.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ==================== Owner Store ====================

func (s *Store) CreateOwner(ctx context.Context, o *owner.Owner) error {
	unlock, onUndo := s.write(ctx)
	defer unlock()

	key := o.ID.String()
	if _, exists := s.owners[key]; exists {
		return fmt.Errorf("%w: owner %s already exists", ledger.ErrConflict, key)
	}
	s.owners[key] = cloneOwner(o)
	onUndo(func() { delete(s.owners, key) })
	return nil
}

func (s *Store) GetOwner(ctx context.Context, ownerID id.OwnerID) (*owner.Owner, error) {
	defer s.read(ctx)()

	if o, ok := s.owners[ownerID.String()]; ok {
		return cloneOwner(o), nil
	}
	return nil, ledger.ErrOwnerNotFound
}

func (s *Store) ListOwners(ctx context.Context, opts owner.ListOpts) ([]*owner.Owner, error) {
	defer s.read(ctx)()

	result := make([]*owner.Owner, 0, len(s.owners))
	for _, o := range s.owners {
		result = append(result, cloneOwner(o))
	}
	slices.SortFunc(result, func(a, b *owner.Owner) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return paginate(result, opts.Limit, opts.Offset), nil
}

func (s *Store) UpdateOwner(ctx context.Context, o *owner.Owner) error {
	unlock, onUndo := s.write(ctx)
	defer unlock()

	key := o.ID.String()
	prev, exists := s.owners[key]
	if !exists {
		return ledger.ErrOwnerNotFound
	}
	s.owners[key] = cloneOwner(o)
	onUndo(func() { s.owners[key] = prev })
	return nil
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	unlock, onUndo := s.write(ctx)
	defer unlock()

	key := a.ID.String()
	if _, exists := s.accounts[key]; exists {
		return fmt.Errorf("%w: account %s already exists", ledger.ErrConflict, key)
	}
	for _, existing := range s.accounts {
		if existing.OwnerID == a.OwnerID {
			return ledger.ErrAccountExists
		}
	}
	s.accounts[key] = cloneAccount(a)
	onUndo(func() { delete(s.accounts, key) })
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	defer s.read(ctx)()

	if a, ok := s.accounts[accountID.String()]; ok {
		return cloneAccount(a), nil
	}
	return nil, ledger.ErrAccountNotFound
}

// GetAccountForUpdate needs no extra locking: transactions already hold
// the store-wide write lock.
func (s *Store) GetAccountForUpdate(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	return s.GetAccount(ctx, accountID)
}

func (s *Store) GetAccountByOwner(ctx context.Context, ownerID id.OwnerID) (*account.Account, error) {
	defer s.read(ctx)()

	for _, a := range s.accounts {
		if a.OwnerID == ownerID {
			return cloneAccount(a), nil
		}
	}
	return nil, ledger.ErrAccountNotFound
}

func (s *Store) ListAccountsByOwner(ctx context.Context, ownerID id.OwnerID) ([]*account.Account, error) {
	defer s.read(ctx)()

	result := make([]*account.Account, 0, 1)
	for _, a := range s.accounts {
		if a.OwnerID == ownerID {
			result = append(result, cloneAccount(a))
		}
	}
	slices.SortFunc(result, func(a, b *account.Account) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return result, nil
}

func (s *Store) SetAccountBalance(ctx context.Context, accountID id.AccountID, balance decimal.Decimal, updatedAt time.Time) error {
	unlock, onUndo := s.write(ctx)
	defer unlock()

	a, ok := s.accounts[accountID.String()]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	prevBalance, prevUpdated := a.CurrentBalance, a.UpdatedAt
	a.CurrentBalance = balance
	a.UpdatedAt = updatedAt.UTC()
	onUndo(func() {
		a.CurrentBalance = prevBalance
		a.UpdatedAt = prevUpdated
	})
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, accountID id.AccountID) error {
	unlock, onUndo := s.write(ctx)
	defer unlock()

	key := accountID.String()
	prev, ok := s.accounts[key]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	delete(s.accounts, key)
	onUndo(func() { s.accounts[key] = prev })
	return nil
}

func (s *Store) CreatePosting(ctx context.Context, p *account.Posting) error {
	unlock, onUndo := s.write(ctx)
	defer unlock()

	key := p.AccountID.String()
	if _, ok := s.accounts[key]; !ok {
		return ledger.ErrAccountNotFound
	}
	prev := s.postings[key]
	c := *p
	s.postings[key] = append(slices.Clip(prev), &c)
	onUndo(func() { s.postings[key] = prev })
	return nil
}

func (s *Store) ListPostings(ctx context.Context, accountID id.AccountID, opts account.ListOpts) ([]*account.Posting, error) {
	defer s.read(ctx)()

	stored := s.postings[accountID.String()]
	result := make([]*account.Posting, 0, len(stored))
	for _, p := range stored {
		c := *p
		result = append(result, &c)
	}
	slices.SortStableFunc(result, func(a, b *account.Posting) int {
		return a.OccurredAt.Compare(b.OccurredAt)
	})
	return paginate(result, opts.Limit, opts.Offset), nil
}

func (s *Store) CountPostings(ctx context.Context, accountID id.AccountID) (int64, error) {
	defer s.read(ctx)()
	return int64(len(s.postings[accountID.String()])), nil
}

func (s *Store) DeletePostings(ctx context.Context, accountID id.AccountID) (int64, error) {
	unlock, onUndo := s.write(ctx)
	defer unlock()

	key := accountID.String()
	prev, ok := s.postings[key]
	if !ok {
		return 0, nil
	}
	delete(s.postings, key)
	onUndo(func() { s.postings[key] = prev })
	return int64(len(prev)), nil
}

// ==================== Payment Store ====================

func (s *Store) CreatePayment(ctx context.Context, p *payment.Payment) error {
	unlock, onUndo := s.write(ctx)
	defer unlock()

	key := p.ID.String()
	if _, exists := s.payments[key]; exists {
		return fmt.Errorf("%w: payment %s already exists", ledger.ErrConflict, key)
	}
	s.payments[key] = storedPayment(p)
	onUndo(func() { delete(s.payments, key) })
	return nil
}

func (s *Store) GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	defer s.read(ctx)()

	if p, ok := s.payments[paymentID.String()]; ok {
		return p.Clone(), nil
	}
	return nil, ledger.ErrPaymentNotFound
}

func (s *Store) GetPaymentForUpdate(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	return s.GetPayment(ctx, paymentID)
}

func (s *Store) UpdatePayment(ctx context.Context, p *payment.Payment) error {
	unlock, onUndo := s.write(ctx)
	defer unlock()

	key := p.ID.String()
	prev, ok := s.payments[key]
	if !ok {
		return ledger.ErrPaymentNotFound
	}
	s.payments[key] = storedPayment(p)
	onUndo(func() { s.payments[key] = prev })
	return nil
}

func (s *Store) DeletePayment(ctx context.Context, paymentID id.PaymentID) error {
	unlock, onUndo := s.write(ctx)
	defer unlock()

	key := paymentID.String()
	prev, ok := s.payments[key]
	if !ok {
		return ledger.ErrPaymentNotFound
	}
	delete(s.payments, key)
	onUndo(func() { s.payments[key] = prev })
	return nil
}

func (s *Store) ListPayments(ctx context.Context, f payment.Filter, opts payment.ListOpts) ([]*payment.Payment, error) {
	defer s.read(ctx)()

	result := make([]*payment.Payment, 0)
	for _, p := range s.payments {
		if f.Matches(p) {
			result = append(result, p.Clone())
		}
	}
	slices.SortFunc(result, func(a, b *payment.Payment) int {
		if c := b.IssuedAt.Compare(a.IssuedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID.String(), a.ID.String())
	})
	return paginate(result, opts.Limit, opts.Offset), nil
}

func (s *Store) CountPayments(ctx context.Context, f payment.Filter) (int64, error) {
	defer s.read(ctx)()

	var n int64
	for _, p := range s.payments {
		if f.Matches(p) {
			n++
		}
	}
	return n, nil
}

func (s *Store) SumPayments(ctx context.Context, f payment.Filter) (decimal.Decimal, error) {
	defer s.read(ctx)()

	total := decimal.Zero
	for _, p := range s.payments {
		if f.Matches(p) {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}

// ==================== Audit Store ====================

func (s *Store) AppendAudit(ctx context.Context, e *audit.Entry) error {
	unlock, onUndo := s.write(ctx)
	defer unlock()

	key := e.PaymentID.String()
	prev := s.audit[key]
	c := *e
	s.audit[key] = append(slices.Clip(prev), &c)
	onUndo(func() {
		if len(prev) == 0 {
			delete(s.audit, key)
			return
		}
		s.audit[key] = prev
	})
	return nil
}

func (s *Store) ListAudit(ctx context.Context, paymentID id.PaymentID) ([]*audit.Entry, error) {
	defer s.read(ctx)()

	stored := s.audit[paymentID.String()]
	result := make([]*audit.Entry, 0, len(stored))
	for _, e := range stored {
		c := *e
		result = append(result, &c)
	}
	slices.SortFunc(result, func(a, b *audit.Entry) int {
		if c := b.RecordedAt.Compare(a.RecordedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID.String(), a.ID.String())
	})
	return result, nil
}

// ==================== Helpers ====================

func paginate[T any](items []T, limit, offset int) []T {
	start := min(max(offset, 0), len(items))
	end := len(items)
	if limit > 0 {
		end = min(start+limit, len(items))
	}
	return items[start:end]
}

func cloneOwner(o *owner.Owner) *owner.Owner {
	c := *o
	c.Metadata = maps.Clone(o.Metadata)
	return &c
}

func cloneAccount(a *account.Account) *account.Account {
	c := *a
	c.InitialBalanceFormatted = ""
	c.CurrentBalanceFormatted = ""
	return &c
}

// storedPayment copies p without its derived display fields.
func storedPayment(p *payment.Payment) *payment.Payment {
	c := p.Clone()
	c.Classification = payment.Label{}
	c.AmountFormatted = ""
	return c
}
