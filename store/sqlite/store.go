// Package sqlite implements store.Store on an embedded SQLite database
// through the grove sqlitedriver and the pure-Go modernc.org/sqlite driver.
//
// The store holds a single connection and begins every transaction with
// BEGIN IMMEDIATE, so writers are serialized and ForUpdate reads need no
// extra locking.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate"
	"github.com/xraph/grove/migrate"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

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

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db *grove.DB
	sq *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM. Foreign keys must be
// enabled and the pool limited to one connection; Open does both. It panics
// when db is not a sqlitedriver database.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		sq: sqlitedriver.Unwrap(db),
	}
}

// Open opens (creating if needed) the database file at path. Use
// ":memory:" for a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	sq := sqlitedriver.New()
	if err := sq.Open(ctx, dsn(path), driver.WithPoolSize(1)); err != nil {
		return nil, fmt.Errorf("condoledger/sqlite: open %s: %w", path, err)
	}
	db, err := grove.Open(sq)
	if err != nil {
		_ = sq.Close()
		return nil, fmt.Errorf("condoledger/sqlite: open %s: %w", path, err)
	}
	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("condoledger/sqlite: ping: %w", err)
	}
	return New(db), nil
}

func dsn(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sq)
	if err != nil {
		return fmt.Errorf("condoledger/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("condoledger/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Transactions ====================

type txKey struct{}

type querier interface {
	NewSelect(model ...any) *sqlitedriver.SelectQuery
	NewInsert(model any) *sqlitedriver.InsertQuery
	NewUpdate(model any) *sqlitedriver.UpdateQuery
	NewDelete(model any) *sqlitedriver.DeleteQuery
	NewRaw(query string, args ...any) *sqlitedriver.RawQuery
}

func (s *Store) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sqlitedriver.SqliteTx); ok {
		return tx
	}
	return s.sq
}

// RunInTx runs fn in a transaction carried by its context. Nested calls
// join the outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sqlitedriver.SqliteTx); ok {
		return fn(ctx)
	}

	tx, err := s.sq.BeginTxQuery(ctx, nil)
	if err != nil {
		return ledger.StorageError("begin", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return ledger.StorageError("commit", err)
	}
	return nil
}

// ==================== Owner Store ====================

func (s *Store) CreateOwner(ctx context.Context, o *owner.Owner) error {
	m, err := toOwnerModel(o)
	if err != nil {
		return err
	}
	_, err = s.q(ctx).NewInsert(m).Exec(ctx)
	return mapErr("create owner", err)
}

func (s *Store) GetOwner(ctx context.Context, ownerID id.OwnerID) (*owner.Owner, error) {
	m := new(ownerModel)
	err := s.q(ctx).NewSelect(m).Where("id = ?", ownerID.String()).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrOwnerNotFound
	}
	if err != nil {
		return nil, mapErr("get owner", err)
	}
	return fromOwnerModel(m)
}

func (s *Store) ListOwners(ctx context.Context, opts owner.ListOpts) ([]*owner.Owner, error) {
	var models []ownerModel
	q := page(s.q(ctx).NewSelect(&models).OrderExpr("name ASC, id ASC"), opts.Limit, opts.Offset)
	if err := q.Scan(ctx); err != nil {
		return nil, mapErr("list owners", err)
	}
	return convert(models, fromOwnerModel)
}

func (s *Store) UpdateOwner(ctx context.Context, o *owner.Owner) error {
	m, err := toOwnerModel(o)
	if err != nil {
		return err
	}
	res, err := s.q(ctx).NewUpdate(m).WherePK().Exec(ctx)
	return affected(res, err, "update owner", ledger.ErrOwnerNotFound)
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	_, err := s.q(ctx).NewInsert(toAccountModel(a)).Exec(ctx)
	switch errorCode(err) {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return ledger.ErrAccountExists
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return ledger.ErrOwnerNotFound
	}
	return mapErr("create account", err)
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	return s.getAccount(ctx, "id = ?", accountID.String())
}

// GetAccountForUpdate is a plain read: the enclosing BEGIN IMMEDIATE
// transaction already holds the database write lock.
func (s *Store) GetAccountForUpdate(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	return s.GetAccount(ctx, accountID)
}

func (s *Store) GetAccountByOwner(ctx context.Context, ownerID id.OwnerID) (*account.Account, error) {
	return s.getAccount(ctx, "owner_id = ?", ownerID.String())
}

func (s *Store) getAccount(ctx context.Context, where, arg string) (*account.Account, error) {
	m := new(accountModel)
	err := s.q(ctx).NewSelect(m).Where(where, arg).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrAccountNotFound
	}
	if err != nil {
		return nil, mapErr("get account", err)
	}
	return fromAccountModel(m)
}

func (s *Store) ListAccountsByOwner(ctx context.Context, ownerID id.OwnerID) ([]*account.Account, error) {
	var models []accountModel
	err := s.q(ctx).NewSelect(&models).
		Where("owner_id = ?", ownerID.String()).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapErr("list accounts", err)
	}
	return convert(models, fromAccountModel)
}

func (s *Store) SetAccountBalance(ctx context.Context, accountID id.AccountID, balance decimal.Decimal, updatedAt time.Time) error {
	res, err := s.q(ctx).NewUpdate((*accountModel)(nil)).
		Set("current_balance = ?", balance.String()).
		Set("updated_at = ?", formatTime(updatedAt)).
		Where("id = ?", accountID.String()).
		Exec(ctx)
	return affected(res, err, "set account balance", ledger.ErrAccountNotFound)
}

func (s *Store) DeleteAccount(ctx context.Context, accountID id.AccountID) error {
	res, err := s.q(ctx).NewDelete((*accountModel)(nil)).Where("id = ?", accountID.String()).Exec(ctx)
	if errorCode(err) == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
		return ledger.ErrAccountHasPostings
	}
	return affected(res, err, "delete account", ledger.ErrAccountNotFound)
}

func (s *Store) CreatePosting(ctx context.Context, p *account.Posting) error {
	_, err := s.q(ctx).NewInsert(toPostingModel(p)).Exec(ctx)
	if errorCode(err) == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
		return ledger.ErrAccountNotFound
	}
	return mapErr("create posting", err)
}

func (s *Store) ListPostings(ctx context.Context, accountID id.AccountID, opts account.ListOpts) ([]*account.Posting, error) {
	var models []postingModel
	q := s.q(ctx).NewSelect(&models).
		Where("account_id = ?", accountID.String()).
		OrderExpr("occurred_at ASC, created_at ASC, id ASC")
	if err := page(q, opts.Limit, opts.Offset).Scan(ctx); err != nil {
		return nil, mapErr("list postings", err)
	}
	return convert(models, fromPostingModel)
}

func (s *Store) CountPostings(ctx context.Context, accountID id.AccountID) (int64, error) {
	n, err := s.q(ctx).NewSelect((*postingModel)(nil)).Where("account_id = ?", accountID.String()).Count(ctx)
	return n, mapErr("count postings", err)
}

func (s *Store) DeletePostings(ctx context.Context, accountID id.AccountID) (int64, error) {
	res, err := s.q(ctx).NewDelete((*postingModel)(nil)).Where("account_id = ?", accountID.String()).Exec(ctx)
	if err != nil {
		return 0, mapErr("delete postings", err)
	}
	n, err := res.RowsAffected()
	return n, mapErr("delete postings", err)
}

// ==================== Payment Store ====================

func (s *Store) CreatePayment(ctx context.Context, p *payment.Payment) error {
	_, err := s.q(ctx).NewInsert(toPaymentModel(p)).Exec(ctx)
	return mapErr("create payment", err)
}

func (s *Store) GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	m := new(paymentModel)
	err := s.q(ctx).NewSelect(m).Where("id = ?", paymentID.String()).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrPaymentNotFound
	}
	if err != nil {
		return nil, mapErr("get payment", err)
	}
	return fromPaymentModel(m)
}

// GetPaymentForUpdate is a plain read, as GetAccountForUpdate.
func (s *Store) GetPaymentForUpdate(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	return s.GetPayment(ctx, paymentID)
}

func (s *Store) UpdatePayment(ctx context.Context, p *payment.Payment) error {
	res, err := s.q(ctx).NewUpdate(toPaymentModel(p)).WherePK().Exec(ctx)
	return affected(res, err, "update payment", ledger.ErrPaymentNotFound)
}

func (s *Store) DeletePayment(ctx context.Context, paymentID id.PaymentID) error {
	res, err := s.q(ctx).NewDelete((*paymentModel)(nil)).Where("id = ?", paymentID.String()).Exec(ctx)
	return affected(res, err, "delete payment", ledger.ErrPaymentNotFound)
}

func (s *Store) ListPayments(ctx context.Context, f payment.Filter, opts payment.ListOpts) ([]*payment.Payment, error) {
	var models []paymentModel
	q := wherePayments(s.q(ctx).NewSelect(&models), f).OrderExpr("issued_at DESC, id DESC")
	if err := page(q, opts.Limit, opts.Offset).Scan(ctx); err != nil {
		return nil, mapErr("list payments", err)
	}
	return convert(models, fromPaymentModel)
}

func (s *Store) CountPayments(ctx context.Context, f payment.Filter) (int64, error) {
	n, err := wherePayments(s.q(ctx).NewSelect((*paymentModel)(nil)), f).Count(ctx)
	return n, mapErr("count payments", err)
}

// SumPayments adds the amounts in Go; SQLite's SUM would go through
// floating point.
func (s *Store) SumPayments(ctx context.Context, f payment.Filter) (decimal.Decimal, error) {
	var models []paymentModel
	if err := wherePayments(s.q(ctx).NewSelect(&models), f).Scan(ctx); err != nil {
		return decimal.Zero, mapErr("sum payments", err)
	}
	total := decimal.Zero
	for i := range models {
		total = total.Add(models[i].Amount)
	}
	return total, nil
}

func wherePayments(q *sqlitedriver.SelectQuery, f payment.Filter) *sqlitedriver.SelectQuery {
	where, args := paymentWhere(f)
	if where == "" {
		return q
	}
	return q.Where(where, args...)
}

func paymentWhere(f payment.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Active != nil {
		conds = append(conds, "active = ?")
		args = append(args, *f.Active)
	}
	if f.State != "" {
		conds = append(conds, "state = ?")
		args = append(args, string(f.State))
	}
	if !f.OwnerID.IsNil() {
		conds = append(conds, "owner_id = ?")
		args = append(args, f.OwnerID.String())
	}
	if !f.UnitID.IsNil() {
		conds = append(conds, "unit_id = ?")
		args = append(args, f.UnitID.String())
	}
	return strings.Join(conds, " AND "), args
}

// ==================== Audit Store ====================

func (s *Store) AppendAudit(ctx context.Context, e *audit.Entry) error {
	_, err := s.q(ctx).NewInsert(toAuditModel(e)).Exec(ctx)
	return mapErr("append audit", err)
}

func (s *Store) ListAudit(ctx context.Context, paymentID id.PaymentID) ([]*audit.Entry, error) {
	var models []auditModel
	err := s.q(ctx).NewSelect(&models).
		Where("payment_id = ?", paymentID.String()).
		OrderExpr("recorded_at DESC, id DESC").
		Scan(ctx)
	if err != nil {
		return nil, mapErr("list audit", err)
	}
	return convert(models, fromAuditModel)
}

// ==================== Helpers ====================

// page applies limit and offset. SQLite rejects an OFFSET without a LIMIT,
// so an offset alone gets an unbounded limit.
func page(q *sqlitedriver.SelectQuery, limit, offset int) *sqlitedriver.SelectQuery {
	if offset > 0 && limit <= 0 {
		limit = math.MaxInt32
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	return q
}

// affected turns a zero-row write into notFound.
func affected(res driver.Result, err error, op string, notFound error) error {
	if err != nil {
		return mapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(op, err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func errorCode(err error) int {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()
	}
	return 0
}

// mapErr wraps driver failures as storage failures. Primary key and unique
// violations surface as conflicts.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch errorCode(err) {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return fmt.Errorf("%w: %s: %w", ledger.ErrConflict, op, err)
	}
	return ledger.StorageError(op, err)
}
