// Package postgres implements store.Store on PostgreSQL through the grove
// pgdriver. Every transaction carries its *pgdriver.PgTx in the context,
// and ForUpdate reads take row locks with SELECT ... FOR UPDATE.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/pgdriver"
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate"
	"github.com/xraph/grove/migrate"

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

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM. It panics when db
// is not a pgdriver database.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// Open connects to dsn with at most poolSize connections (0 keeps the pgx
// default) and pings the server.
func Open(ctx context.Context, dsn string, poolSize int) (*Store, error) {
	pgdb := pgdriver.New()
	if err := pgdb.Open(ctx, dsn, driver.WithPoolSize(poolSize)); err != nil {
		return nil, fmt.Errorf("condoledger/postgres: open: %w", err)
	}
	db, err := grove.Open(pgdb)
	if err != nil {
		_ = pgdb.Close()
		return nil, fmt.Errorf("condoledger/postgres: open: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("condoledger/postgres: ping: %w", err)
	}
	return New(db), nil
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("condoledger/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("condoledger/postgres: migration failed: %w", err)
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

// querier is the query-builder surface shared by *pgdriver.PgDB and
// *pgdriver.PgTx.
type querier interface {
	NewSelect(model ...any) *pgdriver.SelectQuery
	NewInsert(model any) *pgdriver.InsertQuery
	NewUpdate(model any) *pgdriver.UpdateQuery
	NewDelete(model any) *pgdriver.DeleteQuery
	NewRaw(query string, args ...any) *pgdriver.RawQuery
}

func (s *Store) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*pgdriver.PgTx); ok {
		return tx
	}
	return s.pg
}

// RunInTx runs fn in a READ COMMITTED transaction. Nested calls join the
// outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*pgdriver.PgTx); ok {
		return fn(ctx)
	}

	tx, err := s.pg.BeginTxQuery(ctx, &driver.TxOptions{IsolationLevel: driver.LevelReadCommitted})
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
	_, err := s.q(ctx).NewInsert(toOwnerModel(o)).Exec(ctx)
	return mapErr("create owner", err)
}

func (s *Store) GetOwner(ctx context.Context, ownerID id.OwnerID) (*owner.Owner, error) {
	m := new(ownerModel)
	err := s.q(ctx).NewSelect(m).
		Where("id = $1", ownerID.String()).
		Scan(ctx)
	if isNoRows(err) {
		return nil, ledger.ErrOwnerNotFound
	}
	if err != nil {
		return nil, mapErr("get owner", err)
	}
	return fromOwnerModel(m)
}

func (s *Store) ListOwners(ctx context.Context, opts owner.ListOpts) ([]*owner.Owner, error) {
	var models []ownerModel
	q := s.q(ctx).NewSelect(&models).OrderExpr("name ASC, id ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, mapErr("list owners", err)
	}
	return convert(models, fromOwnerModel)
}

func (s *Store) UpdateOwner(ctx context.Context, o *owner.Owner) error {
	res, err := s.q(ctx).NewUpdate(toOwnerModel(o)).WherePK().Exec(ctx)
	return affected(res, err, "update owner", ledger.ErrOwnerNotFound)
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	_, err := s.q(ctx).NewInsert(toAccountModel(a)).Exec(ctx)
	switch {
	case isUniqueViolation(err):
		return ledger.ErrAccountExists
	case isForeignKeyViolation(err):
		return ledger.ErrOwnerNotFound
	}
	return mapErr("create account", err)
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	m := new(accountModel)
	return s.getAccount(ctx, s.q(ctx).NewSelect(m).Where("id = $1", accountID.String()), m)
}

func (s *Store) GetAccountForUpdate(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	m := new(accountModel)
	return s.getAccount(ctx, s.q(ctx).NewSelect(m).Where("id = $1", accountID.String()).ForUpdate(), m)
}

func (s *Store) GetAccountByOwner(ctx context.Context, ownerID id.OwnerID) (*account.Account, error) {
	m := new(accountModel)
	return s.getAccount(ctx, s.q(ctx).NewSelect(m).Where("owner_id = $1", ownerID.String()), m)
}

func (s *Store) getAccount(ctx context.Context, q *pgdriver.SelectQuery, m *accountModel) (*account.Account, error) {
	if err := q.Scan(ctx); err != nil {
		if isNoRows(err) {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, mapErr("get account", err)
	}
	return fromAccountModel(m)
}

func (s *Store) ListAccountsByOwner(ctx context.Context, ownerID id.OwnerID) ([]*account.Account, error) {
	var models []accountModel
	err := s.q(ctx).NewSelect(&models).
		Where("owner_id = $1", ownerID.String()).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapErr("list accounts", err)
	}
	return convert(models, fromAccountModel)
}

func (s *Store) SetAccountBalance(ctx context.Context, accountID id.AccountID, balance decimal.Decimal, updatedAt time.Time) error {
	res, err := s.q(ctx).NewUpdate((*accountModel)(nil)).
		Set("current_balance = $1", balance).
		Set("updated_at = $2", updatedAt).
		Where("id = $3", accountID.String()).
		Exec(ctx)
	return affected(res, err, "set account balance", ledger.ErrAccountNotFound)
}

func (s *Store) DeleteAccount(ctx context.Context, accountID id.AccountID) error {
	res, err := s.q(ctx).NewDelete((*accountModel)(nil)).
		Where("id = $1", accountID.String()).
		Exec(ctx)
	if isForeignKeyViolation(err) {
		return ledger.ErrAccountHasPostings
	}
	return affected(res, err, "delete account", ledger.ErrAccountNotFound)
}

func (s *Store) CreatePosting(ctx context.Context, p *account.Posting) error {
	_, err := s.q(ctx).NewInsert(toPostingModel(p)).Exec(ctx)
	if isForeignKeyViolation(err) {
		return ledger.ErrAccountNotFound
	}
	return mapErr("create posting", err)
}

func (s *Store) ListPostings(ctx context.Context, accountID id.AccountID, opts account.ListOpts) ([]*account.Posting, error) {
	var models []postingModel
	q := s.q(ctx).NewSelect(&models).
		Where("account_id = $1", accountID.String()).
		OrderExpr("occurred_at ASC, created_at ASC, id ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, mapErr("list postings", err)
	}
	return convert(models, fromPostingModel)
}

func (s *Store) CountPostings(ctx context.Context, accountID id.AccountID) (int64, error) {
	n, err := s.q(ctx).NewSelect((*postingModel)(nil)).
		Where("account_id = $1", accountID.String()).
		Count(ctx)
	return n, mapErr("count postings", err)
}

func (s *Store) DeletePostings(ctx context.Context, accountID id.AccountID) (int64, error) {
	res, err := s.q(ctx).NewDelete((*postingModel)(nil)).
		Where("account_id = $1", accountID.String()).
		Exec(ctx)
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
	return s.getPayment(ctx, s.q(ctx).NewSelect(m).Where("id = $1", paymentID.String()), m)
}

func (s *Store) GetPaymentForUpdate(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	m := new(paymentModel)
	return s.getPayment(ctx, s.q(ctx).NewSelect(m).Where("id = $1", paymentID.String()).ForUpdate(), m)
}

func (s *Store) getPayment(ctx context.Context, q *pgdriver.SelectQuery, m *paymentModel) (*payment.Payment, error) {
	if err := q.Scan(ctx); err != nil {
		if isNoRows(err) {
			return nil, ledger.ErrPaymentNotFound
		}
		return nil, mapErr("get payment", err)
	}
	return fromPaymentModel(m)
}

func (s *Store) UpdatePayment(ctx context.Context, p *payment.Payment) error {
	res, err := s.q(ctx).NewUpdate(toPaymentModel(p)).WherePK().Exec(ctx)
	return affected(res, err, "update payment", ledger.ErrPaymentNotFound)
}

func (s *Store) DeletePayment(ctx context.Context, paymentID id.PaymentID) error {
	res, err := s.q(ctx).NewDelete((*paymentModel)(nil)).
		Where("id = $1", paymentID.String()).
		Exec(ctx)
	return affected(res, err, "delete payment", ledger.ErrPaymentNotFound)
}

func (s *Store) ListPayments(ctx context.Context, f payment.Filter, opts payment.ListOpts) ([]*payment.Payment, error) {
	var models []paymentModel
	q := s.q(ctx).NewSelect(&models)
	if where, args := paymentWhere(f); where != "" {
		q = q.Where(where, args...)
	}
	q = q.OrderExpr("issued_at DESC, id DESC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, mapErr("list payments", err)
	}
	return convert(models, fromPaymentModel)
}

func (s *Store) CountPayments(ctx context.Context, f payment.Filter) (int64, error) {
	q := s.q(ctx).NewSelect((*paymentModel)(nil))
	if where, args := paymentWhere(f); where != "" {
		q = q.Where(where, args...)
	}
	n, err := q.Count(ctx)
	return n, mapErr("count payments", err)
}

// SumPayments sums in NUMERIC and reads the total back as text, so no
// floating point is involved.
func (s *Store) SumPayments(ctx context.Context, f payment.Filter) (decimal.Decimal, error) {
	query := "SELECT COALESCE(SUM(amount), 0)::text FROM condo_payments"
	where, args := paymentWhere(f)
	if where != "" {
		query += " WHERE " + where
	}

	var total string
	if err := s.q(ctx).NewRaw(query, args...).Scan(ctx, &total); err != nil {
		return decimal.Zero, mapErr("sum payments", err)
	}
	d, err := decimal.NewFromString(total)
	if err != nil {
		return decimal.Zero, mapErr("sum payments", err)
	}
	return d, nil
}

// paymentWhere renders f as one condition with $n placeholders. It returns
// "" when f matches every payment.
func paymentWhere(f payment.Filter) (string, []any) {
	var (
		conds  []string
		args   []any
		argIdx = 1
	)
	add := func(col string, v any) {
		conds = append(conds, fmt.Sprintf("%s = $%d", col, argIdx))
		args = append(args, v)
		argIdx++
	}

	if f.Active != nil {
		add("active", *f.Active)
	}
	if f.State != "" {
		add("state", string(f.State))
	}
	if !f.OwnerID.IsNil() {
		add("owner_id", f.OwnerID.String())
	}
	if !f.UnitID.IsNil() {
		add("unit_id", f.UnitID.String())
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
		Where("payment_id = $1", paymentID.String()).
		OrderExpr("recorded_at DESC, id DESC").
		Scan(ctx)
	if err != nil {
		return nil, mapErr("list audit", err)
	}
	return convert(models, fromAuditModel)
}

// ==================== Helpers ====================

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

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// mapErr wraps driver failures as storage failures. Unique violations on
// primary keys surface as conflicts.
func mapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %s: %w", ledger.ErrConflict, op, err)
	default:
		return ledger.StorageError(op, err)
	}
}
