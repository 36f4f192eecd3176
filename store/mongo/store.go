// Package mongo implements store.Store on MongoDB through the grove
// mongodriver. Amounts are stored as Decimal128.
//
// Transactions need a replica set or sharded cluster. Referential checks
// that SQL backends get from foreign keys are done in the store.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"
	"github.com/xraph/grove/drivers/mongodriver/mongomigrate"
	"github.com/xraph/grove/migrate"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	ledger "github.com/xraph/condoledger"
	"github.com/xraph/condoledger/account"
	"github.com/xraph/condoledger/audit"
	"github.com/xraph/condoledger/id"
	"github.com/xraph/condoledger/owner"
	"github.com/xraph/condoledger/payment"
	ledgerstore "github.com/xraph/condoledger/store"
)

// Collection name constants.
const (
	colOwners   = "condo_owners"
	colAccounts = "condo_accounts"
	colPostings = "condo_postings"
	colPayments = "condo_payments"
	colAudit    = "condo_payment_audit"
)

// maxTxAttempts bounds how often RunInTx retries a transaction that failed
// with a TransientTransactionError, such as a write conflict on a locked
// document.
const maxTxAttempts = 8

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM. It panics when db
// is not a mongodriver database.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// Open connects to uri, using database, and pings the server.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	mdb := mongodriver.New()
	if err := mdb.Open(ctx, uri, mongodriver.WithDatabase(database)); err != nil {
		_ = mdb.Close()
		return nil, fmt.Errorf("condoledger/mongo: open: %w", err)
	}
	db, err := grove.Open(mdb)
	if err != nil {
		_ = mdb.Close()
		return nil, fmt.Errorf("condoledger/mongo: open: %w", err)
	}
	return New(db), nil
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all ledger collections using the grove
// orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.mdb)
	if err != nil {
		return fmt.Errorf("condoledger/mongo: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("condoledger/mongo: migration failed: %w", err)
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

// ==================== Migrations ====================

// Migrations is the grove migration group for the MongoDB store. MongoDB
// has no DDL, so each step creates the indexes of one collection.
var Migrations = migrate.NewGroup("condoledger")

func init() {
	indexes := migrationIndexes()
	for i, col := range []string{colOwners, colAccounts, colPostings, colPayments, colAudit} {
		models := indexes[col]
		Migrations.MustRegister(&migrate.Migration{
			Name:    "create_" + col + "_indexes",
			Version: fmt.Sprintf("2025010100000%d", i+1),
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := mongoDB(exec).Collection(col).Indexes().CreateMany(ctx, models)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				return mongoDB(exec).Collection(col).Drop(ctx)
			},
		})
	}
}

func mongoDB(exec migrate.Executor) *mongodriver.MongoDB {
	return exec.(*mongomigrate.Executor).DB()
}

// migrationIndexes returns the index definitions for all ledger collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colOwners: {
			{Keys: bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}},
		},
		colAccounts: {
			{
				Keys:    bson.D{{Key: "owner_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colPostings: {
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "occurred_at", Value: 1}}},
		},
		colPayments: {
			{Keys: bson.D{{Key: "active", Value: 1}, {Key: "issued_at", Value: -1}, {Key: "_id", Value: -1}}},
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "active", Value: 1}, {Key: "state", Value: 1}}},
		},
		colAudit: {
			{Keys: bson.D{{Key: "payment_id", Value: 1}, {Key: "recorded_at", Value: -1}}},
		},
	}
}

// ==================== Transactions ====================

type txKey struct{}

// querier is the query-builder surface shared by *mongodriver.MongoDB and
// *mongodriver.MongoTx.
type querier interface {
	NewFind(model ...any) *mongodriver.FindQuery
	NewInsert(model any) *mongodriver.InsertQuery
	NewUpdate(model any) *mongodriver.UpdateQuery
	NewDelete(model any) *mongodriver.DeleteQuery
}

func txFrom(ctx context.Context) (*mongodriver.MongoTx, bool) {
	tx, ok := ctx.Value(txKey{}).(*mongodriver.MongoTx)
	return tx, ok
}

func (s *Store) q(ctx context.Context) querier {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return s.mdb
}

// aggregate binds an aggregation to the caller's session, if any.
func (s *Store) aggregate(ctx context.Context, col string) (*mongodriver.AggregateQuery, context.Context) {
	if tx, ok := txFrom(ctx); ok {
		return s.mdb.NewAggregate(col), tx.SessionContext(ctx)
	}
	return s.mdb.NewAggregate(col), ctx
}

// RunInTx runs fn in a session transaction. A transaction that fails with
// a TransientTransactionError is retried from the start, so fn must not
// have side effects outside the store. Nested calls join the outer
// transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}

	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		if err = s.runTx(ctx, fn); !isTransient(err) {
			return err
		}
		if ctx.Err() != nil {
			break
		}
	}
	return err
}

func (s *Store) runTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	gtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.StorageError("begin", err)
	}
	tx, ok := gtx.Raw().(*mongodriver.MongoTx)
	if !ok {
		_ = gtx.Rollback()
		return ledger.StorageError("begin", fmt.Errorf("unexpected transaction type %T", gtx.Raw()))
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

// isTransient reports whether err carries the TransientTransactionError
// label, meaning the whole transaction may be retried.
func isTransient(err error) bool {
	var se mongo.LabeledError
	return errors.As(err, &se) && se.HasErrorLabel("TransientTransactionError")
}

// ==================== Owner Store ====================

func (s *Store) CreateOwner(ctx context.Context, o *owner.Owner) error {
	_, err := s.q(ctx).NewInsert(toOwnerModel(o)).Exec(ctx)
	return mapErr("create owner", err)
}

func (s *Store) GetOwner(ctx context.Context, ownerID id.OwnerID) (*owner.Owner, error) {
	var m ownerModel
	err := s.q(ctx).NewFind(&m).Filter(bson.M{"_id": ownerID.String()}).Scan(ctx)
	if isNoDocuments(err) {
		return nil, ledger.ErrOwnerNotFound
	}
	if err != nil {
		return nil, mapErr("get owner", err)
	}
	return fromOwnerModel(&m)
}

func (s *Store) ListOwners(ctx context.Context, opts owner.ListOpts) ([]*owner.Owner, error) {
	var models []ownerModel
	q := s.q(ctx).NewFind(&models).Sort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	if err := page(q, opts.Limit, opts.Offset).Scan(ctx); err != nil {
		return nil, mapErr("list owners", err)
	}
	return convert(models, fromOwnerModel)
}

func (s *Store) UpdateOwner(ctx context.Context, o *owner.Owner) error {
	res, err := s.q(ctx).NewUpdate(toOwnerModel(o)).Filter(bson.M{"_id": o.ID.String()}).Exec(ctx)
	if err != nil {
		return mapErr("update owner", err)
	}
	if res.MatchedCount() == 0 {
		return ledger.ErrOwnerNotFound
	}
	return nil
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	if err := s.exists(ctx, (*ownerModel)(nil), a.OwnerID.String(), ledger.ErrOwnerNotFound); err != nil {
		return err
	}
	m, err := toAccountModel(a)
	if err != nil {
		return err
	}
	_, err = s.q(ctx).NewInsert(m).Exec(ctx)
	if mongo.IsDuplicateKeyError(err) {
		// The unique owner_id index fired unless the _id itself collided.
		if n, _ := s.q(ctx).NewFind((*accountModel)(nil)).Filter(bson.M{"_id": m.ID}).Count(ctx); n == 0 {
			return ledger.ErrAccountExists
		}
	}
	return mapErr("create account", err)
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	return s.findAccount(ctx, bson.M{"_id": accountID.String()})
}

// GetAccountForUpdate bumps a lock counter on the account inside a
// transaction, so a concurrent transaction touching the same account
// fails with a write conflict and is retried.
func (s *Store) GetAccountForUpdate(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	if err := s.lock(ctx, (*accountModel)(nil), accountID.String(), ledger.ErrAccountNotFound); err != nil {
		return nil, err
	}
	return s.GetAccount(ctx, accountID)
}

func (s *Store) GetAccountByOwner(ctx context.Context, ownerID id.OwnerID) (*account.Account, error) {
	return s.findAccount(ctx, bson.M{"owner_id": ownerID.String()})
}

func (s *Store) findAccount(ctx context.Context, filter bson.M) (*account.Account, error) {
	var m accountModel
	err := s.q(ctx).NewFind(&m).Filter(filter).Scan(ctx)
	if isNoDocuments(err) {
		return nil, ledger.ErrAccountNotFound
	}
	if err != nil {
		return nil, mapErr("get account", err)
	}
	return fromAccountModel(&m)
}

func (s *Store) ListAccountsByOwner(ctx context.Context, ownerID id.OwnerID) ([]*account.Account, error) {
	var models []accountModel
	err := s.q(ctx).NewFind(&models).
		Filter(bson.M{"owner_id": ownerID.String()}).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, mapErr("list accounts", err)
	}
	return convert(models, fromAccountModel)
}

func (s *Store) SetAccountBalance(ctx context.Context, accountID id.AccountID, balance decimal.Decimal, updatedAt time.Time) error {
	v, err := toDecimal128(balance)
	if err != nil {
		return err
	}
	res, err := s.q(ctx).NewUpdate((*accountModel)(nil)).
		Filter(bson.M{"_id": accountID.String()}).
		Set("current_balance", v).
		Set("updated_at", updatedAt.UTC()).
		Exec(ctx)
	if err != nil {
		return mapErr("set account balance", err)
	}
	if res.MatchedCount() == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, accountID id.AccountID) error {
	n, err := s.q(ctx).NewFind((*postingModel)(nil)).Filter(bson.M{"account_id": accountID.String()}).Count(ctx)
	if err != nil {
		return mapErr("delete account", err)
	}
	if n > 0 {
		return ledger.ErrAccountHasPostings
	}
	res, err := s.q(ctx).NewDelete((*accountModel)(nil)).Filter(bson.M{"_id": accountID.String()}).Exec(ctx)
	if err != nil {
		return mapErr("delete account", err)
	}
	if res.DeletedCount() == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

func (s *Store) CreatePosting(ctx context.Context, p *account.Posting) error {
	if err := s.exists(ctx, (*accountModel)(nil), p.AccountID.String(), ledger.ErrAccountNotFound); err != nil {
		return err
	}
	m, err := toPostingModel(p)
	if err != nil {
		return err
	}
	_, err = s.q(ctx).NewInsert(m).Exec(ctx)
	return mapErr("create posting", err)
}

func (s *Store) ListPostings(ctx context.Context, accountID id.AccountID, opts account.ListOpts) ([]*account.Posting, error) {
	var models []postingModel
	q := s.q(ctx).NewFind(&models).
		Filter(bson.M{"account_id": accountID.String()}).
		Sort(bson.D{{Key: "occurred_at", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if err := page(q, opts.Limit, opts.Offset).Scan(ctx); err != nil {
		return nil, mapErr("list postings", err)
	}
	return convert(models, fromPostingModel)
}

func (s *Store) CountPostings(ctx context.Context, accountID id.AccountID) (int64, error) {
	n, err := s.q(ctx).NewFind((*postingModel)(nil)).Filter(bson.M{"account_id": accountID.String()}).Count(ctx)
	return n, mapErr("count postings", err)
}

func (s *Store) DeletePostings(ctx context.Context, accountID id.AccountID) (int64, error) {
	res, err := s.q(ctx).NewDelete((*postingModel)(nil)).
		Filter(bson.M{"account_id": accountID.String()}).
		Many().
		Exec(ctx)
	if err != nil {
		return 0, mapErr("delete postings", err)
	}
	return res.DeletedCount(), nil
}

// ==================== Payment Store ====================

func (s *Store) CreatePayment(ctx context.Context, p *payment.Payment) error {
	m, err := toPaymentModel(p)
	if err != nil {
		return err
	}
	_, err = s.q(ctx).NewInsert(m).Exec(ctx)
	return mapErr("create payment", err)
}

func (s *Store) GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	var m paymentModel
	err := s.q(ctx).NewFind(&m).Filter(bson.M{"_id": paymentID.String()}).Scan(ctx)
	if isNoDocuments(err) {
		return nil, ledger.ErrPaymentNotFound
	}
	if err != nil {
		return nil, mapErr("get payment", err)
	}
	return fromPaymentModel(&m)
}

func (s *Store) GetPaymentForUpdate(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	if err := s.lock(ctx, (*paymentModel)(nil), paymentID.String(), ledger.ErrPaymentNotFound); err != nil {
		return nil, err
	}
	return s.GetPayment(ctx, paymentID)
}

func (s *Store) UpdatePayment(ctx context.Context, p *payment.Payment) error {
	m, err := toPaymentModel(p)
	if err != nil {
		return err
	}
	res, err := s.q(ctx).NewUpdate(m).Filter(bson.M{"_id": m.ID}).Exec(ctx)
	if err != nil {
		return mapErr("update payment", err)
	}
	if res.MatchedCount() == 0 {
		return ledger.ErrPaymentNotFound
	}
	return nil
}

func (s *Store) DeletePayment(ctx context.Context, paymentID id.PaymentID) error {
	res, err := s.q(ctx).NewDelete((*paymentModel)(nil)).Filter(bson.M{"_id": paymentID.String()}).Exec(ctx)
	if err != nil {
		return mapErr("delete payment", err)
	}
	if res.DeletedCount() == 0 {
		return ledger.ErrPaymentNotFound
	}
	return nil
}

func (s *Store) ListPayments(ctx context.Context, f payment.Filter, opts payment.ListOpts) ([]*payment.Payment, error) {
	var models []paymentModel
	q := s.q(ctx).NewFind(&models).
		Filter(paymentFilter(f)).
		Sort(bson.D{{Key: "issued_at", Value: -1}, {Key: "_id", Value: -1}})
	if err := page(q, opts.Limit, opts.Offset).Scan(ctx); err != nil {
		return nil, mapErr("list payments", err)
	}
	return convert(models, fromPaymentModel)
}

func (s *Store) CountPayments(ctx context.Context, f payment.Filter) (int64, error) {
	n, err := s.q(ctx).NewFind((*paymentModel)(nil)).Filter(paymentFilter(f)).Count(ctx)
	return n, mapErr("count payments", err)
}

// SumPayments totals with $sum, which stays in Decimal128.
func (s *Store) SumPayments(ctx context.Context, f payment.Filter) (decimal.Decimal, error) {
	var out []struct {
		Total bson.Decimal128 `bson:"total"`
	}
	q, qctx := s.aggregate(ctx, colPayments)
	err := q.Match(paymentFilter(f)).
		Group(bson.M{"_id": nil, "total": bson.M{"$sum": "$amount"}}).
		Scan(qctx, &out)
	if err != nil {
		return decimal.Zero, mapErr("sum payments", err)
	}
	if len(out) == 0 {
		return decimal.Zero, nil
	}
	return fromDecimal128(out[0].Total)
}

func paymentFilter(f payment.Filter) bson.M {
	filter := bson.M{}
	if f.Active != nil {
		filter["active"] = *f.Active
	}
	if f.State != "" {
		filter["state"] = string(f.State)
	}
	if !f.OwnerID.IsNil() {
		filter["owner_id"] = f.OwnerID.String()
	}
	if !f.UnitID.IsNil() {
		filter["unit_id"] = f.UnitID.String()
	}
	return filter
}

// ==================== Audit Store ====================

func (s *Store) AppendAudit(ctx context.Context, e *audit.Entry) error {
	_, err := s.q(ctx).NewInsert(toAuditModel(e)).Exec(ctx)
	return mapErr("append audit", err)
}

func (s *Store) ListAudit(ctx context.Context, paymentID id.PaymentID) ([]*audit.Entry, error) {
	var models []auditModel
	err := s.q(ctx).NewFind(&models).
		Filter(bson.M{"payment_id": paymentID.String()}).
		Sort(bson.D{{Key: "recorded_at", Value: -1}, {Key: "_id", Value: -1}}).
		Scan(ctx)
	if err != nil {
		return nil, mapErr("list audit", err)
	}
	return convert(models, fromAuditModel)
}

// ==================== Helpers ====================

// lock claims the document with a write when called inside a transaction.
// Outside one it only checks that the document exists.
func (s *Store) lock(ctx context.Context, model any, docID string, missing error) error {
	if _, ok := txFrom(ctx); !ok {
		return s.exists(ctx, model, docID, missing)
	}
	res, err := s.q(ctx).NewUpdate(model).
		Filter(bson.M{"_id": docID}).
		SetUpdate(bson.M{"$inc": bson.M{"lock": 1}}).
		Exec(ctx)
	if err != nil {
		return mapErr("lock", err)
	}
	if res.MatchedCount() == 0 {
		return missing
	}
	return nil
}

// exists returns missing unless a document of model's collection has _id
// docID.
func (s *Store) exists(ctx context.Context, model any, docID string, missing error) error {
	n, err := s.q(ctx).NewFind(model).Filter(bson.M{"_id": docID}).Count(ctx)
	if err != nil {
		return mapErr("lookup", err)
	}
	if n == 0 {
		return missing
	}
	return nil
}

func page(q *mongodriver.FindQuery, limit, offset int) *mongodriver.FindQuery {
	if limit > 0 {
		q = q.Limit(int64(limit))
	}
	if offset > 0 {
		q = q.Skip(int64(offset))
	}
	return q
}

func convert[M, T any](models []M, from func(*M) (*T, error)) ([]*T, error) {
	result := make([]*T, 0, len(models))
	for i := range models {
		item, err := from(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, nil
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

func mapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %s: %w", ledger.ErrConflict, op, err)
	default:
		return ledger.StorageError(op, err)
	}
}
