package account

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/condoledger/id"
)

// Store persists accounts and their postings. Methods called with a
// context obtained from store.Store.RunInTx participate in that transaction.
type Store interface {
	CreateAccount(ctx context.Context, a *Account) error
	GetAccount(ctx context.Context, accountID id.AccountID) (*Account, error)
	// GetAccountForUpdate reads the account and holds it against concurrent
	// balance writers until the surrounding transaction ends.
	GetAccountForUpdate(ctx context.Context, accountID id.AccountID) (*Account, error)
	GetAccountByOwner(ctx context.Context, ownerID id.OwnerID) (*Account, error)
	ListAccountsByOwner(ctx context.Context, ownerID id.OwnerID) ([]*Account, error)
	SetAccountBalance(ctx context.Context, accountID id.AccountID, balance decimal.Decimal, updatedAt time.Time) error
	DeleteAccount(ctx context.Context, accountID id.AccountID) error

	CreatePosting(ctx context.Context, p *Posting) error
	ListPostings(ctx context.Context, accountID id.AccountID, opts ListOpts) ([]*Posting, error)
	CountPostings(ctx context.Context, accountID id.AccountID) (int64, error)
	DeletePostings(ctx context.Context, accountID id.AccountID) (int64, error)
}

// ListOpts pages postings, which are always returned oldest first.
type ListOpts struct {
	Limit  int
	Offset int
}
