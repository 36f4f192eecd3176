package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/condoledger/account"
	"github.com/xraph/condoledger/id"
	"github.com/xraph/condoledger/types"
)

// PostInput describes a single credit or debit against an account.
type PostInput struct {
	AccountID id.AccountID
	// Kind is parsed case-insensitively, so "credit" and "DEBITO" both work.
	Kind        account.Kind
	Amount      any
	Description string
	// OccurredAt defaults to the time of the call.
	OccurredAt *time.Time
}

// BalanceReport compares an account's stored balance with its postings.
type BalanceReport struct {
	AccountID      id.AccountID    `json:"account_id"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	Stored         decimal.Decimal `json:"stored"`
	Computed       decimal.Decimal `json:"computed"`
	Postings       int             `json:"postings"`
}

// Drift is Stored minus Computed; zero for a healthy account.
func (r *BalanceReport) Drift() decimal.Decimal { return r.Stored.Sub(r.Computed) }

// ──────────────────────────────────────────────────
// Ledger Accounts
// ──────────────────────────────────────────────────

// OpenAccount creates the owner's account. A positive initial balance is
// recorded as an opening credit posting in the same transaction, so the
// stored balance always equals the sum of the account's postings. A nil or
// empty initial balance opens the account at zero.
func (l *Ledger) OpenAccount(ctx context.Context, ownerID id.OwnerID, initialBalance any) (*account.Account, error) {
	initial, err := l.locale.NormalizeStrict(initialBalance)
	switch {
	case errors.Is(err, types.ErrEmptyAmount):
		initial = decimal.Zero
	case err != nil:
		return nil, fmt.Errorf("%w: initial balance: %w", ErrInvalidAmount, err)
	case initial.IsNegative():
		return nil, fmt.Errorf("%w: initial balance cannot be negative, got %s", ErrInvalidAmount, initial)
	}
	if err := l.checkPrecision("initial balance", initial); err != nil {
		return nil, err
	}

	now := l.now()
	a := &account.Account{
		Entity:         types.NewEntityAt(now),
		ID:             id.NewAccountID(),
		OwnerID:        ownerID,
		InitialBalance: initial,
		CurrentBalance: decimal.Zero,
	}

	var opening *account.Posting
	err = l.store.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := l.store.GetOwner(ctx, ownerID); err != nil {
			return err
		}
		if _, err := l.store.GetAccountByOwner(ctx, ownerID); err == nil {
			return ErrAccountExists
		} else if !IsNotFound(err) {
			return err
		}

		if err := l.store.CreateAccount(ctx, a); err != nil {
			return err
		}
		if !initial.IsPositive() {
			return nil
		}

		opening = &account.Posting{
			ID:          id.NewPostingID(),
			AccountID:   a.ID,
			Kind:        account.KindCredit,
			Amount:      initial,
			Description: account.OpeningDescription,
			OccurredAt:  now,
			CreatedAt:   now,
		}
		if err := l.store.CreatePosting(ctx, opening); err != nil {
			return err
		}
		a.CurrentBalance = initial
		return l.store.SetAccountBalance(ctx, a.ID, a.CurrentBalance, now)
	})
	if err != nil {
		return nil, err
	}

	l.decorateAccount(a)
	if opening != nil {
		l.decoratePosting(opening)
	}

	l.logger.Debug("account opened",
		"account_id", a.ID.String(),
		"owner_id", ownerID.String(),
		"initial_balance", initial.String(),
	)
	l.plugins.EmitAccountOpened(ctx, a, opening)

	return a, nil
}

// Post records a posting and moves the account balance by its signed
// amount, atomically.
func (l *Ledger) Post(ctx context.Context, in PostInput) (*account.Posting, error) {
	kind, err := account.ParseKind(string(in.Kind))
	if err != nil {
		return nil, ValidationError{Field: "kind", Message: err.Error()}
	}
	amount, err := l.positiveAmount("amount", in.Amount)
	if err != nil {
		return nil, err
	}

	now := l.now()
	occurred := now
	if in.OccurredAt != nil {
		occurred = in.OccurredAt.UTC()
	}

	posting := &account.Posting{
		ID:          id.NewPostingID(),
		AccountID:   in.AccountID,
		Kind:        kind,
		Amount:      amount,
		Description: in.Description,
		OccurredAt:  occurred,
		CreatedAt:   now,
	}

	var a *account.Account
	err = l.store.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		a, err = l.store.GetAccountForUpdate(ctx, in.AccountID)
		if err != nil {
			return err
		}
		if err := l.store.CreatePosting(ctx, posting); err != nil {
			return err
		}
		a.CurrentBalance = a.CurrentBalance.Add(posting.Signed())
		a.Touch(now)
		return l.store.SetAccountBalance(ctx, a.ID, a.CurrentBalance, now)
	})
	if err != nil {
		return nil, err
	}

	l.decorateAccount(a)
	l.decoratePosting(posting)

	l.logger.Debug("posting recorded",
		"account_id", a.ID.String(),
		"posting_id", posting.ID.String(),
		"kind", string(kind),
		"amount", amount.String(),
	)
	l.plugins.EmitPostingRecorded(ctx, a, posting)

	return posting, nil
}

// PostToOwner posts against the account of the given owner.
func (l *Ledger) PostToOwner(ctx context.Context, ownerID id.OwnerID, in PostInput) (*account.Posting, error) {
	a, err := l.store.GetAccountByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	in.AccountID = a.ID
	return l.Post(ctx, in)
}

// CloseAccount deletes an account that has no postings left. Callers that
// mean to discard the history run PurgePostings first.
func (l *Ledger) CloseAccount(ctx context.Context, accountID id.AccountID) error {
	err := l.store.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := l.store.GetAccountForUpdate(ctx, accountID); err != nil {
			return err
		}
		n, err := l.store.CountPostings(ctx, accountID)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %d remaining", ErrAccountHasPostings, n)
		}
		return l.store.DeleteAccount(ctx, accountID)
	})
	if err != nil {
		return err
	}

	l.logger.Debug("account closed", "account_id", accountID.String())
	l.plugins.EmitAccountClosed(ctx, accountID)
	return nil
}

// PurgePostings removes every posting of an account and zeroes its current
// balance in one transaction. It returns the number of postings removed.
func (l *Ledger) PurgePostings(ctx context.Context, accountID id.AccountID) (int64, error) {
	var removed int64
	err := l.store.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := l.store.GetAccountForUpdate(ctx, accountID); err != nil {
			return err
		}
		var err error
		removed, err = l.store.DeletePostings(ctx, accountID)
		if err != nil {
			return err
		}
		return l.store.SetAccountBalance(ctx, accountID, decimal.Zero, l.now())
	})
	if err != nil {
		return 0, err
	}

	l.logger.Debug("postings purged", "account_id", accountID.String(), "removed", removed)
	l.plugins.EmitPostingsPurged(ctx, accountID, removed)
	return removed, nil
}

// GetAccount retrieves an account by ID.
func (l *Ledger) GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	a, err := l.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	l.decorateAccount(a)
	return a, nil
}

// GetAccountByOwner retrieves the account of an owner.
func (l *Ledger) GetAccountByOwner(ctx context.Context, ownerID id.OwnerID) (*account.Account, error) {
	a, err := l.store.GetAccountByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	l.decorateAccount(a)
	return a, nil
}

// ListAccountsByOwner lists the accounts of an owner, at most one today.
func (l *Ledger) ListAccountsByOwner(ctx context.Context, ownerID id.OwnerID) ([]*account.Account, error) {
	accounts, err := l.store.ListAccountsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		l.decorateAccount(a)
	}
	return accounts, nil
}

// ListPostings lists an account's postings, oldest first.
func (l *Ledger) ListPostings(ctx context.Context, accountID id.AccountID, opts account.ListOpts) ([]*account.Posting, error) {
	if _, err := l.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	postings, err := l.store.ListPostings(ctx, accountID, opts)
	if err != nil {
		return nil, err
	}
	for _, p := range postings {
		l.decoratePosting(p)
	}
	return postings, nil
}

// VerifyBalance recomputes an account's balance from its postings. When
// the stored balance has drifted the report is returned together with
// ErrBalanceDrift.
func (l *Ledger) VerifyBalance(ctx context.Context, accountID id.AccountID) (*BalanceReport, error) {
	var report *BalanceReport
	err := l.store.RunInTx(ctx, func(ctx context.Context) error {
		a, err := l.store.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		postings, err := l.store.ListPostings(ctx, accountID, account.ListOpts{})
		if err != nil {
			return err
		}
		report = &BalanceReport{
			AccountID:      a.ID,
			InitialBalance: a.InitialBalance,
			Stored:         a.CurrentBalance,
			Computed:       account.Balance(postings),
			Postings:       len(postings),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if drift := report.Drift(); !drift.IsZero() {
		l.logger.Warn("account balance drift",
			"account_id", accountID.String(),
			"stored", report.Stored.String(),
			"computed", report.Computed.String(),
		)
		return report, fmt.Errorf("%w: account %s off by %s", ErrBalanceDrift, accountID, drift)
	}
	return report, nil
}

func (l *Ledger) decorateAccount(a *account.Account) {
	a.InitialBalanceFormatted = l.locale.Format(a.InitialBalance)
	a.CurrentBalanceFormatted = l.locale.Format(a.CurrentBalance)
}

func (l *Ledger) decoratePosting(p *account.Posting) {
	p.AmountFormatted = l.locale.Format(p.Amount)
}
