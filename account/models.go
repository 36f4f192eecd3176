// Package account models an owner's running ledger account and the
// credit/debit postings that move its balance.
package account

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/condoledger/id"
	"github.com/xraph/condoledger/types"
)

// OpeningDescription labels the posting that seeds an account's initial balance.
const OpeningDescription = "opening balance"

// ErrInvalidKind is returned by ParseKind for anything but credit or debit.
var ErrInvalidKind = errors.New("account: invalid posting kind")

// Kind is the direction of a posting. The sign of a posting lives here,
// never in its amount.
type Kind string

const (
	KindCredit Kind = "CREDIT"
	KindDebit  Kind = "DEBIT"
)

// ParseKind parses a posting kind case-insensitively. The Portuguese
// spellings used by older clients ("credito", "debito") are accepted.
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CREDIT", "CREDITO", "CRÉDITO":
		return KindCredit, nil
	case "DEBIT", "DEBITO", "DÉBITO":
		return KindDebit, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// Valid reports whether k is one of the closed set of kinds.
func (k Kind) Valid() bool { return k == KindCredit || k == KindDebit }

// Signed returns amount with the sign implied by k.
func (k Kind) Signed(amount decimal.Decimal) decimal.Decimal {
	if k == KindDebit {
		return amount.Neg()
	}
	return amount
}

type Account struct {
	types.Entity
	ID             id.AccountID    `json:"id"`
	OwnerID        id.OwnerID      `json:"owner_id"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	CurrentBalance decimal.Decimal `json:"current_balance"`

	// Display fields, attached on read and never stored.
	InitialBalanceFormatted string `json:"initial_balance_formatted,omitempty"`
	CurrentBalanceFormatted string `json:"current_balance_formatted,omitempty"`
}

type Posting struct {
	ID          id.PostingID    `json:"id"`
	AccountID   id.AccountID    `json:"account_id"`
	Kind        Kind            `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	OccurredAt  time.Time       `json:"occurred_at"`
	CreatedAt   time.Time       `json:"created_at"`

	AmountFormatted string `json:"amount_formatted,omitempty"`
}

// Signed returns the posting amount carrying the sign of its kind.
func (p *Posting) Signed() decimal.Decimal { return p.Kind.Signed(p.Amount) }

// Balance sums the signed amounts of postings.
func Balance(postings []*Posting) decimal.Decimal {
	total := decimal.Zero
	for _, p := range postings {
		total = total.Add(p.Signed())
	}
	return total
}
