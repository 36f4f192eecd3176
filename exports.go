package ledger

import (
	"github.com/xraph/condoledger/account"
	"github.com/xraph/condoledger/payment"
	"github.com/xraph/condoledger/types"
)

// Re-export common types for convenience so users don't have to import
// the entity packages for everyday calls.

// Entity is re-exported from types package.
type Entity = types.Entity

// Locale is re-exported from types package.
type Locale = types.Locale

// Re-exported constructors and helpers.
var (
	NewEntityAt   = types.NewEntityAt
	DefaultLocale = types.DefaultLocale
	Sum           = types.Sum
)

// Posting kinds.
const (
	Credit = account.KindCredit
	Debit  = account.KindDebit
)

// Built-in payment states.
const (
	Pending = payment.StatePending
	Paid    = payment.StatePaid
)
