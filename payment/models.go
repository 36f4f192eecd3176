package payment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/condoledger/id"
	"github.com/xraph/condoledger/types"
)

// ErrInvalidState is returned by ParseState for labels outside the allowed set.
var ErrInvalidState = errors.New("payment: invalid state")

// State is the lifecycle label of a payment. PENDING and PAID are built in;
// deployments may allow more via the engine's WithStates option.
type State string

const (
	StatePending   State = "PENDING"
	StatePaid      State = "PAID"
	StateCancelled State = "CANCELLED"
)

// BuiltinStates returns the states every deployment accepts.
func BuiltinStates() []State {
	return []State{StatePending, StatePaid, StateCancelled}
}

var legacyStates = map[string]State{
	"PENDENTE":  StatePending,
	"PAGO":      StatePaid,
	"CANCELADO": StateCancelled,
}

// ParseState parses s case-insensitively against the built-in states and
// any extra states the caller allows. Legacy Portuguese labels map onto
// their built-in equivalents.
func ParseState(s string, extra ...State) (State, error) {
	label := strings.ToUpper(strings.TrimSpace(s))
	if st, ok := legacyStates[label]; ok {
		return st, nil
	}
	for _, st := range BuiltinStates() {
		if State(label) == st {
			return st, nil
		}
	}
	for _, st := range extra {
		if State(label) == State(strings.ToUpper(string(st))) {
			return State(label), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidState, s)
}

type Payment struct {
	types.Entity
	ID          id.PaymentID    `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	State       State           `json:"state"`
	IssuedAt    time.Time       `json:"issued_at"`
	DueAt       *time.Time      `json:"due_at,omitempty"`
	Active      bool            `json:"active"`

	// Weak references, resolved by the caller when needed.
	UnitID   id.UnitID   `json:"unit_id,omitzero"`
	OwnerID  id.OwnerID  `json:"owner_id,omitzero"`
	TenantID id.TenantID `json:"tenant_id,omitzero"`
	UserID   id.UserID   `json:"user_id,omitzero"`

	// Derived on read, never stored.
	Classification  Label  `json:"classification,omitzero"`
	AmountFormatted string `json:"amount_formatted,omitempty"`
}

// Clone returns a deep copy of p.
func (p *Payment) Clone() *Payment {
	c := *p
	if p.DueAt != nil {
		due := *p.DueAt
		c.DueAt = &due
	}
	return &c
}

// Patch is a partial update. Nil or empty fields leave the stored value
// unchanged; nothing is ever cleared implicitly.
type Patch struct {
	// Amount is normalized like a create amount; nil means unchanged.
	Amount      any
	Description *string
	// State is parsed case-insensitively; "" means unchanged.
	State string
	DueAt *time.Time
	// ClearDueAt removes the due date. It wins over DueAt.
	ClearDueAt bool

	UnitID   *id.UnitID
	OwnerID  *id.OwnerID
	TenantID *id.TenantID

	ActingUserID id.UserID
}

// Filter selects payments for listing. Zero fields match everything.
type Filter struct {
	Active  *bool
	State   State
	OwnerID id.OwnerID
	UnitID  id.UnitID
}

// Page requests one page of a listing. Numbers start at 1.
type Page struct {
	Number int
	Size   int
}

// Result is one page of payments plus totals for the whole filter.
type Result struct {
	Items      []*Payment `json:"items"`
	TotalCount int64      `json:"total_count"`
	TotalPages int        `json:"total_pages"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
}

// Bool returns a pointer to v, for Filter.Active.
func Bool(v bool) *bool { return &v }
