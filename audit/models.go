// Package audit holds the append-only history of payment changes.
package audit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/condoledger/id"
)

var ErrInvalidAction = errors.New("audit: invalid action")

type Action string

const (
	ActionCreate     Action = "CREATE"
	ActionEdit       Action = "EDIT"
	ActionDeactivate Action = "DEACTIVATE"
)

// ParseAction parses an action case-insensitively.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToUpper(strings.TrimSpace(s))); a {
	case ActionCreate, ActionEdit, ActionDeactivate:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
}

// Entry records one change to a payment. Entries are never updated or
// deleted, and they outlive the payment they describe.
type Entry struct {
	ID           id.AuditEntryID `json:"id"`
	PaymentID    id.PaymentID    `json:"payment_id"`
	Action       Action          `json:"action"`
	Detail       string          `json:"detail"`
	ActingUserID id.UserID       `json:"acting_user_id,omitzero"`
	RecordedAt   time.Time       `json:"recorded_at"`
}
