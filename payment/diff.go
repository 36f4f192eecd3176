package payment

import (
	"strings"
	"time"

	"github.com/xraph/condoledger/types"
)

const emptyValue = "—"

// Change is one field that differs between two versions of a payment.
type Change struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

func (c Change) String() string {
	return c.Field + ": " + c.Old + " → " + c.New
}

// Diff compares the audited fields of two payment versions: amount, state,
// description and due date. Associations are not audited.
func Diff(before, after *Payment, loc types.Locale) []Change {
	var changes []Change

	if !before.Amount.Equal(after.Amount) {
		changes = append(changes, Change{
			Field: "Amount",
			Old:   loc.FormatPlain(before.Amount),
			New:   loc.FormatPlain(after.Amount),
		})
	}
	if before.State != after.State {
		changes = append(changes, Change{Field: "State", Old: orEmpty(string(before.State)), New: orEmpty(string(after.State))})
	}
	if before.Description != after.Description {
		changes = append(changes, Change{Field: "Description", Old: orEmpty(before.Description), New: orEmpty(after.Description)})
	}
	if !sameTime(before.DueAt, after.DueAt) {
		changes = append(changes, Change{Field: "Due date", Old: formatDue(before.DueAt), New: formatDue(after.DueAt)})
	}

	return changes
}

// Describe joins changes into an audit detail line.
func Describe(changes []Change) string {
	parts := make([]string, len(changes))
	for i, c := range changes {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}

func sameTime(a, b *time.Time) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil || b == nil:
		return false
	default:
		return a.Equal(*b)
	}
}

func formatDue(t *time.Time) string {
	if t == nil {
		return emptyValue
	}
	u := t.UTC()
	if u.Hour() == 0 && u.Minute() == 0 && u.Second() == 0 && u.Nanosecond() == 0 {
		return u.Format(time.DateOnly)
	}
	return u.Format("2006-01-02 15:04")
}

func orEmpty(s string) string {
	if s == "" {
		return emptyValue
	}
	return s
}
