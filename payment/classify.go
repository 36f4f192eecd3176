package payment

import (
	"fmt"
	"math"
	"time"
)

const day = 24 * time.Hour

// Status is the bucket a payment falls in relative to its due date.
type Status string

const (
	StatusPaid              Status = "paid"
	StatusNoDueDate         Status = "no_due_date"
	StatusPending           Status = "pending"
	StatusMildlyOverdue     Status = "mildly_overdue"
	StatusModeratelyOverdue Status = "moderately_overdue"
	StatusSeverelyOverdue   Status = "severely_overdue"
)

// Label is the derived, human-readable status of a payment.
type Label struct {
	Status Status
	Days   int
}

func (l Label) String() string {
	switch l.Status {
	case StatusPaid:
		return "Paid"
	case StatusNoDueDate:
		return "No due date set"
	case StatusPending:
		return fmt.Sprintf("Pending (%d days until due)", l.Days)
	case StatusMildlyOverdue:
		return fmt.Sprintf("Mildly overdue (%d days)", l.Days)
	case StatusModeratelyOverdue:
		return fmt.Sprintf("Moderately overdue (%d days)", l.Days)
	case StatusSeverelyOverdue:
		return fmt.Sprintf("Severely overdue (%d days)", l.Days)
	default:
		return ""
	}
}

// IsOverdue reports whether the label is one of the overdue buckets.
func (l Label) IsOverdue() bool {
	switch l.Status {
	case StatusMildlyOverdue, StatusModeratelyOverdue, StatusSeverelyOverdue:
		return true
	default:
		return false
	}
}

// MarshalText renders the label as its display string.
func (l Label) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// Thresholds are the inclusive upper bounds, in days overdue, of the mild
// and moderate buckets. Anything above Moderate is severe.
type Thresholds struct {
	Mild     int `json:"mild" mapstructure:"mild" yaml:"mild"`
	Moderate int `json:"moderate" mapstructure:"moderate" yaml:"moderate"`
}

// DefaultThresholds returns 15 and 30 days.
func DefaultThresholds() Thresholds { return Thresholds{Mild: 15, Moderate: 30} }

// Classify labels a payment from its state and due date using the default
// thresholds.
func Classify(state State, dueAt *time.Time, now time.Time) Label {
	return ClassifyWith(DefaultThresholds(), state, dueAt, now)
}

// ClassifyWith labels a payment. Days until due round up, days overdue
// round down, both measured on the exact duration from now.
func ClassifyWith(th Thresholds, state State, dueAt *time.Time, now time.Time) Label {
	if state == StatePaid {
		return Label{Status: StatusPaid}
	}
	if dueAt == nil {
		return Label{Status: StatusNoDueDate}
	}

	if now.Before(*dueAt) {
		days := int(math.Ceil(float64(dueAt.Sub(now)) / float64(day)))
		return Label{Status: StatusPending, Days: days}
	}

	overdue := int(now.Sub(*dueAt) / day)
	switch {
	case overdue <= th.Mild:
		return Label{Status: StatusMildlyOverdue, Days: overdue}
	case overdue <= th.Moderate:
		return Label{Status: StatusModeratelyOverdue, Days: overdue}
	default:
		return Label{Status: StatusSeverelyOverdue, Days: overdue}
	}
}

// ClassifyAll attaches labels to every payment against a single now.
func ClassifyAll(th Thresholds, payments []*Payment, now time.Time) {
	for _, p := range payments {
		p.Classification = ClassifyWith(th, p.State, p.DueAt, now)
	}
}
