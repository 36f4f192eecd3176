package payment

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/condoledger/types"
)

func TestDiff(t *testing.T) {
	loc := types.DefaultLocale()
	due := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	before := &Payment{
		Amount: decimal.NewFromInt(100),
		State:  StatePending,
		DueAt:  &due,
	}
	after := before.Clone()
	after.Amount = decimal.NewFromInt(150)
	after.State = StatePaid
	after.Description = "Quota"
	after.DueAt = nil

	got := Describe(Diff(before, after, loc))
	want := "Amount: 100,00 → 150,00, State: PENDING → PAID, Description: — → Quota, Due date: 2025-01-10 → —"
	if got != want {
		t.Errorf("Describe: got %q, want %q", got, want)
	}
}

func TestDiffNoChange(t *testing.T) {
	due := time.Date(2025, 1, 10, 9, 30, 0, 0, time.UTC)
	before := &Payment{Amount: decimal.RequireFromString("10.0"), State: StatePending, DueAt: &due}
	after := before.Clone()
	after.Amount = decimal.NewFromInt(10)

	if changes := Diff(before, after, types.DefaultLocale()); len(changes) != 0 {
		t.Errorf("Diff: got %v, want no changes", changes)
	}
}

func TestFilterMatches(t *testing.T) {
	p := &Payment{Active: true, State: StatePaid}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"Empty", Filter{}, true},
		{"Active", Filter{Active: Bool(true)}, true},
		{"Inactive", Filter{Active: Bool(false)}, false},
		{"State", Filter{State: StatePaid}, true},
		{"Other state", Filter{State: StatePending}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(p); got != tt.want {
				t.Errorf("Matches: got %v, want %v", got, tt.want)
			}
		})
	}
}
