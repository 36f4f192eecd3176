package ledger_test

import (
	"context"
	"log"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	ledger "github.com/xraph/condoledger"
	"github.com/xraph/condoledger/owner"
	"github.com/xraph/condoledger/payment"
	"github.com/xraph/condoledger/store/memory"
	"github.com/xraph/condoledger/types"
)

// TestDocumentationExamples verifies that the examples in the package
// documentation work as written.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		l := ledger.New(store,
			ledger.WithLogger(slog.Default()),
			ledger.WithThresholds(payment.DefaultThresholds()),
		)

		ctx := context.Background()
		if err := l.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer l.Stop()

		o := &owner.Owner{Name: "João Baptista", Email: "joao@example.com"}
		if err := l.CreateOwner(ctx, o); err != nil {
			t.Fatal(err)
		}

		// Accounts
		acct, err := l.OpenAccount(ctx, o.ID, "15.000,00 AOA")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := l.Post(ctx, ledger.PostInput{
			AccountID: acct.ID,
			Kind:      ledger.Debit,
			Amount:    "2.500,00",
		}); err != nil {
			t.Fatal(err)
		}

		acct, err = l.GetAccount(ctx, acct.ID)
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("Balance: %s\n", acct.CurrentBalanceFormatted)
		if acct.CurrentBalanceFormatted != "12.500,00 AOA" {
			t.Errorf("balance: got %q", acct.CurrentBalanceFormatted)
		}

		// Payments
		due := time.Now().Add(72 * time.Hour)
		p, err := l.CreatePayment(ctx, ledger.CreatePaymentInput{Amount: "100,00", DueAt: &due, OwnerID: o.ID})
		if err != nil {
			t.Fatal(err)
		}
		p, err = l.UpdatePayment(ctx, p.ID, payment.Patch{State: "PAID"})
		if err != nil {
			t.Fatal(err)
		}
		trail, err := l.AuditTrail(ctx, p.ID)
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range trail {
			log.Printf("%s %s\n", e.Action, e.Detail)
		}
		if len(trail) != 2 {
			t.Errorf("audit trail: got %d entries, want 2", len(trail))
		}
	})

	t.Run("MoneyExamples", func(t *testing.T) {
		loc := types.DefaultLocale()

		_ = loc.Normalize("15 000,00")            // 15000
		_ = loc.Normalize("1.234,56 AOA")         // 1234.56
		_ = loc.Format(decimal.NewFromInt(15000)) // "15.000,00 AOA"

		if got := loc.Normalize(loc.Format(decimal.RequireFromString("-1234.5"))); !got.Equal(decimal.RequireFromString("-1234.5")) {
			t.Errorf("round trip: got %s", got)
		}
	})
}
