package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/xraph/grove/drivers/pgdriver"

	"github.com/xraph/condoledger/payment"
	ledgerstore "github.com/xraph/condoledger/store"
	"github.com/xraph/condoledger/store/storetest"
)

// newTestStore connects to CONDOLEDGER_PG_URL and gives each test a clean
// schema. Tests are skipped when the variable is unset.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("CONDOLEDGER_PG_URL")
	if url == "" {
		t.Skip("CONDOLEDGER_PG_URL not set")
	}

	ctx := context.Background()
	s, err := Open(ctx, url, 0)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	_, err = s.pg.NewRaw(`TRUNCATE condo_payment_audit, condo_payments, condo_postings, condo_accounts, condo_owners`).Exec(ctx)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return s
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) ledgerstore.Store {
		return newTestStore(t)
	})
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	var applied int64
	err := s.pg.NewRaw(`SELECT count(*) FROM grove_migrations WHERE "group" = $1`, Migrations.Name()).Scan(ctx, &applied)
	if err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if want := int64(len(Migrations.Migrations())); applied != want {
		t.Errorf("applied migrations: got %d, want %d", applied, want)
	}
}

func TestRunInTxExposesTx(t *testing.T) {
	s := newTestStore(t)

	err := s.RunInTx(context.Background(), func(ctx context.Context) error {
		if _, ok := ctx.Value(txKey{}).(*pgdriver.PgTx); !ok {
			t.Error("transaction missing from context")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx: %v", err)
	}
}

func TestPaymentWhere(t *testing.T) {
	active := true
	tests := []struct {
		name     string
		filter   payment.Filter
		want     string
		wantArgs int
	}{
		{"Empty", payment.Filter{}, "", 0},
		{"Active", payment.Filter{Active: &active}, "active = $1", 1},
		{"Active and state", payment.Filter{Active: &active, State: payment.StatePaid}, "active = $1 AND state = $2", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, args := paymentWhere(tt.filter)
			if got != tt.want {
				t.Errorf("where: got %q, want %q", got, tt.want)
			}
			if len(args) != tt.wantArgs {
				t.Errorf("args: got %d, want %d", len(args), tt.wantArgs)
			}
		})
	}
}
