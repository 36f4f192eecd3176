package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xraph/grove/drivers/sqlitedriver"

	ledgerstore "github.com/xraph/condoledger/store"
	"github.com/xraph/condoledger/store/storetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
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
	err := s.sq.NewRaw(`SELECT COUNT(*) FROM grove_migrations WHERE "group" = ?`, Migrations.Name()).Scan(ctx, &applied)
	if err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if want := int64(len(Migrations.Migrations())); applied != want {
		t.Errorf("applied migrations: got %d, want %d", applied, want)
	}
}

func TestTimeLayoutSortsLexically(t *testing.T) {
	tests := []struct {
		name        string
		early, late time.Time
	}{
		{"Nanoseconds", time.Date(2025, 1, 1, 0, 0, 0, 9, time.UTC), time.Date(2025, 1, 1, 0, 0, 0, 10, time.UTC)},
		{"Whole seconds", time.Date(2025, 1, 1, 0, 0, 9, 0, time.UTC), time.Date(2025, 1, 1, 0, 0, 10, 0, time.UTC)},
		{"Zones", time.Date(2025, 1, 1, 1, 0, 0, 0, time.FixedZone("WAT", 3600)), time.Date(2025, 1, 1, 0, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := formatTime(tt.early), formatTime(tt.late)
			if a >= b {
				t.Errorf("formatTime: %q should sort before %q", a, b)
			}
			back, err := parseTime(a)
			if err != nil {
				t.Fatalf("parseTime: %v", err)
			}
			if !back.Equal(tt.early) {
				t.Errorf("round trip: got %v, want %v", back, tt.early)
			}
		})
	}
}

func TestPage(t *testing.T) {
	tests := []struct {
		name          string
		limit, offset int
		want          string
	}{
		{"Unbounded", 0, 0, ""},
		{"Limit", 20, 0, " LIMIT 20"},
		{"Limit and offset", 20, 40, " LIMIT 20 OFFSET 40"},
		{"Offset only", 0, 5, " LIMIT 2147483647 OFFSET 5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := page(sqlitedriver.New().NewSelect((*ownerModel)(nil)), tt.limit, tt.offset)
			query, _, err := q.Build()
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if tt.want == "" && strings.Contains(query, "LIMIT") {
				t.Errorf("page(%d, %d): got %q, want no LIMIT", tt.limit, tt.offset, query)
			}
			if !strings.HasSuffix(query, tt.want) {
				t.Errorf("page(%d, %d): got %q, want suffix %q", tt.limit, tt.offset, query, tt.want)
			}
		})
	}
}

func TestForUpdateReadsInsideImmediateTx(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.RunInTx(ctx, func(ctx context.Context) error {
		if _, ok := ctx.Value(txKey{}).(*sqlitedriver.SqliteTx); !ok {
			t.Error("transaction missing from context")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx: %v", err)
	}
	if got := dsn("x.db"); !strings.Contains(got, "_txlock=immediate") {
		t.Errorf("dsn: got %q, want immediate transactions", got)
	}
}
