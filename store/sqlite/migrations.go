package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for SQLite. Amounts are stored
// as decimal TEXT and timestamps as fixed-width UTC TEXT so that both keep
// their exact value and sort lexically.
var Migrations = migrate.NewGroup("condoledger")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_condo_owners",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS condo_owners (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    email      TEXT NOT NULL DEFAULT '',
    phone      TEXT NOT NULL DEFAULT '',
    tax_id     TEXT NOT NULL DEFAULT '',
    address    TEXT NOT NULL DEFAULT '',
    metadata   TEXT NOT NULL DEFAULT '{}',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_condo_owners_name ON condo_owners (name, id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS condo_owners`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_condo_accounts",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS condo_accounts (
    id              TEXT PRIMARY KEY,
    owner_id        TEXT NOT NULL REFERENCES condo_owners (id),
    initial_balance TEXT NOT NULL DEFAULT '0',
    current_balance TEXT NOT NULL DEFAULT '0',
    created_at      TEXT NOT NULL,
    updated_at      TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_condo_accounts_owner ON condo_accounts (owner_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS condo_accounts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_condo_postings",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS condo_postings (
    id          TEXT PRIMARY KEY,
    account_id  TEXT NOT NULL REFERENCES condo_accounts (id),
    kind        TEXT NOT NULL CHECK (kind IN ('CREDIT', 'DEBIT')),
    amount      TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    occurred_at TEXT NOT NULL,
    created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_condo_postings_account ON condo_postings (account_id, occurred_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS condo_postings`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_condo_payments",
			Version: "20250101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS condo_payments (
    id          TEXT PRIMARY KEY,
    amount      TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    state       TEXT NOT NULL,
    issued_at   TEXT NOT NULL,
    due_at      TEXT,
    active      INTEGER NOT NULL DEFAULT 1,
    unit_id     TEXT NOT NULL DEFAULT '',
    owner_id    TEXT NOT NULL DEFAULT '',
    tenant_id   TEXT NOT NULL DEFAULT '',
    user_id     TEXT NOT NULL DEFAULT '',
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_condo_payments_listing ON condo_payments (active, issued_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_condo_payments_owner ON condo_payments (owner_id, active, state);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS condo_payments`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_condo_payment_audit",
			Version: "20250101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS condo_payment_audit (
    id             TEXT PRIMARY KEY,
    payment_id     TEXT NOT NULL,
    action         TEXT NOT NULL,
    detail         TEXT NOT NULL DEFAULT '',
    acting_user_id TEXT NOT NULL DEFAULT '',
    recorded_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_condo_payment_audit_payment ON condo_payment_audit (payment_id, recorded_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS condo_payment_audit`)
				return err
			},
		},
	)
}
