// Package ledger is the bookkeeping core of a condominium administration
// system: owners' running accounts, payment records with an audit trail,
// and the money and overdue rules both depend on.
//
// Ledger is designed as a library, not a service. It provides:
//
//   - Running accounts whose balance moves only through credit and debit
//     postings, each posting and balance change committed atomically
//   - Payment records with soft deletion, filtered paginated listing and
//     derived overdue labels
//   - An append-only audit trail with one entry per create, field-changing
//     update and deactivation
//   - Locale-aware parsing and display of exact decimal amounts
//   - Memory, PostgreSQL, SQLite and MongoDB stores
//   - Plugins for audit forwarding, metrics and event publishing
//
// # Quick Start
//
//	import (
//	    ledger "github.com/xraph/condoledger"
//	    "github.com/xraph/condoledger/store/postgres"
//	)
//
//	store, err := postgres.Open(ctx, databaseURL, 10)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	l := ledger.New(store)
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// # Accounts
//
// An owner has at most one account. A positive initial balance is booked
// as an opening credit posting, so the stored balance always equals the
// sum of the account's signed postings:
//
//	acct, err := l.OpenAccount(ctx, ownerID, "15.000,00 AOA")
//	_, err = l.Post(ctx, ledger.PostInput{
//	    AccountID: acct.ID,
//	    Kind:      ledger.Debit,
//	    Amount:    "2.500,00",
//	})
//
// # Payments
//
// Payments are never hard-deleted through the lifecycle; DeactivatePayment
// clears the active flag and is audited like any other change:
//
//	p, err := l.CreatePayment(ctx, ledger.CreatePaymentInput{Amount: "100,00", DueAt: &due})
//	paid := "PAID"
//	p, err = l.UpdatePayment(ctx, p.ID, payment.Patch{State: paid})
//	trail, err := l.AuditTrail(ctx, p.ID)
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	own_01h2xcejqtf2nbrexx3vqjhp41   // Owner ID
//	acct_01h2xcejqtf2nbrexx3vqjhp41  // Account ID
//	pay_01h455vb4pex5vsknk084sn02q   // Payment ID
//
// TypeIDs are K-sortable, which gives stable tie-breaking in listings.
package ledger
