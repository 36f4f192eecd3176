package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	ledger "github.com/xraph/condoledger"
	"github.com/xraph/condoledger/account"
	"github.com/xraph/condoledger/id"
	"github.com/xraph/condoledger/payment"
)

type command func(ctx context.Context, l *ledger.Ledger, args []string, stdout, stderr io.Writer) error

var commands = map[string]command{
	"migrate": migrateCmd,
	"overdue": overdueCmd,
	"balance": balanceCmd,
}

// maxBalanceLookups bounds concurrent account reads in the balance command.
const maxBalanceLookups = 8

func newFlagSet(name string, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// migrateCmd has nothing left to do: openLedger already migrated the store.
func migrateCmd(_ context.Context, _ *ledger.Ledger, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("migrate", stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	_, err := fmt.Fprintln(stdout, "migrations applied")
	return err
}

func overdueCmd(ctx context.Context, l *ledger.Ledger, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("overdue", stderr)
	owner := fs.String("owner", "", "only payments of this owner")
	pageSize := fs.Int("page-size", 0, "print at most n payments (0 prints all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var f payment.Filter
	if *owner != "" {
		ownerID, err := id.ParseOwnerID(*owner)
		if err != nil {
			return fmt.Errorf("--owner: %w", err)
		}
		f.OwnerID = ownerID
	}

	overdue, err := l.Overdue(ctx, f)
	if err != nil {
		return err
	}
	if *pageSize > 0 && len(overdue) > *pageSize {
		overdue = overdue[:*pageSize]
	}
	return printOverdue(stdout, l, overdue)
}

func printOverdue(w io.Writer, l *ledger.Ledger, payments []*payment.Payment) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PAYMENT\tOWNER\tAMOUNT\tDUE\tSTATUS")
	for _, p := range payments {
		due := "-"
		if p.DueAt != nil {
			due = p.DueAt.Format("2006-01-02")
		}
		owner := "-"
		if !p.OwnerID.IsNil() {
			owner = p.OwnerID.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, owner, l.Format(p.Amount), due, p.Classification)
	}
	return tw.Flush()
}

type balanceRow struct {
	account *account.Account
	report  *ledger.BalanceReport
}

func balanceCmd(ctx context.Context, l *ledger.Ledger, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("balance", stderr)
	verify := fs.Bool("verify", false, "recompute each balance from its postings")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("balance: at least one account id is required")
	}

	ids := make([]id.AccountID, fs.NArg())
	for i, raw := range fs.Args() {
		accountID, err := id.ParseAccountID(raw)
		if err != nil {
			return fmt.Errorf("balance: %w", err)
		}
		ids[i] = accountID
	}

	rows := make([]balanceRow, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxBalanceLookups)
	for i, accountID := range ids {
		g.Go(func() error {
			a, err := l.GetAccount(gctx, accountID)
			if err != nil {
				return fmt.Errorf("%s: %w", accountID, err)
			}
			rows[i].account = a
			if *verify {
				// Drift is reported in the table, not as a failure.
				report, err := l.VerifyBalance(gctx, accountID)
				if err != nil && !errors.Is(err, ledger.ErrBalanceDrift) {
					return fmt.Errorf("%s: %w", accountID, err)
				}
				rows[i].report = report
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return printBalances(stdout, l, rows, *verify)
}

func printBalances(w io.Writer, l *ledger.Ledger, rows []balanceRow, verify bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if verify {
		fmt.Fprintln(tw, "ACCOUNT\tOWNER\tBALANCE\tCOMPUTED\tDRIFT\tPOSTINGS")
	} else {
		fmt.Fprintln(tw, "ACCOUNT\tOWNER\tINITIAL\tBALANCE")
	}
	for _, r := range rows {
		a := r.account
		if verify {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n",
				a.ID, a.OwnerID,
				l.Format(r.report.Stored), l.Format(r.report.Computed), l.Format(r.report.Drift()),
				r.report.Postings,
			)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.ID, a.OwnerID, l.Format(a.InitialBalance), l.Format(a.CurrentBalance))
	}
	return tw.Flush()
}
