// Command condoledger is the operator tool for the condominium ledger.
//
//	condoledger [--env-file path] migrate
//	condoledger [--env-file path] overdue [--owner id] [--page-size n]
//	condoledger [--env-file path] balance <account-id>... [--verify]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/xraph/condoledger/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "condoledger:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	global := pflag.NewFlagSet("condoledger", pflag.ContinueOnError)
	global.SetOutput(stderr)
	global.SetInterspersed(false)
	envFiles := global.StringSlice("env-file", nil, "dotenv file(s) to load before the environment")
	global.Usage = func() {
		fmt.Fprintln(stderr, "usage: condoledger [--env-file path] <migrate|overdue|balance> [flags]")
		global.PrintDefaults()
	}
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return errors.New("missing command")
	}

	cfg, err := config.Load(*envFiles...)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	command, rest := global.Arg(0), global.Args()[1:]
	cmd, ok := commands[command]
	if !ok {
		global.Usage()
		return fmt.Errorf("unknown command %q", command)
	}

	l, err := openLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := l.Stop(); err != nil {
			logger.Warn("ledger stop failed", "error", err)
		}
	}()

	return cmd(ctx, l, rest, stdout, stderr)
}
