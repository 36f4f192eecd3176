package main

import (
	"context"
	"fmt"
	"log/slog"

	ledger "github.com/xraph/condoledger"
	"github.com/xraph/condoledger/config"
	"github.com/xraph/condoledger/publisher"
	"github.com/xraph/condoledger/publisher/kafka"
	"github.com/xraph/condoledger/publisher/rabbitmq"
	"github.com/xraph/condoledger/store"
	"github.com/xraph/condoledger/store/memory"
	"github.com/xraph/condoledger/store/mongo"
	"github.com/xraph/condoledger/store/postgres"
	"github.com/xraph/condoledger/store/sqlite"
)

// openLedger builds the store and event sinks named by cfg and starts the
// engine, which migrates the store.
func openLedger(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*ledger.Ledger, error) {
	s, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts := []ledger.Option{
		ledger.WithLogger(logger),
		ledger.WithLocale(cfg.Locale),
		ledger.WithThresholds(cfg.Thresholds),
	}

	if len(cfg.KafkaBrokers) > 0 {
		sink := kafka.NewSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		opts = append(opts, ledger.WithPlugin(publisher.New(sink)))
	}
	if cfg.RabbitMQURL != "" {
		sink, err := rabbitmq.Dial(cfg.RabbitMQURL, cfg.RabbitMQQueue)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		opts = append(opts, ledger.WithPlugin(publisher.New(sink)))
	}

	l := ledger.New(s, opts...)
	if err := l.Start(ctx); err != nil {
		_ = l.Stop()
		return nil, err
	}
	return l, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.DatabaseURL, int(cfg.PGMaxConns))
	case config.DriverSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath)
	case config.DriverMongo:
		return mongo.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
