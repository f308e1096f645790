package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"partsdash/internal/backend"
	"partsdash/internal/config"
	"partsdash/internal/dashboard"
	"partsdash/internal/dealer"
	"partsdash/internal/prediction"
	"partsdash/internal/stockdb"
	"partsdash/internal/storage"
	"partsdash/internal/supervisor"
)

// app is the wired component graph shared by every subcommand.
type app struct {
	cfg    config.Config
	logger *slog.Logger

	client  *backend.Client
	stockDB *stockdb.Lookup
	table   storage.Table
	bus     *supervisor.EventBus
	metrics *supervisor.Metrics
	health  *supervisor.HealthChecker

	dealer *dealer.Selector
	orch   *prediction.Orchestrator
	bulk   *prediction.BulkFetcher
	dash   *dashboard.Service
}

// newApp builds the components. When serving is false the event bus,
// metrics and health checker are left out.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, serving bool) (*app, error) {
	f := cfg.Features()
	a := &app{cfg: cfg, logger: logger}

	client, err := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout)
	if err != nil {
		return nil, fmt.Errorf("backend client: %w", err)
	}
	a.client = client

	var stockSource backend.SuggestedStockSource = client
	if f.StockDB {
		lookup, err := stockdb.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.stockDB = lookup
		stockSource = lookup
		logger.Info("PI suggested stock read from database")
	}

	if f.Storage {
		st, err := storage.NewSQLiteStore(cfg.StoragePath, cfg.StorageMaxRows, logger)
		if err != nil {
			logger.Warn("sqlite unavailable, keeping rows in memory", "path", cfg.StoragePath, "err", err)
			a.table = storage.NewMemoryStore(cfg.StorageMaxRows)
		} else {
			a.table = st
		}
	} else {
		a.table = storage.NewMemoryStore(cfg.StorageMaxRows)
	}

	if serving && f.Events {
		a.bus = supervisor.NewEventBus(cfg.EventBuffer)
	}
	if serving && f.Metrics {
		a.metrics = supervisor.NewMetrics()
	}
	if serving && f.HealthCheck {
		a.health = supervisor.NewHealthChecker(a.pinger(), cfg.HealthCheckInterval, cfg.HealthCheckTimeout, a.metrics, logger)
	}

	a.dealer = dealer.NewSelector(cfg.DealerStatePath, cfg.DealerCode, a.bus, logger)

	retryer := supervisor.NewRetryer(supervisor.RetryConfig{
		MaxAttempts:  cfg.RetryMaxAttempts,
		InitialDelay: cfg.RetryInitialDelay,
	}, a.metrics)

	a.orch = prediction.NewOrchestrator(prediction.Options{
		Predictor: client,
		Stock:     backend.NewStockCache(stockSource, cfg.StockCacheTTL),
		Table:     a.table,
		Retryer:   retryer,
		Bus:       a.bus,
		Metrics:   a.metrics,
		Logger:    logger,
		PageSize:  cfg.RowsPerPage,
	})

	// Only the server recovers leftovers: a CLI run sharing the SQLite file
	// would otherwise fail rows the server still has in flight.
	if serving {
		n, err := a.orch.FailInterrupted()
		if err != nil {
			logger.Warn("failed to close out interrupted rows", "err", err)
		} else if n > 0 {
			logger.Info("marked interrupted rows failed", "count", n)
		}
	}
	a.bulk = prediction.NewBulkFetcher(client, cfg.RowsPerPage, a.bus, a.metrics, logger)
	a.dash = dashboard.NewService(client, cfg.RowsPerPage, a.metrics, logger)

	return a, nil
}

// pinger checks the backend and, when configured, the stock database.
func (a *app) pinger() supervisor.Pinger {
	return pingFunc(func(ctx context.Context) error {
		err := a.client.Ping(ctx)
		if a.stockDB != nil {
			if dbErr := a.stockDB.Ping(ctx); dbErr != nil {
				err = errors.Join(err, fmt.Errorf("stock database: %w", dbErr))
			}
		}
		return err
	})
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Close stops background work first, then releases storage.
func (a *app) Close() {
	a.orch.Close()
	if a.health != nil {
		a.health.Shutdown()
	}
	a.bulk.Reset()
	a.bus.Shutdown()
	if err := a.table.Close(); err != nil {
		a.logger.Warn("failed to close row table", "err", err)
	}
	if a.stockDB != nil {
		if err := a.stockDB.Close(); err != nil {
			a.logger.Warn("failed to close stock database", "err", err)
		}
	}
}
