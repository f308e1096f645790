package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"partsdash/internal/api"
	"partsdash/web"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard HTTP service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().String("listen", "", "listen address (overrides LISTEN_ADDR)")
	return cmd
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, logger := opts.cfg, opts.logger
	logConfig(logger, cfg)

	a, err := newApp(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer a.Close()

	deps := api.Deps{
		Config:       cfg,
		Orchestrator: a.orch,
		Bulk:         a.bulk,
		Dashboard:    a.dash,
		Dealer:       a.dealer,
		Bus:          a.bus,
		Metrics:      a.metrics,
		Health:       a.health,
		Logger:       logger,
	}
	if cfg.Features().Page {
		assets, err := web.Assets()
		if err != nil {
			logger.Warn("dashboard assets unavailable", "err", err)
		} else {
			deps.Assets = assets
		}
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewServer(deps).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting partsdash", "listen", cfg.ListenAddr, "backend", cfg.BackendURL, "dealer_code", a.dealer.Current())

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	// Closing the bus ends open event streams so Shutdown can drain.
	a.bus.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
