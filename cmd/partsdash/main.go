package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"partsdash/internal/config"
)

// Version is set at build time.
var Version = "dev"

type rootOptions struct {
	envFile string
	backend string
	dealer  string
	output  string

	cfg    config.Config
	logger *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:     "partsdash",
		Short:   "Dealer parts inventory dashboard",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			return opts.load(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	root.PersistentFlags().StringVar(&opts.backend, "backend", "", "backend base URL (overrides BACKEND_URL)")
	root.PersistentFlags().StringVar(&opts.dealer, "dealer", "", "dealer code (overrides DEALER_CODE)")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "output format (table|json)")

	_ = root.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(
		newServeCmd(opts),
		newPredictCmd(opts),
		newTop100Cmd(opts),
		newExportCmd(opts),
	)
	return root
}

// load reads the dotenv file, applies flag overrides and builds the config.
// Flags are applied through the environment so validation stays in config.Load.
func (o *rootOptions) load(cmd *cobra.Command) error {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", o.envFile, err)
		}
	}

	overrides := map[string]string{
		"BACKEND_URL": o.backend,
		"DEALER_CODE": o.dealer,
	}
	if f := cmd.Flags().Lookup("listen"); f != nil && f.Changed {
		overrides["LISTEN_ADDR"] = f.Value.String()
	}
	for k, v := range overrides {
		if v != "" {
			if err := os.Setenv(k, v); err != nil {
				return err
			}
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	o.cfg = cfg
	o.logger = newLogger(cfg.LogLevel)
	return nil
}

func newLogger(level string) *slog.Logger {
	lvl := new(slog.LevelVar)
	switch level {
	case "debug":
		lvl.Set(slog.LevelDebug)
	case "info":
		lvl.Set(slog.LevelInfo)
	case "warn", "warning":
		lvl.Set(slog.LevelWarn)
	case "error":
		lvl.Set(slog.LevelError)
	default:
		lvl.Set(slog.LevelInfo)
	}

	// stderr keeps stdout clean for CLI tables.
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(h)
}

func logConfig(logger *slog.Logger, cfg config.Config) {
	f := cfg.Features()
	logger.Info("configuration",
		"mode", string(cfg.Mode),
		"listen_addr", cfg.ListenAddr,
		"backend_url", cfg.BackendURL,
		"backend_timeout", cfg.BackendTimeout,
		"dealer_code", cfg.DealerCode,
		"dealer_state_path", cfg.DealerStatePath,
		"storage", string(cfg.Storage),
		"storage_path", cfg.StoragePath,
		"storage_max_rows", cfg.StorageMaxRows,
		"retry_max_attempts", cfg.RetryMaxAttempts,
		"retry_initial_delay", cfg.RetryInitialDelay,
		"rows_per_page", cfg.RowsPerPage,
		"stock_cache_ttl", cfg.StockCacheTTL,
		"stock_db", f.StockDB,
		"health_check_interval", cfg.HealthCheckInterval,
		"event_buffer", cfg.EventBuffer,
		"cors_allow_origin", cfg.CORSAllowOrigin,
		"log_level", cfg.LogLevel,
	)
}
