package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"partsdash/internal/backend"
	"partsdash/internal/export"
	"partsdash/internal/prediction"
)

func newPredictCmd(opts *rootOptions) *cobra.Command {
	var part, month string

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict monthly demand for one part",
		Example: `  partsdash predict --part 15400-RTA-003
  partsdash predict --part 15400-RTA-003 --month March --dealer 10131`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts.cfg, opts.logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			row, err := a.orch.Submit(prediction.Request{
				DealerCode: a.dealer.Resolve(opts.dealer),
				PartNumber: part,
				Month:      month,
			})
			if err != nil {
				return err
			}

			done := make(chan struct{})
			go func() {
				a.orch.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}

			got, err := a.orch.Get(row.Key)
			if err != nil {
				return err
			}
			if got == nil {
				return fmt.Errorf("row %s was evicted before it resolved", row.Key)
			}
			if err := renderRows(cmd.OutOrStdout(), opts.output, *got); err != nil {
				return err
			}
			if msg := a.orch.LastError(); msg != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), msg)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&part, "part", "", "part number (required)")
	cmd.Flags().StringVar(&month, "month", prediction.DefaultMonth.String(), "target month")
	_ = cmd.MarkFlagRequired("part")
	return cmd
}

func newTop100Cmd(opts *rootOptions) *cobra.Command {
	var (
		month string
		page  int
	)

	cmd := &cobra.Command{
		Use:   "top100",
		Short: "Show the Top-100 predicted parts for a dealer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := prediction.ParseMonth(month)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), opts.cfg, opts.logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.bulk.FetchTop100(cmd.Context(), a.dealer.Resolve(opts.dealer), m); err != nil {
				return err
			}
			view := a.bulk.View(page)
			if err := renderTop100(cmd.OutOrStdout(), opts.output, view); err != nil {
				return err
			}
			if view.Error != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), view.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", prediction.DefaultMonth.String(), "target month")
	cmd.Flags().IntVar(&page, "page", 1, "page to show")
	return cmd
}

var exportKinds = []string{"predictions", "top100", "idle", "pre-idle", "drop-ship", "normal"}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var kind, month, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a result table or part list to an Excel workbook",
		Example: `  partsdash export --kind predictions --out predictions.xlsx
  partsdash export --kind idle`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts.cfg, opts.logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			dealerCode := a.dealer.Resolve(opts.dealer)

			var t export.Table
			switch kind {
			case "predictions":
				rows, err := a.orch.Rows()
				if err != nil {
					return err
				}
				t = export.PredictionRows(rows)
			case "top100":
				m, err := prediction.ParseMonth(month)
				if err != nil {
					return err
				}
				if err := a.bulk.FetchTop100(ctx, dealerCode, m); err != nil {
					return err
				}
				if msg := a.bulk.View(1).Error; msg != "" {
					return errors.New(msg)
				}
				t = export.Top100(a.bulk.Entries())
			default:
				k, err := backend.ParsePartListKind(kind)
				if err != nil {
					return fmt.Errorf("unknown kind %q (must be %s)", kind, strings.Join(exportKinds, "|"))
				}
				records, err := a.dash.PartList(ctx, k, dealerCode)
				if err != nil {
					return err
				}
				t = export.PartList(k, records)
			}

			if out == "" {
				out = kind + ".xlsx"
			}
			return writeWorkbookFile(out, t)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "predictions", "what to export ("+strings.Join(exportKinds, "|")+")")
	cmd.Flags().StringVar(&month, "month", prediction.DefaultMonth.String(), "target month for top100")
	cmd.Flags().StringVar(&out, "out", "", "output file (default <kind>.xlsx)")
	_ = cmd.RegisterFlagCompletionFunc("kind", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return exportKinds, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func writeWorkbookFile(path string, t export.Table) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.Write(f, t); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
