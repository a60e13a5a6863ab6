package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/signalnine/scriptgate/internal/report"
	"github.com/signalnine/scriptgate/internal/runner"
	"github.com/spf13/cobra"
)

func newEvaluateCmd() *cobra.Command {
	var (
		format     string
		reportPath string
		workers    int
	)
	cmd := &cobra.Command{
		Use:   "evaluate <script>...",
		Short: "Evaluate scripts without recording a job",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ev, err := newEvaluator(cfg, logger)
			if err != nil {
				return err
			}
			if workers <= 0 {
				workers = cfg.Execution.Workers
			}

			ctx, stop := signalContext(context.Background())
			defer stop()

			results, err := runner.EvaluateAll(ctx, ev, args, workers)
			if err != nil {
				return err
			}
			if err := report.WriteScripts(results, cfg.Thresholds, format, os.Stdout); err != nil {
				return err
			}
			if reportPath != "" {
				md := report.TestReport(results, cfg.Thresholds, time.Now())
				if err := os.WriteFile(reportPath, []byte(md), 0o644); err != nil {
					return fmt.Errorf("writing report: %w", err)
				}
				fmt.Printf("Report written to %s\n", reportPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "output format (table, markdown, json)")
	cmd.Flags().StringVar(&reportPath, "report", "", "also write a Markdown test report to this file")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent evaluations (default from config)")
	return cmd
}
