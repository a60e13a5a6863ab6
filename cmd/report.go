package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/signalnine/scriptgate/internal/report"
	"github.com/signalnine/scriptgate/internal/result"
	"github.com/spf13/cobra"
)

var flagFormat string

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [job-id]",
		Short: "Summarize recorded jobs, or print one job record",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := result.OpenStore(cfg.Results)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			if len(args) == 1 {
				job, err := store.Load(ctx, args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(job)
			}
			jobs, err := store.List(ctx)
			if err != nil {
				return err
			}
			return report.Generate(jobs, flagFormat, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&flagFormat, "format", "table", "output format (table, markdown, json)")
	return cmd
}
