package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/signalnine/scriptgate/internal/result"
	"github.com/spf13/cobra"
)

func newRetroCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "retro",
		Short: "Re-validate every existing script in the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(logger)
			if err != nil {
				return err
			}
			defer a.Close()
			// Retroactive runs always fall back to the full script set.
			a.pipeline.Config.RetroactiveTesting = true

			ctx, stop := signalContext(context.Background())
			defer stop()

			job, sum := a.pipeline.RunRetroactive(ctx)
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(sum); err != nil {
					return err
				}
			} else {
				fmt.Printf("Retroactive validation (%s)\n", job.JobID)
				fmt.Printf("  Total scripts:      %d\n", sum.TotalScripts)
				fmt.Printf("  Ready for auto-PR:  %d\n", sum.ReadyForAutoPR)
				fmt.Printf("  Need manual review: %d\n", sum.NeedManualReview)
				fmt.Printf("  Confidence:         %.1f%%\n", sum.AverageConfidence)
				fmt.Printf("  Recommended action: %s\n", sum.RecommendedAction)
				fmt.Printf("  Auto-PR attempted:  %t\n", sum.AutoPRAttempted)
			}
			if job.Status == result.JobFailed {
				return fmt.Errorf("%w: %s", errJobFailed, job.Error)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	return cmd
}
