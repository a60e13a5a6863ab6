package cmd

import (
	"context"
	"fmt"

	"github.com/signalnine/scriptgate/internal/discovery"
	"github.com/signalnine/scriptgate/internal/result"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var jobs bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List script categories, or recorded jobs with --jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if jobs {
				store, err := result.OpenStore(cfg.Results)
				if err != nil {
					return err
				}
				defer store.Close()
				records, err := store.List(context.Background())
				if err != nil {
					return err
				}
				for _, j := range records {
					fmt.Printf("  - %s  %-9s %-17s %5.1f%%  %s\n", j.JobID, j.Status, j.FinalAction, j.FinalConfidence, j.Descriptor.FeatureName)
				}
				return nil
			}

			finder := discovery.New(cfg.Workspace)
			cats, err := finder.Categories()
			if err != nil {
				return err
			}
			fmt.Println("Categories:")
			for _, c := range cats {
				scripts, err := finder.InCategory(c)
				if err != nil {
					return err
				}
				fmt.Printf("  - %s (%d scripts)\n", c, len(scripts))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jobs, "jobs", false, "list recorded jobs instead of categories")
	return cmd
}
