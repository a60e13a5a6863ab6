package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/signalnine/scriptgate/internal/feature"
	"github.com/signalnine/scriptgate/internal/result"
	"github.com/spf13/cobra"
)

var (
	flagFeature  string
	flagScripts  []string
	flagCategory string
	flagName     string
	flagWorkers  int
)

var errJobFailed = errors.New("job failed")

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one validation job for a generated feature",
		Long: `Resolves the feature's scripts, evaluates them, aggregates a job
confidence and routes the result to auto-PR, manual review or rejection.
The job record is written to the configured results store.`,
		RunE: runJob,
	}
	cmd.Flags().StringVar(&flagFeature, "feature", "", "feature descriptor file (.yaml or .json)")
	cmd.Flags().StringArrayVar(&flagScripts, "script", nil, "script to validate, relative to the workspace (repeatable)")
	cmd.Flags().StringVar(&flagCategory, "category", "", "validate every script in this category directory")
	cmd.Flags().StringVar(&flagName, "name", "", "feature name when no descriptor file is given")
	cmd.Flags().IntVar(&flagWorkers, "workers", 0, "override concurrent script evaluations")
	return cmd
}

// descriptorFromFlags builds the job descriptor from the feature file, if
// any, plus the command-line overrides.
func descriptorFromFlags(path string, scripts []string, category, name string) (feature.Descriptor, error) {
	var d feature.Descriptor
	if path != "" {
		loaded, err := feature.Load(path)
		if err != nil {
			return d, err
		}
		d = loaded
	}
	d.GeneratedFiles = append(d.GeneratedFiles, scripts...)
	if category != "" {
		d.Category = category
		d.Subcategory = ""
	}
	if name != "" {
		d.FeatureName = name
	}
	if d.FeatureName == "" {
		d.FeatureName = "Ad-hoc Script Validation"
	}
	return d, nil
}

func runJob(cmd *cobra.Command, args []string) error {
	d, err := descriptorFromFlags(flagFeature, flagScripts, flagCategory, flagName)
	if err != nil {
		return err
	}
	a, err := newApp(logger)
	if err != nil {
		return err
	}
	defer a.Close()
	if flagWorkers > 0 {
		a.pipeline.Workers = flagWorkers
	}

	ctx, stop := signalContext(context.Background())
	defer stop()

	job := a.pipeline.Run(ctx, d)
	printJob(job)
	if job.Status == result.JobFailed {
		return fmt.Errorf("%w: %s", errJobFailed, job.Error)
	}
	return nil
}
