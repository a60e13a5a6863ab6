package cmd

import (
	"context"
	"path/filepath"

	"github.com/signalnine/scriptgate/internal/feature"
	"github.com/signalnine/scriptgate/internal/watch"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run a job for every script that is created or modified",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(logger)
			if err != nil {
				return err
			}
			defer a.Close()
			// A vanished file must not widen the job to every script.
			a.pipeline.Config.RetroactiveTesting = false

			ctx, stop := signalContext(context.Background())
			defer stop()

			root := filepath.Join(a.cfg.Workspace.Root, a.cfg.Workspace.ScriptsDir)
			w := watch.New(root, a.cfg.Watch.Debounce(), a.finder.Matches, func(ctx context.Context, path string) {
				job := a.pipeline.Run(ctx, watchDescriptor(a.cfg.Workspace.Root, path))
				printJob(job)
			}, logger)
			logger.Info("Watch mode started", zap.String("root", root))
			return w.Run(ctx)
		},
	}
}

// watchDescriptor builds a single-script job for a changed file. The path
// is made workspace-relative when possible.
func watchDescriptor(workspace, path string) feature.Descriptor {
	rel := path
	if r, err := filepath.Rel(workspace, path); err == nil {
		rel = r
	}
	name := filepath.Base(path)
	return feature.Descriptor{
		FeatureName:    "Watch: " + name,
		GeneratedFiles: []string{rel},
	}
}
