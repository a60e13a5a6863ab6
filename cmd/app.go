package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/signalnine/scriptgate/internal/config"
	"github.com/signalnine/scriptgate/internal/discovery"
	"github.com/signalnine/scriptgate/internal/mockcli"
	"github.com/signalnine/scriptgate/internal/result"
	"github.com/signalnine/scriptgate/internal/runner"
	"github.com/signalnine/scriptgate/internal/shell"
	"github.com/signalnine/scriptgate/internal/submission"
	"github.com/signalnine/scriptgate/internal/validation"
	"go.uber.org/zap"
)

// app holds the collaborators one command invocation needs.
type app struct {
	cfg       *config.Config
	finder    *discovery.Finder
	evaluator *validation.Evaluator
	store     result.Store
	pipeline  *runner.Pipeline
}

func loadConfig() (*config.Config, error) {
	return config.LoadOrDefault(cfgFile)
}

// newShellRunner picks where scripts execute.
func newShellRunner(cfg config.Execution) shell.Runner {
	if cfg.Mode == "docker" {
		return shell.NewDocker(cfg.Image, cfg.CPULimit, cfg.MemoryLimit)
	}
	return shell.NewLocal()
}

func newResponder(cfg config.Mock) (*mockcli.Responder, error) {
	if cfg.RulesFile == "" {
		return mockcli.NewDefault(cfg.Command)
	}
	rules, err := mockcli.LoadRules(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	return mockcli.New(cfg.Command, rules)
}

func newEvaluator(cfg *config.Config, log *zap.Logger) (*validation.Evaluator, error) {
	mock, err := newResponder(cfg.Mock)
	if err != nil {
		return nil, err
	}
	return validation.NewEvaluator(cfg, newShellRunner(cfg.Execution), mock, log), nil
}

// newApp wires the full pipeline. Callers must close the returned app.
func newApp(log *zap.Logger) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	ev, err := newEvaluator(cfg, log)
	if err != nil {
		return nil, err
	}
	sub, err := submission.New(cfg.Submission, cfg.Workspace.Root)
	if err != nil {
		return nil, err
	}
	store, err := result.OpenStore(cfg.Results)
	if err != nil {
		return nil, err
	}
	finder := discovery.New(cfg.Workspace)
	return &app{
		cfg:       cfg,
		finder:    finder,
		evaluator: ev,
		store:     store,
		pipeline: &runner.Pipeline{
			Evaluator:  ev,
			Scripts:    finder,
			Submitter:  sub,
			Store:      store,
			Thresholds: cfg.Thresholds,
			Config:     cfg.Pipeline,
			Workers:    cfg.Execution.Workers,
			Logger:     log,
		},
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		logger.Warn("Closing job store", zap.Error(err))
	}
}

// signalContext is cancelled on SIGINT or SIGTERM so running scripts are
// killed before the process exits.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func printJob(job *result.JobRecord) {
	fmt.Printf("Job %s: %s\n", job.JobID, job.Status)
	fmt.Printf("  Final action:     %s\n", job.FinalAction)
	fmt.Printf("  Final confidence: %.1f%%\n", job.FinalConfidence)
	var sc result.ScoringSummary
	if st := job.Stages.Get(result.StageScoring); st.Status == result.StageCompleted && st.Decode(&sc) == nil {
		fmt.Printf("  %s\n", sc.Justification)
	}
	var out result.DecisionOutcome
	if st := job.Stages.Get(result.StageDecision); st.Status == result.StageCompleted && st.Decode(&out) == nil {
		switch {
		case out.Error != "":
			fmt.Printf("  Submission failed: %s (fallback: %s)\n", out.Error, out.Fallback)
		case out.Submission != nil && out.Submission.Reference != "":
			fmt.Printf("  Submitted: %s\n", out.Submission.Reference)
		case out.Message != "":
			fmt.Printf("  %s\n", out.Message)
		}
	}
	if job.Error != "" {
		fmt.Printf("  Error: %s\n", job.Error)
	}
}
