package validation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/signalnine/scriptgate/internal/config"
	"github.com/signalnine/scriptgate/internal/mockcli"
	"github.com/signalnine/scriptgate/internal/result"
	"github.com/signalnine/scriptgate/internal/shell"
	"go.uber.org/zap"
)

// Evaluator runs the three sub-tests against one script. It holds no
// per-script state and is safe for concurrent use.
type Evaluator struct {
	Thresholds config.Thresholds
	Syntax     *SyntaxChecker
	Lint       *Linter
	Functional *FunctionalTester
	Logger     *zap.Logger
}

// NewEvaluator wires an Evaluator from config. run executes both the syntax
// checker and the functional interpreter.
func NewEvaluator(cfg *config.Config, run shell.Runner, mock *mockcli.Responder, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		Thresholds: cfg.Thresholds,
		Syntax: &SyntaxChecker{
			Shells:  cfg.Syntax.Shells,
			Checker: cfg.Syntax.Checker,
			Timeout: cfg.Syntax.Timeout(),
			Runner:  run,
		},
		Lint: &Linter{
			Command: cfg.Lint.Command,
			Timeout: cfg.Lint.Timeout(),
			Runner:  run,
		},
		Functional: &FunctionalTester{
			Interpreter: cfg.Functional.Interpreter,
			Env:         cfg.Functional.Env,
			Timeout:     cfg.Functional.Timeout(),
			Mock:        mock,
			Runner:      run,
		},
		Logger: logger,
	}
}

// Evaluate tests one script. A script that cannot be read and a cancelled
// context are errors; every other problem is recorded in the result.
func (e *Evaluator) Evaluate(ctx context.Context, path string) (result.ScriptResult, error) {
	start := time.Now()
	abs, err := filepath.Abs(path)
	if err != nil {
		return result.ScriptResult{}, fmt.Errorf("resolving %s: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return result.ScriptResult{}, fmt.Errorf("reading script %s: %w", path, err)
	}
	content := string(data)

	e.Logger.Debug("testing script", zap.String("script", path))

	syntaxValid, syntaxIssues, err := e.Syntax.Check(ctx, abs, content)
	if err != nil {
		return result.ScriptResult{}, fmt.Errorf("syntax check %s: %w", path, err)
	}
	lintWarnings, err := e.Lint.Lint(ctx, abs)
	if err != nil {
		return result.ScriptResult{}, fmt.Errorf("lint %s: %w", path, err)
	}
	compliance, compPassed, compFailed := Compliance(content)
	fn, err := e.Functional.Test(ctx, abs)
	if err != nil {
		return result.ScriptResult{}, fmt.Errorf("functional test %s: %w", path, err)
	}

	scores := result.ScriptScores{
		SyntaxValid:     syntaxValid,
		ComplianceScore: compliance,
		FunctionalScore: fn.Score,
		Confidence:      Confidence(Scores{SyntaxValid: syntaxValid, Compliance: compliance, Functional: fn.Score}),
		Passed:          concat(compPassed, fn.Passed),
		Failed:          concat(syntaxIssues, compFailed, fn.Failed),
		Warnings:        concat(lintWarnings, fn.Warnings),
		ExecutionTime:   time.Since(start),
	}
	r := result.NewScriptResult(path, scores, e.Thresholds)

	e.Logger.Info("script evaluated",
		zap.String("script", path),
		zap.Float64("confidence", r.Confidence),
		zap.Bool("ready_for_pr", r.ReadyForPR()),
		zap.Bool("timed_out", fn.TimedOut),
		zap.Duration("elapsed", r.ExecutionTime),
	)
	return r, nil
}

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
