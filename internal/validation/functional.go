package validation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/signalnine/scriptgate/internal/mockcli"
	"github.com/signalnine/scriptgate/internal/shell"
)

// Run is the captured outcome of one functional execution.
type Run struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// BaseFunctionalChecks apply to every script.
var BaseFunctionalChecks = []Check[Run]{
	{
		ID:          "subscription_detection",
		Description: "Subscription detection",
		Pass:        func(r Run) bool { return strings.Contains(strings.ToLower(r.Stdout), "subscription") },
	},
	{
		ID:          "azure_cli_usage",
		Description: "Azure CLI command usage",
		Pass: func(r Run) bool {
			for _, line := range strings.Split(r.Stdout, "\n") {
				if strings.Contains(line, "az ") {
					return true
				}
			}
			return false
		},
	},
	{
		ID:          "error_handling",
		Description: "Proper error handling",
		Pass:        func(r Run) bool { return r.ExitCode == 0 || r.ExitCode == 1 },
	},
	{
		ID:          "informative_output",
		Description: "Provides informative output",
		Pass:        func(r Run) bool { return len(r.Stdout) > 100 },
	},
	{
		ID:          "no_crashes",
		Description: "No unexpected crashes",
		Pass:        func(r Run) bool { return !strings.Contains(r.Stderr, "Traceback") },
	},
}

// Category adds checks for scripts whose path contains Keyword.
type Category struct {
	Keyword string
	Checks  []Check[Run]
}

// Categories is tried in order; the first keyword found in the path wins.
var Categories = []Category{
	{
		Keyword: "troubleshoot",
		Checks: []Check[Run]{
			{
				ID:          "troubleshooting_sections",
				Description: "Contains troubleshooting sections",
				Pass: func(r Run) bool {
					return strings.Contains(r.Stdout, "Testing") || strings.Contains(r.Stdout, "Checking")
				},
			},
			{
				ID:          "recommendations",
				Description: "Provides recommendations",
				Pass: func(r Run) bool {
					return strings.Contains(r.Stdout, "Recommendation") || strings.Contains(r.Stdout, "Solution")
				},
			},
		},
	},
	{
		Keyword: "provision",
		Checks: []Check[Run]{
			{
				ID:          "resource_creation",
				Description: "Resource creation logic",
				Pass:        stdoutHasAny("create"),
			},
			{
				ID:          "configuration",
				Description: "Configuration steps",
				Pass:        stdoutHasAny("configur"),
			},
		},
	},
	{
		Keyword: "monitor",
		Checks: []Check[Run]{
			{
				ID:          "monitoring_data",
				Description: "Monitoring functionality",
				Pass:        stdoutHasAny("monitor", "metric"),
			},
			{
				ID:          "health_checks",
				Description: "Health checking",
				Pass:        stdoutHasAny("health", "status"),
			},
		},
	},
}

// stdoutHasAny matches any of the lowercase words case-insensitively.
func stdoutHasAny(words ...string) func(Run) bool {
	return func(r Run) bool {
		out := strings.ToLower(r.Stdout)
		for _, w := range words {
			if strings.Contains(out, w) {
				return true
			}
		}
		return false
	}
}

// FunctionalChecks resolves the checklist for a script path: the base checks
// followed by those of the first matching category.
func FunctionalChecks(path string) []Check[Run] {
	checks := append([]Check[Run]{}, BaseFunctionalChecks...)
	p := filepath.ToSlash(path)
	for _, c := range Categories {
		if strings.Contains(p, c.Keyword) {
			return append(checks, c.Checks...)
		}
	}
	return checks
}

// FunctionalOutcome is the result of FunctionalTester.Test.
type FunctionalOutcome struct {
	Score    float64
	Passed   []string
	Failed   []string
	Warnings []string
	TimedOut bool
}

// FunctionalTester runs a script with the mock CLI first on PATH.
type FunctionalTester struct {
	Interpreter string
	Env         map[string]string
	Timeout     time.Duration
	Mock        *mockcli.Responder
	Runner      shell.Runner
	// TempRoot is where per-run mock directories are created. Empty means
	// the system temp dir.
	TempRoot string
}

// Test executes path once. Execution problems are reported as a zero score
// with a failure label; the only error returned is the caller's context
// being done.
func (f *FunctionalTester) Test(ctx context.Context, path string) (FunctionalOutcome, error) {
	mockDir, err := os.MkdirTemp(f.TempRoot, "scriptgate-mock-")
	if err != nil {
		return errorOutcome(err), nil
	}
	defer os.RemoveAll(mockDir)

	if _, err := f.Mock.Install(mockDir); err != nil {
		return errorOutcome(err), nil
	}

	res, err := f.Runner.Run(ctx, shell.Command{
		Args:       []string{f.Interpreter, path},
		Dir:        filepath.Dir(path),
		Env:        f.Env,
		PathPrefix: []string{mockDir},
		Timeout:    f.Timeout,
	})
	if ctx.Err() != nil {
		return FunctionalOutcome{}, ctx.Err()
	}
	if err != nil {
		return errorOutcome(err), nil
	}
	if res.TimedOut {
		return FunctionalOutcome{
			Failed:   []string{fmt.Sprintf("Script execution timed out (%s)", f.Timeout)},
			TimedOut: true,
		}, nil
	}

	run := Run{Stdout: res.Stdout, Stderr: res.Stderr, ExitCode: res.ExitCode}
	score, passed, failed := runChecks(FunctionalChecks(path), run)
	return FunctionalOutcome{
		Score:    score,
		Passed:   passed,
		Failed:   failed,
		Warnings: stderrWarnings(run, f.Mock.Command()),
	}, nil
}

func errorOutcome(err error) FunctionalOutcome {
	msg := err.Error()
	if errors.Is(err, shell.ErrToolUnavailable) {
		msg = "interpreter " + msg
	}
	return FunctionalOutcome{Failed: []string{"Functional test error: " + msg}}
}

// stderrWarnings flags stderr output from a successful run, ignoring the
// mock's own fallback echo.
func stderrWarnings(r Run, mockCommand string) []string {
	if r.ExitCode != 0 {
		return nil
	}
	echo := "Mock " + mockCommand + " - Command:"
	n := 0
	for _, line := range strings.Split(r.Stderr, "\n") {
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, echo) {
			continue
		}
		n++
	}
	if n == 0 {
		return nil
	}
	return []string{fmt.Sprintf("Script wrote %d line(s) to stderr", n)}
}
