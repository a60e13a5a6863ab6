package validation

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/signalnine/scriptgate/internal/shell"
)

// Linter runs an optional static analyzer such as "shellcheck -f gcc".
// Findings are reported as warnings and never change a score.
type Linter struct {
	// Command is the analyzer invocation; the script path is appended.
	// Empty disables linting.
	Command []string
	Timeout time.Duration
	Runner  shell.Runner
}

// Lint returns warnings for path. Only a done context is an error.
func (l *Linter) Lint(ctx context.Context, path string) ([]string, error) {
	if l == nil || len(l.Command) == 0 {
		return nil, nil
	}
	tool := toolName(l.Command[0])
	res, err := l.Runner.Run(ctx, shell.Command{
		Args:    append(append([]string{}, l.Command...), path),
		Dir:     filepath.Dir(path),
		Timeout: l.Timeout,
	})
	switch {
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, shell.ErrToolUnavailable):
		return []string{tool + " not available for linting"}, nil
	case err != nil:
		return []string{"Lint failed: " + err.Error()}, nil
	case res.TimedOut:
		return []string{tool + " timed out"}, nil
	}
	return ParseLintFindings(res.Stdout+"\n"+res.Stderr, path), nil
}

// ParseLintFindings picks gcc-style finding lines ("file:line:col: warning:
// text") out of analyzer output. The script path is shortened to its base
// name.
func ParseLintFindings(output, path string) []string {
	var findings []string
	base := filepath.Base(path)
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.Contains(line, ": error") || strings.Contains(line, ": warning") || strings.Contains(line, ": note") {
			findings = append(findings, "Lint: "+strings.Replace(line, path, base, 1))
		}
	}
	return findings
}
