package validation

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/signalnine/scriptgate/internal/shell"
)

// SyntaxChecker verifies the interpreter directive and runs a check-only
// parse of the script.
type SyntaxChecker struct {
	// Shells lists accepted directive prefixes for the first line.
	Shells []string
	// Checker is the check-only command; the script path is appended.
	Checker []string
	Timeout time.Duration
	Runner  shell.Runner
}

// Check returns whether the script is syntactically valid and the issues
// found, in discovery order. Checker problems become issues; the only error
// returned is the caller's context being done.
func (s *SyntaxChecker) Check(ctx context.Context, path, content string) (bool, []string, error) {
	var issues []string
	if !hasShellDirective(content, s.Shells) {
		issues = append(issues, "Missing or incorrect shebang (should be "+strings.Join(s.Shells, " or ")+")")
	}

	if len(s.Checker) > 0 {
		tool := toolName(s.Checker[0])
		res, err := s.Runner.Run(ctx, shell.Command{
			Args:    append(append([]string{}, s.Checker...), path),
			Dir:     filepath.Dir(path),
			Timeout: s.Timeout,
		})
		switch {
		case ctx.Err() != nil:
			return false, issues, ctx.Err()
		case errors.Is(err, shell.ErrToolUnavailable):
			issues = append(issues, tool+" not available for syntax validation")
		case err != nil:
			issues = append(issues, "Syntax check failed: "+err.Error())
		case res.TimedOut:
			issues = append(issues, "Syntax check timed out")
		case res.ExitCode != 0:
			issues = append(issues, tool+" syntax errors: "+res.Stderr)
		}
	}
	return len(issues) == 0, issues, nil
}

func hasShellDirective(content string, shells []string) bool {
	for _, sh := range shells {
		if strings.HasPrefix(content, sh) {
			return true
		}
	}
	return false
}

// toolName turns "/usr/bin/bash" into "Bash" for issue text.
func toolName(bin string) string {
	name := filepath.Base(bin)
	if name == "" || name == "." {
		return bin
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
