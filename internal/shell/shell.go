// Package shell runs external interpreters for the evaluator: the check-only
// syntax pass and the functional run. Every invocation is bounded by a
// deadline and forcibly terminated when it expires or when the caller's
// context is cancelled.
package shell

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"
	"time"
)

// ErrToolUnavailable means the interpreter binary could not be found.
var ErrToolUnavailable = errors.New("tool unavailable")

// TimedOutExitCode is reported for runs killed by their deadline.
const TimedOutExitCode = 124

type Command struct {
	Args []string
	// Dir is the working directory. It is also made visible to sandboxed
	// runners.
	Dir string
	// Env overlays the inherited environment.
	Env map[string]string
	// PathPrefix directories are prepended to PATH, first entry wins.
	PathPrefix []string
	Timeout    time.Duration
}

type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration
}

// Runner executes one command to termination.
//
// A run that exceeds cmd.Timeout returns TimedOut=true and a nil error.
// A run whose parent context is cancelled returns the context error.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// mergeEnv overlays env and the PATH prefix on base and returns a sorted
// KEY=VALUE slice.
func mergeEnv(base []string, env map[string]string, prefix []string, defaultPath string) []string {
	vars := make(map[string]string, len(base)+len(env))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	for k, v := range env {
		vars[k] = v
	}
	if len(prefix) > 0 {
		path := vars["PATH"]
		if path == "" {
			path = defaultPath
		}
		vars["PATH"] = strings.Join(prefix, string(os.PathListSeparator)) + string(os.PathListSeparator) + path
	}
	out := make([]string, 0, len(vars))
	for k, v := range vars {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
