package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/signalnine/scriptgate/internal/feature"
	"github.com/signalnine/scriptgate/internal/result"
)

// Command pipes the request as JSON to an external program. Its trimmed
// stdout becomes the submission reference.
type Command struct {
	Args    []string
	Timeout time.Duration
	// Env is added to the inherited environment.
	Env []string
}

func (c *Command) Submit(ctx context.Context, cluster string, d feature.Descriptor) (*result.SubmissionOutcome, error) {
	if len(c.Args) == 0 {
		return nil, errors.New("submission command is empty")
	}
	body, err := json.Marshal(Request{Cluster: cluster, Feature: d})
	if err != nil {
		return nil, fmt.Errorf("encoding submission: %w", err)
	}
	stdout, err := runWithInput(ctx, c.Timeout, c.Args, "", append(append([]string{}, c.Env...), "SCRIPTGATE_CLUSTER="+cluster), body)
	if err != nil {
		return nil, err
	}
	return &result.SubmissionOutcome{Success: true, Reference: strings.TrimSpace(stdout)}, nil
}

func runWithInput(ctx context.Context, timeout time.Duration, args []string, dir string, env []string, stdin []byte) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s: %w", args[0], ctx.Err())
		}
		return "", fmt.Errorf("%s: %s: %w", args[0], strings.TrimSpace(stderr.String()), err)
	}
	return stdout.String(), nil
}
