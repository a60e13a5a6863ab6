package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/signalnine/scriptgate/internal/feature"
	"github.com/signalnine/scriptgate/internal/gitops"
	"github.com/signalnine/scriptgate/internal/result"
)

// Git commits a feature's generated files on a fresh branch of the workspace
// repository, pushes it when Remote is set and then runs PRCommand, if any,
// to open the pull request. The caller's checkout is never modified.
type Git struct {
	Repo      string
	Remote    string
	PRCommand []string
	Timeout   time.Duration

	Now func() time.Time
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	s = strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if s == "" {
		return "feature"
	}
	if len(s) > 40 {
		s = strings.TrimRight(s[:40], "-")
	}
	return s
}

// Branch is the branch name Submit uses for d at time now.
func Branch(d feature.Descriptor, now time.Time) string {
	return "scriptgate/" + slug(d.FeatureName) + "-" + now.UTC().Format("20060102-150405")
}

func (g *Git) Submit(ctx context.Context, cluster string, d feature.Descriptor) (*result.SubmissionOutcome, error) {
	if len(d.GeneratedFiles) == 0 {
		return nil, errors.New("feature lists no generated files to commit")
	}
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	branch := Branch(d, now())

	tmp, err := os.MkdirTemp("", "scriptgate-wt-")
	if err != nil {
		return nil, fmt.Errorf("creating worktree dir: %w", err)
	}
	defer os.RemoveAll(tmp)
	wt := filepath.Join(tmp, "wt")
	if err := gitops.AddWorktree(ctx, g.Repo, wt, branch); err != nil {
		return nil, err
	}
	// context.Background: the worktree must be pruned even after a timeout.
	defer gitops.RemoveWorktree(context.Background(), g.Repo, wt)

	for _, name := range d.GeneratedFiles {
		if err := copyIntoWorktree(g.Repo, wt, name); err != nil {
			return nil, err
		}
	}
	diff, err := gitops.CaptureChanges(ctx, wt)
	if err != nil {
		return nil, err
	}
	if len(diff) == 0 {
		return nil, fmt.Errorf("generated files of %q are already committed", d.FeatureName)
	}
	msg := fmt.Sprintf("Add %s\n\nValidated by scriptgate at %.1f%% confidence (cluster %s).",
		d.FeatureName, d.ConfidenceScore, cluster)
	commit, err := gitops.Commit(ctx, wt, msg)
	if err != nil {
		return nil, err
	}

	if g.Remote != "" {
		if err := gitops.Push(ctx, wt, g.Remote, branch); err != nil {
			return nil, err
		}
	}

	ref := branch + "@" + commit[:min(12, len(commit))]
	if len(g.PRCommand) > 0 {
		body, err := json.Marshal(Request{Cluster: cluster, Feature: d})
		if err != nil {
			return nil, fmt.Errorf("encoding submission: %w", err)
		}
		out, err := runWithInput(ctx, 0, g.PRCommand, wt, []string{
			"SCRIPTGATE_CLUSTER=" + cluster,
			"SCRIPTGATE_BRANCH=" + branch,
			"SCRIPTGATE_COMMIT=" + commit,
		}, body)
		if err != nil {
			return nil, fmt.Errorf("opening pull request: %w", err)
		}
		if s := strings.TrimSpace(out); s != "" {
			ref = s
		}
	}
	return &result.SubmissionOutcome{Success: true, Reference: ref}, nil
}

// copyIntoWorktree copies a workspace-relative file to the same relative
// path inside the worktree.
func copyIntoWorktree(repo, wt, name string) error {
	rel := filepath.Clean(name)
	if filepath.IsAbs(rel) {
		r, err := filepath.Rel(repo, rel)
		if err != nil {
			return fmt.Errorf("%s is outside the repository: %w", name, err)
		}
		rel = r
	}
	if strings.HasPrefix(rel, "..") {
		return fmt.Errorf("%s is outside the repository", name)
	}
	data, err := os.ReadFile(filepath.Join(repo, rel))
	if err != nil {
		return fmt.Errorf("reading generated file: %w", err)
	}
	info, err := os.Stat(filepath.Join(repo, rel))
	if err != nil {
		return fmt.Errorf("reading generated file: %w", err)
	}
	dst := filepath.Join(wt, rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(rel), err)
	}
	if err := os.WriteFile(dst, data, info.Mode().Perm()); err != nil {
		return fmt.Errorf("copying %s: %w", rel, err)
	}
	return nil
}
