package gitops

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

func git(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("git %s: %s: %w", args[0], strings.TrimSpace(string(out)), err)
	}
	return out, nil
}

// AddWorktree checks out a new branch from HEAD of repoDir into dest, leaving
// the caller's working tree untouched.
func AddWorktree(ctx context.Context, repoDir, dest, branch string) error {
	_, err := git(ctx, repoDir, "worktree", "add", "-b", branch, dest, "HEAD")
	return err
}

// RemoveWorktree deletes a worktree created by AddWorktree. The branch stays.
func RemoveWorktree(ctx context.Context, repoDir, dest string) error {
	_, err := git(ctx, repoDir, "worktree", "remove", "--force", dest)
	return err
}

// CaptureChanges stages all changes (including untracked files) and returns the diff.
func CaptureChanges(ctx context.Context, repoDir string) ([]byte, error) {
	if _, err := git(ctx, repoDir, "add", "-A"); err != nil {
		return nil, err
	}
	diff := exec.CommandContext(ctx, "git", "diff", "--cached")
	diff.Dir = repoDir
	out, err := diff.Output()
	if err != nil {
		return nil, fmt.Errorf("git diff --cached: %w", err)
	}
	return out, nil
}

// Commit records the staged changes and returns the new commit hash.
func Commit(ctx context.Context, repoDir, message string) (string, error) {
	if _, err := git(ctx, repoDir, "commit", "-m", message); err != nil {
		return "", err
	}
	out, err := git(ctx, repoDir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func Push(ctx context.Context, repoDir, remote, branch string) error {
	_, err := git(ctx, repoDir, "push", "--set-upstream", remote, branch)
	return err
}
