//go:build integration

package main

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signalnine/scriptgate/internal/config"
	"github.com/signalnine/scriptgate/internal/discovery"
	"github.com/signalnine/scriptgate/internal/feature"
	"github.com/signalnine/scriptgate/internal/mockcli"
	"github.com/signalnine/scriptgate/internal/result"
	"github.com/signalnine/scriptgate/internal/runner"
	"github.com/signalnine/scriptgate/internal/shell"
	"github.com/signalnine/scriptgate/internal/submission"
	"github.com/signalnine/scriptgate/internal/validation"
)

const compliantScript = `#!/bin/bash
# Last tested: 2025-01-15
# Test method: automated run against a sandbox subscription
# Azure CLI version: 2.67.0
RESOURCE_GROUP="${ANF_RESOURCE_GROUP:-rg-sample}"
randomSuffix=$RANDOM
subscription=$(az account show --query id -o tsv)
echo "Using subscription: $subscription"
echo "Running: az netappfiles account list --resource-group $RESOURCE_GROUP --query [].name"
az netappfiles account list --resource-group "$RESOURCE_GROUP" --query "[].name"
echo "Finished listing NetApp accounts for resource group $RESOURCE_GROUP in the current subscription."
`

// createWorkspace creates a git repo with one committed file and an
// uncommitted generated script.
func createWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		c := exec.Command(args[0], args[1:]...)
		c.Dir = dir
		if out, err := c.CombinedOutput(); err != nil {
			t.Fatalf("%v: %s", err, out)
		}
	}
	run("git", "init", "-b", "main")
	run("git", "config", "user.email", "test@test.com")
	run("git", "config", "user.name", "Test")
	os.WriteFile(filepath.Join(dir, "README.md"), []byte("samples\n"), 0o644)
	run("git", "add", ".")
	run("git", "commit", "-m", "initial")

	scriptDir := filepath.Join(dir, "netappfiles", "volumes")
	if err := os.MkdirAll(scriptDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(scriptDir, "list-accounts.sh"), []byte(compliantScript), 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestPipelineIntegration(t *testing.T) {
	for _, tool := range []string{"bash", "git"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not available", tool)
		}
	}
	workspace := createWorkspace(t)

	cfg := config.Default()
	cfg.Workspace.Root = workspace
	cfg.Results = config.Results{Backend: "sqlite", Dir: t.TempDir()}
	cfg.Results.SQLitePath = filepath.Join(cfg.Results.Dir, "jobs.db")

	mock, err := mockcli.NewDefault(cfg.Mock.Command)
	if err != nil {
		t.Fatal(err)
	}
	store, err := result.OpenStore(cfg.Results)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	p := &runner.Pipeline{
		Evaluator:  validation.NewEvaluator(cfg, shell.NewLocal(), mock, nil),
		Scripts:    discovery.New(cfg.Workspace),
		Submitter:  &submission.Git{Repo: workspace, Timeout: 30 * time.Second},
		Store:      store,
		Thresholds: cfg.Thresholds,
		Config:     cfg.Pipeline,
		Workers:    2,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	job := p.Run(ctx, feature.Descriptor{
		FeatureName:    "List Accounts",
		Category:       "volumes",
		GeneratedFiles: []string{"netappfiles/volumes/list-accounts.sh"},
	})
	if job.Status != result.JobCompleted {
		t.Fatalf("status: got %s (%s)", job.Status, job.Error)
	}
	if job.FinalAction != result.ActionAutoPRAttempted {
		t.Errorf("final action: got %s, want %s", job.FinalAction, result.ActionAutoPRAttempted)
	}
	if job.FinalConfidence != 100 {
		t.Errorf("final confidence: got %.1f, want 100", job.FinalConfidence)
	}

	out, err := exec.Command("git", "-C", workspace, "branch", "--list", "scriptgate/*").Output()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "scriptgate/list-accounts-") {
		t.Errorf("submission branch not created: %q", out)
	}

	stored, err := store.Load(ctx, job.JobID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if stored.FinalAction != job.FinalAction {
		t.Errorf("stored final action: got %s", stored.FinalAction)
	}
}
