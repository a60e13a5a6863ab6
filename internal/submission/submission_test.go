package submission_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signalnine/scriptgate/internal/config"
	"github.com/signalnine/scriptgate/internal/feature"
	"github.com/signalnine/scriptgate/internal/submission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func descriptor() feature.Descriptor {
	return feature.Descriptor{
		FeatureName:     "Volume Snapshot Policy",
		Category:        "volumes",
		GeneratedFiles:  []string{"netappfiles/volumes/snapshot-policy.sh"},
		ConfidenceScore: 96.5,
	}
}

func TestNoneIsDisabled(t *testing.T) {
	_, err := submission.None{}.Submit(context.Background(), "c", descriptor())
	assert.ErrorIs(t, err, submission.ErrSubmissionDisabled)
}

func TestNewSelectsBackend(t *testing.T) {
	tests := []struct {
		cfg  config.Submission
		want any
	}{
		{config.Submission{Kind: "none"}, submission.None{}},
		{config.Submission{Kind: "command", Command: []string{"true"}}, &submission.Command{}},
		{config.Submission{Kind: "webhook", URL: "http://x"}, &submission.Webhook{}},
		{config.Submission{Kind: "git"}, &submission.Git{}},
	}
	for _, tt := range tests {
		got, err := submission.New(tt.cfg, "/repo")
		require.NoError(t, err)
		assert.IsType(t, tt.want, got, tt.cfg.Kind)
	}
	_, err := submission.New(config.Submission{Kind: "carrier-pigeon"}, "/repo")
	assert.Error(t, err)
}

func TestWebhookSuccess(t *testing.T) {
	var got submission.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"url": "https://example.test/pr/42"}`))
	}))
	defer srv.Close()

	out, err := submission.NewWebhook(srv.URL, 5*time.Second).Submit(context.Background(), "netappfiles-feature-generator", descriptor())
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "https://example.test/pr/42", out.Reference)
	assert.Equal(t, "netappfiles-feature-generator", got.Cluster)
	assert.Equal(t, "Volume Snapshot Policy", got.Feature.FeatureName)
}

func TestWebhookErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "queue full", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := submission.NewWebhook(srv.URL, 5*time.Second).Submit(context.Background(), "c", descriptor())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "queue full")
}

func TestWebhookTruncatedReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, buf, err := w.(http.Hijacker).Hijack()
		if err != nil {
			return
		}
		defer conn.Close()
		buf.WriteString("HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nContent-Length: 100\r\n\r\n")
		buf.WriteString(`{"reference": "PR-4`)
		buf.Flush()
	}))
	defer srv.Close()

	out, err := submission.NewWebhook(srv.URL, 5*time.Second).Submit(context.Background(), "c", descriptor())
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Contains(t, err.Error(), "reading webhook reply")
}

func requireTool(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available", name)
	}
}

func TestCommandReadsRequestFromStdin(t *testing.T) {
	requireTool(t, "sh")
	c := &submission.Command{
		Args:    []string{"sh", "-c", `grep -q '"feature_name":"Volume Snapshot Policy"' && echo "PR-$SCRIPTGATE_CLUSTER"`},
		Timeout: 5 * time.Second,
	}
	out, err := c.Submit(context.Background(), "anf", descriptor())
	require.NoError(t, err)
	assert.Equal(t, "PR-anf", out.Reference)
}

func TestCommandFailure(t *testing.T) {
	requireTool(t, "sh")
	c := &submission.Command{Args: []string{"sh", "-c", "echo rate limited >&2; exit 3"}}
	_, err := c.Submit(context.Background(), "anf", descriptor())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	c := exec.Command("git", args...)
	c.Dir = dir
	out, err := c.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
	return strings.TrimSpace(string(out))
}

func TestGitCommitsGeneratedFilesOnBranch(t *testing.T) {
	requireTool(t, "git")
	repo := t.TempDir()
	runGit(t, repo, "init")
	runGit(t, repo, "config", "user.email", "test@test.com")
	runGit(t, repo, "config", "user.name", "Test")
	require.NoError(t, os.WriteFile(filepath.Join(repo, "README.md"), []byte("samples\n"), 0o644))
	runGit(t, repo, "add", ".")
	runGit(t, repo, "commit", "-m", "initial")

	d := descriptor()
	script := filepath.Join(repo, d.GeneratedFiles[0])
	require.NoError(t, os.MkdirAll(filepath.Dir(script), 0o755))
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/bash\necho hi\n"), 0o755))

	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	g := &submission.Git{Repo: repo, Timeout: time.Minute, Now: func() time.Time { return now }}
	out, err := g.Submit(context.Background(), "anf", d)
	require.NoError(t, err)

	branch := submission.Branch(d, now)
	assert.Equal(t, "scriptgate/volume-snapshot-policy-20250304-050607", branch)
	assert.True(t, strings.HasPrefix(out.Reference, branch+"@"))

	files := runGit(t, repo, "show", "--name-only", "--format=", branch)
	assert.Equal(t, d.GeneratedFiles[0], files)
	// The script is still untracked in the caller's checkout.
	assert.Contains(t, runGit(t, repo, "status", "--porcelain"), "?? netappfiles/")
}

func TestGitRequiresFiles(t *testing.T) {
	d := descriptor()
	d.GeneratedFiles = nil
	_, err := (&submission.Git{Repo: t.TempDir()}).Submit(context.Background(), "anf", d)
	assert.Error(t, err)
}
