package discovery_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/signalnine/scriptgate/internal/config"
	"github.com/signalnine/scriptgate/internal/discovery"
)

func setupWorkspace(t *testing.T) (string, *discovery.Finder) {
	t.Helper()
	root := t.TempDir()
	for _, name := range []string{
		"netappfiles/volumes/create.sh",
		"netappfiles/volumes/nested/resize.sh",
		"netappfiles/troubleshoot/smb.sh",
		"netappfiles/troubleshoot/README.md",
		"other/ignored.sh",
	} {
		p := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("#!/bin/bash\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	f := discovery.New(config.Workspace{Root: root, ScriptsDir: "netappfiles", Extension: ".sh"})
	return root, f
}

func TestDiscover(t *testing.T) {
	root, f := setupWorkspace(t)
	got, err := f.Discover()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(root, "netappfiles/troubleshoot/smb.sh"),
		filepath.Join(root, "netappfiles/volumes/create.sh"),
		filepath.Join(root, "netappfiles/volumes/nested/resize.sh"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Discover mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscoverMissingRoot(t *testing.T) {
	f := discovery.New(config.Workspace{Root: t.TempDir(), ScriptsDir: "nope", Extension: ".sh"})
	got, err := f.Discover()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
}

func TestInCategory(t *testing.T) {
	root, f := setupWorkspace(t)
	got, err := f.InCategory("volumes")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(root, "netappfiles/volumes/create.sh"),
		filepath.Join(root, "netappfiles/volumes/nested/resize.sh"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("InCategory mismatch (-want +got):\n%s", diff)
	}

	for _, c := range []string{"retroactive_testing", "", "../other"} {
		got, err := f.InCategory(c)
		if err != nil || len(got) != 0 {
			t.Errorf("InCategory(%q): got %v, %v; want empty", c, got, err)
		}
	}
}

func TestResolve(t *testing.T) {
	root, f := setupWorkspace(t)
	got := f.Resolve([]string{
		"netappfiles/volumes/create.sh",
		"netappfiles/volumes/missing.sh",
		"netappfiles/troubleshoot/README.md",
		"netappfiles/volumes",
		"other/ignored.sh",
	})
	want := []string{
		filepath.Join(root, "netappfiles/volumes/create.sh"),
		filepath.Join(root, "other/ignored.sh"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve mismatch (-want +got):\n%s", diff)
	}
}

func TestCategories(t *testing.T) {
	_, f := setupWorkspace(t)
	got, err := f.Categories()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"troubleshoot", "volumes"}, got); diff != "" {
		t.Errorf("Categories mismatch (-want +got):\n%s", diff)
	}
}

func TestMatches(t *testing.T) {
	root, f := setupWorkspace(t)
	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(root, "netappfiles/a/b.sh"), true},
		{filepath.Join(root, "netappfiles/a/b.md"), false},
		{filepath.Join(root, "other/b.sh"), false},
	}
	for _, tt := range tests {
		if got := f.Matches(tt.path); got != tt.want {
			t.Errorf("Matches(%s): got %v, want %v", tt.path, got, tt.want)
		}
	}
}
