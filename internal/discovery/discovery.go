// Package discovery finds the scripts a job validates under the workspace.
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/signalnine/scriptgate/internal/config"
)

// Finder lists scripts under <Root>/<ScriptsDir> with a given extension.
type Finder struct {
	Root       string
	ScriptsDir string
	Ext        string
}

func New(ws config.Workspace) *Finder {
	return &Finder{Root: ws.Root, ScriptsDir: ws.ScriptsDir, Ext: ws.Extension}
}

func (f *Finder) scriptsRoot() string {
	return filepath.Join(f.Root, f.ScriptsDir)
}

// Discover returns every script under the scripts directory, sorted. A
// missing directory yields an empty list.
func (f *Finder) Discover() ([]string, error) {
	return f.walk(f.scriptsRoot())
}

// InCategory returns the scripts below the category sub-directory, sorted.
func (f *Finder) InCategory(category string) ([]string, error) {
	category = filepath.Clean(category)
	if category == "." || category == "" || strings.HasPrefix(category, "..") || filepath.IsAbs(category) {
		return nil, nil
	}
	return f.walk(filepath.Join(f.scriptsRoot(), category))
}

// Resolve maps workspace-relative file names to paths of existing scripts.
// Entries that are missing, not regular files or lack the extension are
// dropped; order is preserved.
func (f *Finder) Resolve(files []string) []string {
	var out []string
	for _, name := range files {
		p := name
		if !filepath.IsAbs(p) {
			p = filepath.Join(f.Root, name)
		}
		if !strings.HasSuffix(p, f.Ext) {
			continue
		}
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Categories lists the first-level directories of the scripts directory.
func (f *Finder) Categories() ([]string, error) {
	entries, err := os.ReadDir(f.scriptsRoot())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// Matches reports whether path is a script this finder would discover.
func (f *Finder) Matches(path string) bool {
	if !strings.HasSuffix(path, f.Ext) {
		return false
	}
	rel, err := filepath.Rel(f.scriptsRoot(), path)
	return err == nil && !strings.HasPrefix(rel, "..")
}

func (f *Finder) walk(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}
		if d.Type().IsRegular() && strings.HasSuffix(d.Name(), f.Ext) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovering scripts in %s: %w", dir, err)
	}
	sort.Strings(out)
	return out, nil
}
