package shell

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/signalnine/scriptgate/internal/docker"
)

// Docker runs commands inside a throwaway container. The working directory
// and every PATH prefix directory are bind-mounted at their host paths, so
// script and mock paths are valid on both sides.
type Docker struct {
	Image       string
	CPULimit    float64
	MemoryLimit int64

	run func(context.Context, *docker.RunOpts) (*docker.RunResult, error)
}

func NewDocker(image string, cpuLimit float64, memoryLimit int64) *Docker {
	return &Docker{
		Image:       image,
		CPULimit:    cpuLimit,
		MemoryLimit: memoryLimit,
		run:         docker.RunContainer,
	}
}

func (d *Docker) Run(ctx context.Context, c Command) (*Result, error) {
	if len(c.Args) == 0 {
		return nil, errors.New("empty command")
	}
	opts := d.options(c)
	res, err := d.run(ctx, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("running %s in %s: %w", c.Args[0], d.Image, err)
	}
	return &Result{
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		TimedOut: res.TimedOut,
		Duration: res.Duration,
	}, nil
}

func (d *Docker) options(c Command) *docker.RunOpts {
	env := make(map[string]string, len(c.Env)+1)
	for k, v := range c.Env {
		env[k] = v
	}
	if len(c.PathPrefix) > 0 {
		env["PATH"] = strings.Join(c.PathPrefix, ":") + ":" + defaultPath
	}

	seen := map[string]bool{}
	var mounts []docker.Mount
	addMount := func(dir string, readOnly bool) {
		if dir == "" {
			return
		}
		dir = filepath.Clean(dir)
		if seen[dir] {
			return
		}
		seen[dir] = true
		mounts = append(mounts, docker.Mount{Source: dir, Target: dir, ReadOnly: readOnly})
	}
	addMount(c.Dir, true)
	for _, p := range c.PathPrefix {
		addMount(p, true)
	}

	return &docker.RunOpts{
		Image:       d.Image,
		Command:     c.Args,
		WorkDir:     c.Dir,
		Env:         env,
		Timeout:     c.Timeout,
		Mounts:      mounts,
		CPULimit:    d.CPULimit,
		MemoryLimit: d.MemoryLimit,
	}
}
