//go:build !unix

package shell

import "os/exec"

// Without process groups the default cancel kills only the direct child.
func killProcessGroup(cmd *exec.Cmd) {}
