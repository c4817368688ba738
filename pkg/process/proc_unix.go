// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package process

import (
	"os"
	"os/exec"
	"syscall"
)

// setProcessGroup gives the child its own process group so termination
// reaches the whole build tree, not just the direct child.
func setProcessGroup(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminate asks the process group to exit. The negative pid addresses the
// group.
func terminate(p *os.Process) {
	syscall.Kill(-p.Pid, syscall.SIGTERM)
}

// kill forcibly ends the process group.
func kill(p *os.Process) {
	syscall.Kill(-p.Pid, syscall.SIGKILL)
}
