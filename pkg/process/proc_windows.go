// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package process

import (
	"os"
	"os/exec"
)

func setProcessGroup(c *exec.Cmd) {}

// terminate kills the direct child immediately: Windows offers no polite
// termination signal for console children of another process.
func terminate(p *os.Process) {
	p.Kill()
}

func kill(p *os.Process) {
	p.Kill()
}
