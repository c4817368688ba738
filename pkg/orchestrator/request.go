// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"strings"

	"github.com/google/boardsmith/pkg/source"
)

// CommandSpec names one toolchain invocation. Tool is resolved against the
// job's composed PATH at spawn time.
type CommandSpec struct {
	Tool string
	Args []string
}

// Profile carries the toolchain invocation parameters for one board type.
type Profile struct {
	// Build produces the firmware artifact.
	Build CommandSpec
	// Artifact is the build output path, relative to the source tree.
	Artifact string
	// Flash writes the artifact to an attached device. Optional; required
	// only for requests with Flash set. Args may reference {device},
	// {artifact}, and {source}, expanded just before the flash stage runs.
	Flash CommandSpec
}

// JobRequest describes one build-then-optionally-flash job. Requests are
// immutable once submitted.
type JobRequest struct {
	// Target identifies the board. At most one job per target runs at a time.
	Target string
	// Repo and Revision locate the firmware source.
	Repo     source.RepoSpec
	Revision string
	// Profile is the board's toolchain invocation.
	Profile Profile
	// Flash requests a flash stage after a successful build.
	Flash bool
	// Device is the flash-target device path, substituted for {device}.
	Device string
	// Platform and DepsRoot feed environment resolution.
	Platform string
	DepsRoot string
}

// Placeholders lists the substitutions supported in flash arguments.
var Placeholders = []string{"device", "artifact", "source"}

// ExpandArgs substitutes {name} placeholders in args from vals. Unknown
// placeholders are left as-is; catalog validation rejects them at load time.
func ExpandArgs(args []string, vals map[string]string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		for k, v := range vals {
			a = strings.ReplaceAll(a, "{"+k+"}", v)
		}
		out[i] = a
	}
	return out
}

// sanitizeTarget reduces a target identifier to a filesystem-safe checkout
// directory name.
func sanitizeTarget(target string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '_' || r == '-':
			return r
		default:
			return '-'
		}
	}, target)
}
