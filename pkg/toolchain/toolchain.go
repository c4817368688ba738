// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package toolchain resolves the execution environment for firmware build
// and flash jobs: a PATH composed so that portable toolchains bundled under a
// deps root take precedence over host installations, plus the working roots
// where source checkouts and scratch state live.
package toolchain

import (
	"os"
	"path/filepath"
	"strings"
)

// Context carries the resolved execution environment for one job. A Context
// is computed once per job and owned by it; nothing here is shared.
type Context struct {
	// Platform is the OS the job runs on ("linux", "darwin", "windows").
	Platform string
	// Path is the composed PATH value, portable toolchain directories first.
	Path string
	// Environ is the full environment for spawned tools, with Path applied.
	Environ []string
	// SourceRoot is the parent directory for per-target source checkouts.
	SourceRoot string
	// StateRoot is the scratch directory for toolchain state.
	StateRoot string
}

// Resolver produces the execution environment for a job.
type Resolver interface {
	Resolve(platform, depsRoot string) Context
}

// portableDirs lists the toolchain directories expected under a deps root,
// in PATH precedence order. Relative paths use forward slashes and are
// rewritten per platform.
var portableDirs = map[string][]string{
	"linux":   {"toolchain/bin", "git/bin"},
	"darwin":  {"toolchain/bin", "git/bin"},
	"windows": {"toolchain/bin", "git/cmd", "git/usr/bin"},
}

// HostResolver composes the host environment with the portable toolchain
// directories bundled under a deps root. Resolution never fails: platforms
// without a portable layout get the inherited environment unmodified.
type HostResolver struct {
	// Environ supplies the inherited environment. Defaults to os.Environ.
	Environ func() []string
	// Root anchors SourceRoot and StateRoot. Defaults to a directory under
	// the system temp dir.
	Root string
}

func (r HostResolver) Resolve(platform, depsRoot string) Context {
	environ := r.Environ
	if environ == nil {
		environ = os.Environ
	}
	env := append([]string(nil), environ()...)
	root := r.Root
	if root == "" {
		root = filepath.Join(os.TempDir(), "boardsmith")
	}
	c := Context{
		Platform:   platform,
		SourceRoot: filepath.Join(root, "src"),
		StateRoot:  filepath.Join(root, "state"),
	}
	inherited := getEnv(env, "PATH")
	dirs := portableDirs[platform]
	if len(dirs) == 0 {
		// Unknown platform: inherited environment, unmodified.
		c.Path = inherited
		c.Environ = env
		return c
	}
	var parts []string
	if depsRoot != "" {
		for _, d := range dirs {
			parts = append(parts, joinDir(platform, depsRoot, d))
		}
	}
	if inherited != "" {
		parts = append(parts, inherited)
	}
	c.Path = strings.Join(parts, listSeparator(platform))
	env = setEnv(env, "PATH", c.Path)
	// Spawned git must never stall a job waiting for credentials.
	env = setEnv(env, "GIT_TERMINAL_PROMPT", "0")
	c.Environ = env
	return c
}

// listSeparator returns the PATH list separator convention of platform.
func listSeparator(platform string) string {
	if platform == "windows" {
		return ";"
	}
	return ":"
}

// joinDir appends a forward-slash relative path onto root using platform
// separator conventions.
func joinDir(platform, root, rel string) string {
	if platform == "windows" {
		rel = strings.ReplaceAll(rel, "/", `\`)
		return strings.TrimRight(root, `\`) + `\` + rel
	}
	return strings.TrimRight(root, "/") + "/" + rel
}

// getEnv returns the value of key in env, matching names case-insensitively
// (Windows environments carry "Path").
func getEnv(env []string, key string) string {
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// setEnv replaces key's entry in env, preserving the original name casing,
// or appends one. env is modified in place when possible.
func setEnv(env []string, key, value string) []string {
	for i, kv := range env {
		if k, _, ok := strings.Cut(kv, "="); ok && strings.EqualFold(k, key) {
			env[i] = k + "=" + value
			return env
		}
	}
	return append(env, key+"="+value)
}
