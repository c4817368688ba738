// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

package toolchain

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ErrNotFound reports that an executable is absent from a path list.
var ErrNotFound = errors.New("executable not found")

// LookPath resolves file against an explicit path list rather than the
// process environment, which is what exec.LookPath would consult. platform
// selects the list separator and executable conventions. A file containing a
// path separator is checked directly.
func LookPath(file, pathList, platform string) (string, error) {
	if strings.ContainsAny(file, `/\`) {
		if isExecutable(file, platform) {
			return file, nil
		}
		return "", errors.Wrap(ErrNotFound, file)
	}
	for _, dir := range strings.Split(pathList, listSeparator(platform)) {
		if dir == "" {
			continue
		}
		for _, cand := range candidates(dir, file, platform) {
			if isExecutable(cand, platform) {
				return cand, nil
			}
		}
	}
	return "", errors.Wrap(ErrNotFound, file)
}

// LookPath resolves file against the context's composed PATH.
func (c Context) LookPath(file string) (string, error) {
	return LookPath(file, c.Path, c.Platform)
}

func candidates(dir, file, platform string) []string {
	if platform != "windows" {
		return []string{filepath.Join(dir, file)}
	}
	names := []string{file + ".exe", file + ".cmd", file + ".bat", file}
	if filepath.Ext(file) != "" {
		names = []string{file, file + ".exe", file + ".cmd", file + ".bat"}
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = filepath.Join(dir, n)
	}
	return out
}

func isExecutable(path, platform string) bool {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return false
	}
	if platform == "windows" {
		// No execute bit on Windows; the extension filter decides.
		return true
	}
	return fi.Mode()&0111 != 0
}
