// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package source prepares firmware source trees: a Provider materializes a
// repository at a requested revision inside a disposable working copy.
package source

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/google/boardsmith/pkg/toolchain"
)

// RepoSpec identifies a firmware source repository. Only URL drives clone
// and fetch; Owner and Name are display metadata for logs and transports.
type RepoSpec struct {
	// URL is the clone URL. Local paths are accepted.
	URL string
	// Owner and Name identify the repository on its hosting service.
	// Optional; derived from URL when absent.
	Owner string
	Name  string
}

// Slug returns a short display name for log tags: "owner/name" when known,
// otherwise the trailing path segment of the clone URL.
func (r RepoSpec) Slug() string {
	if r.Name != "" {
		if r.Owner != "" {
			return r.Owner + "/" + r.Name
		}
		return r.Name
	}
	s := strings.TrimSuffix(strings.TrimRight(r.URL, "/"), ".git")
	if i := strings.LastIndexAny(s, `/\`); i >= 0 && i+1 < len(s) {
		return s[i+1:]
	}
	return s
}

var (
	// ErrNetwork reports that the remote could not be reached or would not
	// serve the repository.
	ErrNetwork = errors.New("network unavailable")
	// ErrRevisionNotFound reports that the requested revision does not exist
	// in the repository.
	ErrRevisionNotFound = errors.New("revision not found")
	// ErrFilesystem reports a local working-copy failure.
	ErrFilesystem = errors.New("filesystem error")
)

// Provider materializes source trees for jobs.
type Provider interface {
	// Prepare checks out repo at revision under dest, a directory owned by
	// the caller, and returns the tree path. The working copy is disposable:
	// local modifications are discarded, untracked files are removed, and a
	// dest tracking a different remote is wiped and recloned. An empty
	// revision means the remote default branch.
	Prepare(ctx context.Context, repo RepoSpec, revision, dest string, env toolchain.Context) (string, error)
}
