// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"context"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/pkg/errors"

	"github.com/google/boardsmith/pkg/toolchain"
)

// GitProvider prepares working copies with git, preferring a native binary
// from the composed PATH and falling back to go-git.
type GitProvider struct{}

func NewGitProvider() *GitProvider {
	return &GitProvider{}
}

func (p *GitProvider) Prepare(ctx context.Context, repo RepoSpec, revision, dest string, env toolchain.Context) (string, error) {
	r, err := p.open(ctx, repo, dest, env)
	if err != nil {
		return "", err
	}
	if err := fetch(ctx, r, repo); err != nil {
		return "", err
	}
	hash, err := resolve(r, revision)
	if err != nil {
		return "", err
	}
	if err := checkout(ctx, r, hash, dest, env); err != nil {
		return "", err
	}
	log.Printf("[%s] checked out %s", repo.Slug(), hash)
	return dest, nil
}

// open returns the existing working copy at dest when it tracks repo, and
// otherwise clears dest and clones fresh.
func (p *GitProvider) open(ctx context.Context, repo RepoSpec, dest string, env toolchain.Context) (*git.Repository, error) {
	r, err := git.PlainOpen(dest)
	if err == nil {
		if remoteMatches(r, repo.URL) {
			return r, nil
		}
		log.Printf("[%s] working copy tracks a different remote; recloning", repo.Slug())
	} else if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, errors.Wrapf(ErrFilesystem, "opening working copy: %v", err)
	}
	if err := os.RemoveAll(dest); err != nil {
		return nil, errors.Wrapf(ErrFilesystem, "clearing working copy: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, errors.Wrapf(ErrFilesystem, "creating source root: %v", err)
	}
	return p.clone(ctx, repo, dest, env)
}

func (p *GitProvider) clone(ctx context.Context, repo RepoSpec, dest string, env toolchain.Context) (*git.Repository, error) {
	if gitPath, err := env.LookPath("git"); err == nil {
		log.Printf("[%s] cloning %s with native git", repo.Slug(), repo.URL)
		return nativeClone(ctx, gitPath, repo, dest, env)
	}
	log.Printf("[%s] cloning %s with go-git", repo.Slug(), repo.URL)
	r, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{URL: repo.URL, Tags: git.AllTags})
	if err != nil {
		return nil, remoteErr(err, "cloning "+repo.URL)
	}
	return r, nil
}

// nativeClone shells out to the composed-PATH git, which is substantially
// faster than go-git on large firmware trees.
func nativeClone(ctx context.Context, gitPath string, repo RepoSpec, dest string, env toolchain.Context) (*git.Repository, error) {
	cmd := exec.CommandContext(ctx, gitPath, "clone", repo.URL, dest)
	cmd.Env = env.Environ
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, remoteErr(errors.Errorf("native git clone: %s", summarize(output)), "cloning "+repo.URL)
	}
	r, err := git.PlainOpen(dest)
	if err != nil {
		return nil, errors.Wrapf(ErrFilesystem, "opening fresh clone: %v", err)
	}
	return r, nil
}

func fetch(ctx context.Context, r *git.Repository, repo RepoSpec) error {
	err := r.FetchContext(ctx, &git.FetchOptions{Force: true, Tags: git.AllTags, Prune: true})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return remoteErr(err, "fetching "+repo.URL)
	}
	return nil
}

// resolve turns a revision (hash, tag, branch) into a commit hash. Branch
// names usually arrive unqualified, so remote-tracking refs are retried.
func resolve(r *git.Repository, revision string) (plumbing.Hash, error) {
	rev := revision
	if rev == "" {
		rev = "HEAD"
	}
	if h, err := r.ResolveRevision(plumbing.Revision(rev)); err == nil {
		return *h, nil
	}
	if h, err := r.ResolveRevision(plumbing.Revision("origin/" + rev)); err == nil {
		return *h, nil
	}
	return plumbing.ZeroHash, errors.Wrap(ErrRevisionNotFound, revision)
}

func checkout(ctx context.Context, r *git.Repository, hash plumbing.Hash, dest string, env toolchain.Context) error {
	wt, err := r.Worktree()
	if err != nil {
		return errors.Wrapf(ErrFilesystem, "accessing worktree: %v", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: hash, Force: true}); err != nil {
		return errors.Wrapf(ErrFilesystem, "checking out %s: %v", hash, err)
	}
	return clean(ctx, wt, dest, env)
}

// clean sweeps untracked files so build droppings from prior runs cannot
// leak into this one. Native git also removes ignored files (-x), which
// go-git's Clean cannot yet do.
func clean(ctx context.Context, wt *git.Worktree, dest string, env toolchain.Context) error {
	if gitPath, err := env.LookPath("git"); err == nil {
		cmd := exec.CommandContext(ctx, gitPath, "clean", "-ffdx")
		cmd.Dir = dest
		cmd.Env = env.Environ
		if output, err := cmd.CombinedOutput(); err != nil {
			return errors.Wrapf(ErrFilesystem, "git clean: %v: %s", err, summarize(output))
		}
		return nil
	}
	if err := wt.Clean(&git.CleanOptions{Dir: true}); err != nil {
		return errors.Wrapf(ErrFilesystem, "cleaning worktree: %v", err)
	}
	return nil
}

func remoteMatches(r *git.Repository, url string) bool {
	cfg, err := r.Config()
	if err != nil {
		return false
	}
	remote, ok := cfg.Remotes[git.DefaultRemoteName]
	if !ok {
		return false
	}
	for _, u := range remote.URLs {
		if canonicalURL(u) == canonicalURL(url) {
			return true
		}
	}
	return false
}

// canonicalURL normalizes clone URLs enough for identity comparison.
func canonicalURL(u string) string {
	return strings.TrimSuffix(strings.TrimRight(u, "/"), ".git")
}

// remoteErr folds a transport failure into the provider's error kinds.
// The taxonomy treats an unreachable remote and one that refuses to serve
// the repository alike. Context cancellation passes through untouched.
func remoteErr(err error, op string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.Wrapf(ErrNetwork, "%s: %v", op, err)
}

// summarize reduces tool output to its most informative line, which for git
// is the trailing "fatal: ..." line.
func summarize(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
