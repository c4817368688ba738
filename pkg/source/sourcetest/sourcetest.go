// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package sourcetest builds throwaway on-disk git repositories from YAML
// commit scripts for provider tests.
package sourcetest

import (
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Commit is one scripted repository state.
type Commit struct {
	ID      string            `yaml:"id"`
	Message string            `yaml:"message"`
	Parent  string            `yaml:"parent,omitempty"`
	Branch  string            `yaml:"branch,omitempty"`
	Tag     string            `yaml:"tag,omitempty"`
	Files   map[string]string `yaml:"files"`
}

type script struct {
	Commits []Commit `yaml:"commits"`
}

// Repo is an on-disk fixture repository, cloneable by its Dir path.
type Repo struct {
	Dir     string
	Repo    *git.Repository
	Commits map[string]plumbing.Hash
	fs      billy.Filesystem
}

// CreateRepo materializes a repository under dir from a YAML commit script.
func CreateRepo(dir, content string) (*Repo, error) {
	var s script
	d := yaml.NewDecoder(strings.NewReader(content))
	d.KnownFields(true)
	if err := d.Decode(&s); err != nil {
		return nil, errors.Wrap(err, "decoding commit script")
	}
	r, err := git.PlainInit(dir, false)
	if err != nil {
		return nil, errors.Wrap(err, "initializing repo")
	}
	repo := &Repo{Dir: dir, Repo: r, Commits: map[string]plumbing.Hash{}, fs: osfs.New(dir)}
	for _, c := range s.Commits {
		if _, err := repo.AddCommit(c); err != nil {
			return nil, err
		}
	}
	return repo, nil
}

// AddCommit applies one more scripted commit, indexing its hash by ID.
func (r *Repo) AddCommit(c Commit) (plumbing.Hash, error) {
	wt, err := r.Repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, errors.Wrap(err, "accessing worktree")
	}
	for name, content := range c.Files {
		if err := util.WriteFile(r.fs, name, []byte(content), 0o644); err != nil {
			return plumbing.ZeroHash, errors.Wrap(err, "writing file")
		}
		if _, err := wt.Add(name); err != nil {
			return plumbing.ZeroHash, errors.Wrap(err, "staging file")
		}
	}
	var parents []plumbing.Hash
	if c.Parent != "" {
		h, ok := r.Commits[c.Parent]
		if !ok {
			return plumbing.ZeroHash, errors.Errorf("unknown parent %q", c.Parent)
		}
		parents = append(parents, h)
	}
	hash, err := wt.Commit(c.Message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "fixture",
			Email: "fixture@example.com",
			When:  time.Now(),
		},
		AllowEmptyCommits: true,
		Parents:           parents,
	})
	if err != nil {
		return plumbing.ZeroHash, errors.Wrap(err, "committing")
	}
	if c.ID != "" {
		r.Commits[c.ID] = hash
	}
	if c.Branch != "" {
		ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(c.Branch), hash)
		if err := r.Repo.Storer.SetReference(ref); err != nil {
			return plumbing.ZeroHash, errors.Wrap(err, "setting branch")
		}
	}
	if c.Tag != "" {
		if _, err := r.Repo.CreateTag(c.Tag, hash, nil); err != nil {
			return plumbing.ZeroHash, errors.Wrap(err, "creating tag")
		}
	}
	return hash, nil
}
