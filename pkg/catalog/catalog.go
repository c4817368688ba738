// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package catalog loads board definition files: per-target source
// repositories and toolchain invocations from which job requests are
// assembled.
package catalog

import (
	"io"
	"os"
	"regexp"
	"runtime"
	"slices"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/google/boardsmith/pkg/orchestrator"
	"github.com/google/boardsmith/pkg/source"
)

// Command is one tool invocation from a definition file.
type Command struct {
	Tool string   `toml:"tool"`
	Args []string `toml:"args"`
}

// Board is one target definition.
type Board struct {
	// Name is the target identifier.
	Name string `toml:"name"`
	// Platform overrides the host platform for environment resolution.
	Platform string `toml:"platform"`
	// Repo is the firmware clone URL and Revision the default revision; an
	// empty revision means the remote default branch. Owner and RepoName
	// are optional hosting-service metadata carried into the repo
	// descriptor.
	Repo     string `toml:"repo"`
	Owner    string `toml:"owner"`
	RepoName string `toml:"repo_name"`
	Revision string `toml:"revision"`
	// Artifact is the build output path, relative to the source tree.
	Artifact string `toml:"artifact"`
	// Build and Flash are the board's toolchain invocations. Flash args may
	// reference {device}, {artifact}, and {source}.
	Build Command `toml:"build"`
	Flash Command `toml:"flash"`
}

type catalogFile struct {
	Board []Board `toml:"board"`
}

// Catalog is a validated set of board definitions.
type Catalog struct {
	boards map[string]Board
	order  []string
}

// Load parses a TOML catalog. Definition problems are load-time errors so a
// bad catalog is rejected before any job runs.
func Load(r io.Reader) (*Catalog, error) {
	d := toml.NewDecoder(r)
	d.DisallowUnknownFields()
	var f catalogFile
	if err := d.Decode(&f); err != nil {
		return nil, errors.Wrap(err, "decoding catalog")
	}
	c := &Catalog{boards: map[string]Board{}}
	for i, b := range f.Board {
		if b.Name == "" {
			return nil, errors.Errorf("board %d: name is required", i)
		}
		if _, ok := c.boards[b.Name]; ok {
			return nil, errors.Errorf("board %q: duplicate definition", b.Name)
		}
		if b.Repo == "" {
			return nil, errors.Errorf("board %q: repo is required", b.Name)
		}
		if b.Build.Tool == "" {
			return nil, errors.Errorf("board %q: build.tool is required", b.Name)
		}
		if b.Artifact == "" {
			return nil, errors.Errorf("board %q: artifact is required", b.Name)
		}
		if err := checkPlaceholders(b.Flash.Args); err != nil {
			return nil, errors.Wrapf(err, "board %q: flash.args", b.Name)
		}
		c.boards[b.Name] = b
		c.order = append(c.order, b.Name)
	}
	return c, nil
}

// LoadFile reads a catalog from a TOML file.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening catalog %s", path)
	}
	defer f.Close()
	return Load(f)
}

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_]+)\}`)

func checkPlaceholders(args []string) error {
	for _, a := range args {
		for _, m := range placeholderPattern.FindAllStringSubmatch(a, -1) {
			if !slices.Contains(orchestrator.Placeholders, m[1]) {
				return errors.Errorf("unknown placeholder {%s}", m[1])
			}
		}
	}
	return nil
}

// Targets returns the defined target names in file order.
func (c *Catalog) Targets() []string {
	return slices.Clone(c.order)
}

// Board returns the definition for target.
func (c *Catalog) Board(target string) (Board, bool) {
	b, ok := c.boards[target]
	return b, ok
}

// Request assembles a JobRequest for target. revision and device, when
// non-empty, override the board's defaults; flash requires the board to
// define a flash command.
func (c *Catalog) Request(target, revision, device string, flash bool, depsRoot string) (orchestrator.JobRequest, error) {
	b, ok := c.boards[target]
	if !ok {
		return orchestrator.JobRequest{}, errors.Errorf("unknown target %q", target)
	}
	if flash && b.Flash.Tool == "" {
		return orchestrator.JobRequest{}, errors.Errorf("target %q defines no flash command", target)
	}
	if revision == "" {
		revision = b.Revision
	}
	platform := b.Platform
	if platform == "" {
		platform = runtime.GOOS
	}
	return orchestrator.JobRequest{
		Target:   target,
		Repo:     source.RepoSpec{URL: b.Repo, Owner: b.Owner, Name: b.RepoName},
		Revision: revision,
		Profile: orchestrator.Profile{
			Build:    orchestrator.CommandSpec{Tool: b.Build.Tool, Args: b.Build.Args},
			Artifact: b.Artifact,
			Flash:    orchestrator.CommandSpec{Tool: b.Flash.Tool, Args: b.Flash.Args},
		},
		Flash:    flash,
		Device:   device,
		Platform: platform,
		DepsRoot: depsRoot,
	}, nil
}
