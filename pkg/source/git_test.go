// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"

	"github.com/google/boardsmith/pkg/source/sourcetest"
	"github.com/google/boardsmith/pkg/toolchain"
)

// hermetic has no git on its PATH, so every operation goes through go-git
// regardless of what the host has installed.
var hermetic = toolchain.Context{Platform: "linux"}

const fixtureScript = `
commits:
  - id: initial
    message: initial firmware
    files:
      Makefile: "all:\n\ttrue\n"
      src/main.c: "int main(void) { return 0; }\n"
  - id: tagged
    message: cut v1.0.0
    tag: v1.0.0
    files:
      src/main.c: "int main(void) { return 1; }\n"
  - id: feature
    message: experimental matrix scan
    parent: tagged
    branch: feature/matrix
    files:
      src/matrix.c: "void scan(void) {}\n"
`

func createFixture(t *testing.T, script string) *sourcetest.Repo {
	t.Helper()
	repo, err := sourcetest.CreateRepo(t.TempDir(), script)
	if err != nil {
		t.Fatal(err)
	}
	return repo
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestPrepareFreshClone(t *testing.T) {
	fixture := createFixture(t, fixtureScript)
	dest := filepath.Join(t.TempDir(), "wc")

	tree, err := NewGitProvider().Prepare(context.Background(), RepoSpec{URL: fixture.Dir}, "v1.0.0", dest, hermetic)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if tree != dest {
		t.Errorf("tree = %q, want %q", tree, dest)
	}
	if got := readFile(t, filepath.Join(tree, "src/main.c")); got != "int main(void) { return 1; }\n" {
		t.Errorf("main.c = %q, want the v1.0.0 revision", got)
	}
}

func TestPrepareCommitHash(t *testing.T) {
	fixture := createFixture(t, fixtureScript)
	dest := filepath.Join(t.TempDir(), "wc")

	rev := fixture.Commits["initial"].String()
	if _, err := NewGitProvider().Prepare(context.Background(), RepoSpec{URL: fixture.Dir}, rev, dest, hermetic); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if got := readFile(t, filepath.Join(dest, "src/main.c")); got != "int main(void) { return 0; }\n" {
		t.Errorf("main.c = %q, want the initial revision", got)
	}
}

func TestPrepareBranch(t *testing.T) {
	fixture := createFixture(t, fixtureScript)
	dest := filepath.Join(t.TempDir(), "wc")

	// Unqualified branch names resolve through the remote-tracking ref.
	if _, err := NewGitProvider().Prepare(context.Background(), RepoSpec{URL: fixture.Dir}, "feature/matrix", dest, hermetic); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "src/matrix.c")); err != nil {
		t.Errorf("matrix.c missing after branch checkout: %v", err)
	}
}

func TestPrepareDefaultBranch(t *testing.T) {
	fixture := createFixture(t, fixtureScript)
	dest := filepath.Join(t.TempDir(), "wc")

	if _, err := NewGitProvider().Prepare(context.Background(), RepoSpec{URL: fixture.Dir}, "", dest, hermetic); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	// The fixture's default branch tip is the last scripted commit.
	if _, err := os.Stat(filepath.Join(dest, "src/matrix.c")); err != nil {
		t.Errorf("matrix.c missing after default-branch checkout: %v", err)
	}
}

func TestPrepareRevisionNotFound(t *testing.T) {
	fixture := createFixture(t, fixtureScript)
	dest := filepath.Join(t.TempDir(), "wc")

	_, err := NewGitProvider().Prepare(context.Background(), RepoSpec{URL: fixture.Dir}, "v9.9.9", dest, hermetic)
	if !errors.Is(err, ErrRevisionNotFound) {
		t.Errorf("err = %v, want ErrRevisionNotFound", err)
	}
}

func TestPrepareNetworkUnavailable(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "wc")

	_, err := NewGitProvider().Prepare(context.Background(), RepoSpec{URL: filepath.Join(t.TempDir(), "absent")}, "", dest, hermetic)
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("err = %v, want ErrNetwork", err)
	}
}

func TestPrepareDiscardsLocalState(t *testing.T) {
	fixture := createFixture(t, fixtureScript)
	dest := filepath.Join(t.TempDir(), "wc")
	p := NewGitProvider()

	if _, err := p.Prepare(context.Background(), RepoSpec{URL: fixture.Dir}, "v1.0.0", dest, hermetic); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	// Corrupt the working copy the way a failed build would.
	if err := os.WriteFile(filepath.Join(dest, "src/main.c"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dest, "stale.o"), []byte{0}, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := p.Prepare(context.Background(), RepoSpec{URL: fixture.Dir}, "v1.0.0", dest, hermetic); err != nil {
		t.Fatalf("second Prepare: %v", err)
	}
	if got := readFile(t, filepath.Join(dest, "src/main.c")); got != "int main(void) { return 1; }\n" {
		t.Errorf("main.c = %q, want local modification discarded", got)
	}
	if _, err := os.Stat(filepath.Join(dest, "stale.o")); !os.IsNotExist(err) {
		t.Errorf("stale.o survived: %v", err)
	}
}

func TestPrepareFetchesNewRevisions(t *testing.T) {
	fixture := createFixture(t, fixtureScript)
	dest := filepath.Join(t.TempDir(), "wc")
	p := NewGitProvider()

	if _, err := p.Prepare(context.Background(), RepoSpec{URL: fixture.Dir}, "v1.0.0", dest, hermetic); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	// The upstream moves on after our first checkout.
	if _, err := fixture.AddCommit(sourcetest.Commit{
		Message: "cut v2.0.0",
		Tag:     "v2.0.0",
		Files:   map[string]string{"src/main.c": "int main(void) { return 2; }\n"},
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := p.Prepare(context.Background(), RepoSpec{URL: fixture.Dir}, "v2.0.0", dest, hermetic); err != nil {
		t.Fatalf("Prepare after upstream change: %v", err)
	}
	if got := readFile(t, filepath.Join(dest, "src/main.c")); got != "int main(void) { return 2; }\n" {
		t.Errorf("main.c = %q, want the v2.0.0 revision", got)
	}
}

func TestPrepareReclonesOnRemoteMismatch(t *testing.T) {
	fixtureA := createFixture(t, `
commits:
  - id: a
    message: repo a
    files:
      a.txt: "a\n"
`)
	fixtureB := createFixture(t, `
commits:
  - id: b
    message: repo b
    files:
      b.txt: "b\n"
`)
	dest := filepath.Join(t.TempDir(), "wc")
	p := NewGitProvider()

	if _, err := p.Prepare(context.Background(), RepoSpec{URL: fixtureA.Dir}, "", dest, hermetic); err != nil {
		t.Fatalf("Prepare A: %v", err)
	}
	if _, err := p.Prepare(context.Background(), RepoSpec{URL: fixtureB.Dir}, "", dest, hermetic); err != nil {
		t.Fatalf("Prepare B: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "b.txt")); err != nil {
		t.Errorf("b.txt missing after reclone: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "a.txt")); !os.IsNotExist(err) {
		t.Errorf("a.txt survived the reclone: %v", err)
	}
}

func TestPrepareReplacesNonRepoDest(t *testing.T) {
	fixture := createFixture(t, fixtureScript)
	dest := filepath.Join(t.TempDir(), "wc")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dest, "junk"), []byte("junk"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewGitProvider().Prepare(context.Background(), RepoSpec{URL: fixture.Dir}, "v1.0.0", dest, hermetic); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "junk")); !os.IsNotExist(err) {
		t.Errorf("junk survived: %v", err)
	}
}

func TestRepoSpecSlug(t *testing.T) {
	testCases := []struct {
		repo RepoSpec
		want string
	}{
		{RepoSpec{URL: "https://github.com/qmk/qmk_firmware.git"}, "qmk_firmware"},
		{RepoSpec{URL: "https://github.com/qmk/qmk_firmware/"}, "qmk_firmware"},
		{RepoSpec{URL: "/srv/git/zmk"}, "zmk"},
		{RepoSpec{URL: `C:\repos\fw`}, "fw"},
		{RepoSpec{URL: "standalone"}, "standalone"},
		{RepoSpec{URL: "https://example.com/r.git", Owner: "qmk", Name: "qmk_firmware"}, "qmk/qmk_firmware"},
		{RepoSpec{URL: "https://example.com/r.git", Name: "zmk"}, "zmk"},
	}
	for _, tc := range testCases {
		if got := tc.repo.Slug(); got != tc.want {
			t.Errorf("%+v Slug() = %q, want %q", tc.repo, got, tc.want)
		}
	}
}
