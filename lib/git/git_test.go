// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package git

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/assemble/lib/testutil"
)

func TestRepository_Run(t *testing.T) {
	t.Parallel()
	testutil.RequireGit(t)

	upstream := testutil.InitRepository(t, t.TempDir(), "repo")
	repo := NewRepository(upstream)

	output, err := repo.Run(context.Background(), "branch", "--list")
	if err != nil {
		t.Fatalf("Run(branch --list): %v", err)
	}
	if !strings.Contains(output, "master") {
		t.Errorf("branch list output = %q, want to contain 'master'", output)
	}
}

func TestRepository_Run_InvalidSubcommand(t *testing.T) {
	t.Parallel()
	testutil.RequireGit(t)

	upstream := testutil.InitRepository(t, t.TempDir(), "repo")
	repo := NewRepository(upstream)

	_, err := repo.Run(context.Background(), "not-a-real-command")
	if err == nil {
		t.Fatal("expected error for invalid git subcommand")
	}
	if !strings.Contains(err.Error(), upstream) {
		t.Errorf("error = %v, want to contain repository dir %q", err, upstream)
	}
}

func TestRepository_Run_NonexistentDirectory(t *testing.T) {
	t.Parallel()
	testutil.RequireGit(t)

	repo := NewRepository(filepath.Join(t.TempDir(), "nonexistent"))

	_, err := repo.Run(context.Background(), "status")
	if err == nil {
		t.Fatal("expected error for nonexistent directory")
	}
}

func TestRepository_RevParse(t *testing.T) {
	t.Parallel()
	testutil.RequireGit(t)

	upstream := testutil.InitRepository(t, t.TempDir(), "repo")
	want := testutil.Git(t, upstream, "rev-parse", "HEAD")

	got, err := NewRepository(upstream).RevParse(context.Background(), "master^{commit}")
	if err != nil {
		t.Fatalf("RevParse: %v", err)
	}
	if got != want {
		t.Errorf("RevParse = %q, want %q", got, want)
	}

	if _, err := NewRepository(upstream).RevParse(context.Background(), "no-such-ref"); err == nil {
		t.Error("expected error for unknown ref")
	}
}

func TestRepository_Command(t *testing.T) {
	t.Parallel()

	repo := NewRepository("/some/dir")

	cmd := repo.Command(context.Background(), "status", "--porcelain")

	// exec.Cmd.Args includes the program name as Args[0].
	expectedArgs := []string{"git", "-C", "/some/dir", "status", "--porcelain"}
	if len(cmd.Args) != len(expectedArgs) {
		t.Fatalf("cmd.Args = %v, want %v", cmd.Args, expectedArgs)
	}
	for i, want := range expectedArgs {
		if cmd.Args[i] != want {
			t.Errorf("cmd.Args[%d] = %q, want %q", i, cmd.Args[i], want)
		}
	}
}

func TestRepository_Dir(t *testing.T) {
	t.Parallel()

	repo := NewRepository("/srv/gits/zlib")
	if repo.Dir() != "/srv/gits/zlib" {
		t.Errorf("Dir() = %q, want %q", repo.Dir(), "/srv/gits/zlib")
	}
}
