// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package git

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/assemble/lib/component"
)

// ErrNoRepository is returned for a component that declares no source
// repository. Tarball sources are not supported.
var ErrNoRepository = errors.New("no repository specified")

// repoNamespace is stripped from declared repository locators.
const repoNamespace = "upstream:"

// SourceError reports a failure to resolve or check out a component's
// source. It is never retried here.
type SourceError struct {
	Component string
	Ref       string
	Op        string
	Err       error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %s %q: %v", e.Component, e.Op, e.Ref, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// MirrorConfig holds configuration for a MirrorManager.
type MirrorConfig struct {
	// Root is the directory holding one bare mirror per repository.
	Root string

	// RemoteBase is prepended to a repository name to form its clone
	// URL; ".git" is appended.
	RemoteBase string

	// Logger for mirror operations.
	Logger *slog.Logger
}

// MirrorManager maintains bare mirror clones and derives working
// copies from them.
//
// Clones and fetches of one mirror are serialized across processes by
// an flock on "<mirror>.lock". Callers that build several components
// from the same source concurrently still have to order their own work
// around those calls.
type MirrorManager struct {
	root       string
	remoteBase string
	logger     *slog.Logger
}

// NewMirrorManager creates a MirrorManager.
func NewMirrorManager(config MirrorConfig) (*MirrorManager, error) {
	if config.Root == "" {
		return nil, fmt.Errorf("mirror root is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &MirrorManager{
		root:       config.Root,
		remoteBase: config.RemoteBase,
		logger:     logger,
	}, nil
}

// Root returns the mirror root.
func (m *MirrorManager) Root() string {
	return m.root
}

// RepoName strips the namespace prefix and surrounding whitespace from
// a declared repository locator. URLs and absolute paths are reduced to
// their final path element without a ".git" suffix.
func RepoName(repo string) string {
	repo = strings.TrimSpace(repo)
	if isRemoteLocation(repo) {
		return strings.TrimSuffix(path.Base(strings.TrimSuffix(repo, "/")), ".git")
	}
	return strings.TrimSpace(strings.TrimPrefix(repo, repoNamespace))
}

// MirrorPath returns the mirror directory for a repository locator.
func (m *MirrorManager) MirrorPath(repo string) string {
	return filepath.Join(m.root, RepoName(repo))
}

// RemoteURL returns the URL a mirror of repo is cloned from. URLs and
// absolute paths are used as given.
func (m *MirrorManager) RemoteURL(repo string) string {
	repo = strings.TrimSpace(repo)
	if isRemoteLocation(repo) {
		return repo
	}
	return m.remoteBase + RepoName(repo) + ".git"
}

func isRemoteLocation(repo string) bool {
	return strings.Contains(repo, "://") || filepath.IsAbs(repo)
}

// Lock takes an exclusive flock for the mirror of repo and returns a
// function that releases it. It blocks until the lock is available.
func (m *MirrorManager) Lock(repo string) (func(), error) {
	lockPath := m.MirrorPath(repo) + ".lock"
	// Namespaced repositories ("delta/zlib") nest below the root.
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return nil, fmt.Errorf("creating mirror directory %s: %w", filepath.Dir(lockPath), err)
	}
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening mirror lock %s: %w", lockPath, err)
	}
	for {
		err = unix.Flock(int(file.Fd()), unix.LOCK_EX)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("locking %s: %w", lockPath, err)
	}
	return func() {
		unix.Flock(int(file.Fd()), unix.LOCK_UN)
		file.Close()
	}, nil
}

// EnsureMirror makes sure a bare mirror of c's repository exists,
// cloning it with "clone --mirror -n" if not, and records its path in
// c.Git.
func (m *MirrorManager) EnsureMirror(ctx context.Context, c *component.Component) error {
	if strings.TrimSpace(c.Repo) == "" {
		return fmt.Errorf("%s: %w", c.Name, ErrNoRepository)
	}

	mirror := m.MirrorPath(c.Repo)
	if _, err := os.Stat(mirror); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("checking mirror %s: %w", mirror, err)
		}

		unlock, err := m.Lock(c.Repo)
		if err != nil {
			return err
		}
		defer unlock()

		// Another process may have cloned while we waited.
		if _, err := os.Stat(mirror); os.IsNotExist(err) {
			url := m.RemoteURL(c.Repo)
			m.logger.Info("mirroring repository", "component", c.Name, "url", url, "mirror", mirror)
			if _, err := NewRepository(m.root).Run(ctx, "clone", "--mirror", "-n", url, mirror); err != nil {
				return &SourceError{Component: c.Name, Ref: url, Op: "mirror", Err: err}
			}
		}
	}

	c.Git = mirror
	m.logger.Info("git repo is mirrored", "component", c.Name, "mirror", mirror)
	return nil
}

// Update fetches all refs of c's mirror, pruning deleted ones.
func (m *MirrorManager) Update(ctx context.Context, c *component.Component) error {
	unlock, err := m.Lock(c.Repo)
	if err != nil {
		return err
	}
	defer unlock()

	m.logger.Info("updating mirror", "component", c.Name, "mirror", c.Git)
	if _, err := NewRepository(c.Git).Run(ctx, "remote", "update", "--prune"); err != nil {
		return &SourceError{Component: c.Name, Ref: c.SourceRef(), Op: "update mirror for", Err: err}
	}
	return nil
}

// ResolveCommit resolves c's version (or ref) against its mirror to a
// commit id. If the ref is unknown locally the mirror is updated once
// and the lookup retried; a second miss is a *SourceError.
func (m *MirrorManager) ResolveCommit(ctx context.Context, c *component.Component) (string, error) {
	return m.resolve(ctx, c, "^{commit}")
}

// TreeID resolves c's version (or ref) to the id of its root tree.
// Two refs with identical content share a tree id.
func (m *MirrorManager) TreeID(ctx context.Context, c *component.Component) (string, error) {
	return m.resolve(ctx, c, "^{tree}")
}

func (m *MirrorManager) resolve(ctx context.Context, c *component.Component, peel string) (string, error) {
	if c.Git == "" {
		return "", fmt.Errorf("%s: mirror not resolved (call EnsureMirror first)", c.Name)
	}
	ref := c.SourceRef()
	if ref == "" {
		return "", &SourceError{Component: c.Name, Ref: ref, Op: "resolve", Err: errors.New("no ref or version")}
	}

	mirror := NewRepository(c.Git)
	id, err := mirror.RevParse(ctx, ref+peel)
	if err == nil {
		return id, nil
	}

	m.logger.Info("ref not found in mirror, fetching", "component", c.Name, "ref", ref)
	if err := m.Update(ctx, c); err != nil {
		return "", err
	}
	id, err = mirror.RevParse(ctx, ref+peel)
	if err != nil {
		return "", &SourceError{Component: c.Name, Ref: ref, Op: "resolve", Err: err}
	}
	return id, nil
}

// Checkout populates c.Build with a working copy of c's mirror checked
// out on a new branch named by the resolved commit id. The commit is
// resolved before anything is written, so an unresolvable ref leaves
// no build directory behind. c.Build must not already exist.
//
// Returns the commit id.
func (m *MirrorManager) Checkout(ctx context.Context, c *component.Component) (string, error) {
	if err := m.EnsureMirror(ctx, c); err != nil {
		return "", err
	}
	sha, err := m.ResolveCommit(ctx, c)
	if err != nil {
		return "", err
	}
	if c.Build == "" {
		return "", fmt.Errorf("%s: build directory is not assigned", c.Name)
	}

	if err := os.MkdirAll(filepath.Dir(c.Build), 0755); err != nil {
		return "", fmt.Errorf("creating %s: %w", filepath.Dir(c.Build), err)
	}
	if err := os.Mkdir(c.Build, 0755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%s: build directory %s already exists, probably left by a previous failed attempt; remove it before building again: %w", c.Name, c.Build, err)
		}
		return "", fmt.Errorf("creating build directory: %w", err)
	}

	if err := CopyRepository(ctx, c.Git, c.Build); err != nil {
		return "", &SourceError{Component: c.Name, Ref: c.SourceRef(), Op: "copy mirror for", Err: err}
	}

	workingCopy := NewRepository(c.Build)
	if _, err := workingCopy.Run(ctx, "checkout", "-b", sha, sha); err != nil {
		m.logRevisions(ctx, c, workingCopy)
		return "", &SourceError{Component: c.Name, Ref: sha, Op: "checkout", Err: err}
	}

	m.logger.Info("checked out source", "component", c.Name, "ref", c.SourceRef(), "commit", sha, "build", c.Build)
	return sha, nil
}

// logRevisions is a best-effort diagnostic after a failed checkout.
// Its own failure is ignored.
func (m *MirrorManager) logRevisions(ctx context.Context, c *component.Component, repository *Repository) {
	output, err := repository.Run(ctx, "rev-list", "--all")
	if err != nil {
		return
	}
	revisions := splitLines(output)
	m.logger.Debug("known revisions after failed checkout",
		"component", c.Name,
		"count", len(revisions),
		"revisions", revisions,
	)
}

// CopyRepository copies the mirror at mirrorPath into destination/.git
// and fixes it up to behave like a conventional clone of the mirror:
// not bare, origin not a mirror remote, the usual
// refs/heads/* -> refs/remotes/origin/* refspec, origin pointing at
// mirrorPath, and branch refs rewritten to remote-tracking refs. No
// branch is checked out.
func CopyRepository(ctx context.Context, mirrorPath, destination string) error {
	gitDir := filepath.Join(destination, ".git")
	var stderr strings.Builder
	copyCommand := exec.CommandContext(ctx, "cp", "-a", mirrorPath, gitDir)
	copyCommand.Stderr = &stderr
	if err := copyCommand.Run(); err != nil {
		return fmt.Errorf("copying %s to %s: %w (stderr: %s)", mirrorPath, gitDir, err, strings.TrimSpace(stderr.String()))
	}

	repository := NewRepository(destination)
	steps := [][]string{
		{"config", "core.bare", "false"},
		{"config", "--unset", "remote.origin.mirror"},
		{"config", "remote.origin.fetch", "+refs/heads/*:refs/remotes/origin/*"},
		{"config", "remote.origin.url", mirrorPath},
		{"pack-refs", "--all", "--prune"},
	}
	for _, args := range steps {
		if _, err := repository.Run(ctx, args...); err != nil {
			// A mirror without the mirror flag (e.g. a plain bare
			// clone) has nothing to unset.
			if args[1] == "--unset" {
				continue
			}
			return err
		}
	}

	packedRefsPath := filepath.Join(gitDir, "packed-refs")
	content, err := os.ReadFile(packedRefsPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading packed-refs: %w", err)
	}
	if len(content) > 0 {
		rewritten := RewritePackedRefs(splitLines(string(content)))
		if err := os.WriteFile(packedRefsPath, []byte(joinLines(rewritten)), 0644); err != nil {
			return fmt.Errorf("writing packed-refs: %w", err)
		}
	}

	if _, err := repository.Run(ctx, "remote", "update", "origin", "--prune"); err != nil {
		return err
	}
	return nil
}
