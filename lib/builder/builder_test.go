// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/assemble/lib/cache"
	"github.com/bureau-foundation/assemble/lib/component"
	"github.com/bureau-foundation/assemble/lib/config"
	"github.com/bureau-foundation/assemble/lib/git"
	"github.com/bureau-foundation/assemble/lib/testutil"
	"github.com/bureau-foundation/assemble/sandbox"
)

// Builds enter a sandbox scope, which owns the process working
// directory, so none of these tests run in parallel.

// passthrough runs commands directly on the host.
type passthrough struct{}

func (passthrough) Cmdline(_ sandbox.ContainerConfig, _ sandbox.Environment, argv []string) ([]string, error) {
	return argv, nil
}

type fixture struct {
	root     string
	settings *config.Config
	mirrors  *git.MirrorManager
	cache    *cache.Cache
	executor *sandbox.Executor
	builder  *Builder
	upstream string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	testutil.RequireGit(t)

	root := t.TempDir()
	settings := config.Default()
	settings.Paths.Assembly = testutil.PrepareAssembly(t, filepath.Join(root, "assembly"))
	settings.Paths.Gits = filepath.Join(root, "gits")
	settings.Paths.Caches = filepath.Join(root, "caches")
	settings.Paths.Artifacts = filepath.Join(root, "artifacts")
	settings.Paths.CcacheDir = filepath.Join(root, "ccache")
	settings.Build.MaxJobs = 2

	mirrors, err := git.NewMirrorManager(git.MirrorConfig{Root: settings.Paths.Gits})
	if err != nil {
		t.Fatalf("NewMirrorManager: %v", err)
	}
	host := sandbox.Host{Path: "/usr/bin:/bin", Exists: func(string) bool { return false }}
	executor, err := sandbox.NewExecutor(sandbox.ExecutorConfig{
		Settings:      settings,
		Containerizer: passthrough{},
		Host:          &host,
	})
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	artifactCache := cache.New(settings.Paths.Caches, nil)

	b, err := New(Config{
		Settings: settings,
		Mirrors:  mirrors,
		Cache:    artifactCache,
		Executor: executor,
		Host:     &host,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return &fixture{
		root:     root,
		settings: settings,
		mirrors:  mirrors,
		cache:    artifactCache,
		executor: executor,
		builder:  b,
		upstream: testutil.InitRepository(t, filepath.Join(root, "upstream"), "zlib"),
	}
}

func (f *fixture) component(t *testing.T, spec component.Spec) *component.Component {
	t.Helper()
	if spec.Name == "" {
		spec.Name = "zlib"
	}
	if spec.Repo == "" {
		spec.Repo = f.upstream
	}
	if spec.Ref == "" && spec.Version == "" {
		spec.Ref = "master"
	}
	c, err := component.New(spec)
	if err != nil {
		t.Fatalf("component.New: %v", err)
	}
	return c
}

func (f *fixture) prepared(t *testing.T, spec component.Spec) *component.Component {
	t.Helper()
	c := f.component(t, spec)
	if err := f.builder.Prepare(context.Background(), c, nil); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	return c
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	if err == nil {
		t.Fatal("New with empty config succeeded")
	}
	for _, want := range []string{"settings", "mirror manager", "cache", "executor"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestPrepare_SuppliedHash(t *testing.T) {
	f := newFixture(t)
	c := f.prepared(t, component.Spec{Hash: "0123abcd"})

	if c.Hash != "0123abcd" {
		t.Errorf("Hash = %q, supplied hash was replaced", c.Hash)
	}
	if c.Cache != cache.Key("zlib", "0123abcd") {
		t.Errorf("Cache = %q", c.Cache)
	}
	if c.Git != f.mirrors.MirrorPath(f.upstream) {
		t.Errorf("Git = %q, want mirror path", c.Git)
	}
}

func TestPrepare_DerivesHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	plain := f.prepared(t, component.Spec{})
	tree, err := f.mirrors.TreeID(ctx, plain)
	if err != nil {
		t.Fatalf("TreeID: %v", err)
	}
	if want := cache.ContentHash(tree, nil); plain.Hash != want {
		t.Errorf("Hash = %q, want %q", plain.Hash, want)
	}
	if plain.Cache != cache.Key("zlib", plain.Hash) {
		t.Errorf("Cache = %q", plain.Cache)
	}

	withDependency := f.component(t, component.Spec{})
	if err := f.builder.Prepare(ctx, withDependency, []string{cache.Key("libc", "ff")}); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if withDependency.Hash == plain.Hash {
		t.Error("dependency cache keys did not change the content hash")
	}

	again := f.component(t, component.Spec{})
	if err := f.builder.Prepare(ctx, again, []string{cache.Key("libc", "ff")}); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if again.Hash != withDependency.Hash {
		t.Errorf("same inputs gave %q and %q", again.Hash, withDependency.Hash)
	}
}

func TestPrepare_NoRepository(t *testing.T) {
	f := newFixture(t)
	c := f.component(t, component.Spec{Repo: " "})
	if err := f.builder.Prepare(context.Background(), c, nil); !errors.Is(err, git.ErrNoRepository) {
		t.Errorf("Prepare = %v, want ErrNoRepository", err)
	}
	if c.Cache != "" {
		t.Errorf("Cache assigned after failure: %q", c.Cache)
	}
}

func TestBuild_Success(t *testing.T) {
	f := newFixture(t)
	c := f.prepared(t, component.Spec{})
	head := testutil.Git(t, f.upstream, "rev-parse", "HEAD")
	before, _ := os.Getwd()

	c.AssignPaths(f.settings.Paths.Assembly)
	commands := []string{
		fmt.Sprintf("test -f %s/README", c.Build),
		fmt.Sprintf("mkdir -p %s/usr/lib && echo lib > %s/usr/lib/libz.a", c.Install, c.Install),
	}

	result, err := f.builder.Build(context.Background(), c, commands)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.Skipped {
		t.Error("first build reported skipped")
	}
	if result.Commit != head {
		t.Errorf("Commit = %q, want %q", result.Commit, head)
	}
	if result.CacheKey != c.Cache {
		t.Errorf("CacheKey = %q, want %q", result.CacheKey, c.Cache)
	}
	if marker, ok := f.cache.IsCached(c); !ok || marker != result.Marker {
		t.Errorf("IsCached = %q, %v; result marker %q", marker, ok, result.Marker)
	}
	if result.Archive != "" {
		t.Errorf("Archive = %q with archiving disabled", result.Archive)
	}
	for _, dir := range []string{c.Build, c.Install} {
		if exists(dir) {
			t.Errorf("%s left after a successful build", dir)
		}
	}

	log, err := os.ReadFile(f.executor.LogPath(c))
	if err != nil {
		t.Fatalf("reading build log: %v", err)
	}
	for _, command := range commands {
		if !strings.Contains(string(log), "# # "+command+"\n") {
			t.Errorf("build log missing command %q:\n%s", command, log)
		}
	}

	if after, _ := os.Getwd(); after != before {
		t.Errorf("working directory = %q after build, want %q", after, before)
	}
}

func TestBuild_SkipsCached(t *testing.T) {
	f := newFixture(t)
	c := f.prepared(t, component.Spec{})
	if _, err := f.cache.MarkCached(c); err != nil {
		t.Fatal(err)
	}

	result, err := f.builder.Build(context.Background(), c, []string{"exit 1"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !result.Skipped {
		t.Error("cached component was rebuilt")
	}
	if result.Commit != "" {
		t.Errorf("Commit = %q for a skipped build", result.Commit)
	}
	if c.Build != "" && exists(c.Build) {
		t.Error("skipped build checked out sources")
	}
	if exists(f.executor.LogPath(c)) {
		t.Error("skipped build wrote a build log")
	}
}

func TestBuild_CommandFailure(t *testing.T) {
	f := newFixture(t)
	c := f.prepared(t, component.Spec{})
	before, _ := os.Getwd()

	_, err := f.builder.Build(context.Background(), c, []string{"true", "exit 3", "touch never"})
	code, ok := sandbox.IsCommandError(err)
	if !ok {
		t.Fatalf("Build = %v, want a command error", err)
	}
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}

	var commandError *sandbox.CommandError
	if errors.As(err, &commandError) && commandError.LogPath != f.executor.LogPath(c) {
		t.Errorf("LogPath = %q", commandError.LogPath)
	}
	if _, cached := f.cache.IsCached(c); cached {
		t.Error("failed build was marked cached")
	}
	if !exists(c.Build) {
		t.Error("build tree removed after a failure")
	}
	if !exists(c.Install) {
		t.Error("install tree removed after a failure")
	}
	if exists(filepath.Join(f.settings.Paths.Assembly, "never")) {
		t.Error("commands after the failure ran")
	}
	if after, _ := os.Getwd(); after != before {
		t.Errorf("working directory = %q after failure, want %q", after, before)
	}

	log, err := os.ReadFile(f.executor.LogPath(c))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(log), "# exit status 3\n") {
		t.Errorf("build log missing exit status:\n%s", log)
	}
}

func TestBuild_Unprepared(t *testing.T) {
	f := newFixture(t)
	c := f.component(t, component.Spec{})
	if _, err := f.builder.Build(context.Background(), c, nil); err == nil {
		t.Fatal("Build of an unprepared component succeeded")
	}
}

func TestBuild_ArchivesInstallTree(t *testing.T) {
	f := newFixture(t)
	f.settings.Cache.ArchiveArtifacts = true
	c := f.prepared(t, component.Spec{})
	c.AssignPaths(f.settings.Paths.Assembly)

	result, err := f.builder.Build(context.Background(), c, []string{
		fmt.Sprintf("mkdir -p %s/usr/include && echo header > %s/usr/include/zlib.h", c.Install, c.Install),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want, err := f.cache.ArchivePath(c)
	if err != nil {
		t.Fatal(err)
	}
	if result.Archive != want {
		t.Errorf("Archive = %q, want %q", result.Archive, want)
	}
	info, err := os.Stat(want)
	if err != nil {
		t.Fatalf("archive not written: %v", err)
	}
	if info.Size() == 0 {
		t.Error("archive is empty")
	}
}

func TestResolver(t *testing.T) {
	f := newFixture(t)
	libpng := testutil.InitRepository(t, filepath.Join(f.root, "upstream"), "libpng")

	definitions, err := component.ParseDefinitions([]byte(fmt.Sprintf(`
components:
  - name: zlib
    repo: %s
    ref: master
    prefix: /usr
  - name: libpng
    repo: %s
    ref: master
    build-depends: [zlib]
`, f.upstream, libpng)))
	if err != nil {
		t.Fatalf("ParseDefinitions: %v", err)
	}

	resolver := NewResolver(f.builder, definitions)
	ctx := context.Background()
	resolved, err := resolver.Resolve(ctx, "libpng")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	dependency, err := resolver.Resolve(ctx, "zlib")
	if err != nil {
		t.Fatalf("Resolve zlib: %v", err)
	}
	if again, _ := resolver.Resolve(ctx, "libpng"); again != resolved {
		t.Error("Resolve did not memoize")
	}

	tree, err := f.mirrors.TreeID(ctx, resolved.Component)
	if err != nil {
		t.Fatal(err)
	}
	if want := cache.ContentHash(tree, []string{dependency.Component.Cache}); resolved.Component.Hash != want {
		t.Errorf("libpng hash = %q, want one derived from zlib's cache key %q", resolved.Component.Hash, want)
	}
	if len(resolved.Component.Dependencies) != 1 || resolved.Component.Dependencies[0].Prefix != "/usr" {
		t.Errorf("Dependencies = %+v", resolved.Component.Dependencies)
	}
	if resolved.Definition.Name != "libpng" {
		t.Errorf("Definition = %+v", resolved.Definition)
	}
}

func TestResolver_Cycle(t *testing.T) {
	f := newFixture(t)
	definitions, err := component.ParseDefinitions([]byte(`
components:
  - name: a
    repo: upstream:a
    ref: master
    build-depends: [b]
  - name: b
    repo: upstream:b
    ref: master
    build-depends: [a]
`))
	if err != nil {
		t.Fatalf("ParseDefinitions: %v", err)
	}

	_, err = NewResolver(f.builder, definitions).Resolve(context.Background(), "a")
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Errorf("Resolve = %v, want a dependency cycle error", err)
	}
}
