package build

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anvilbuild/anvil/src/core"
)

// fsTarget is a Target implementation for the build package's tests: it
// actually writes its output to disk when run, so the oracle's mtime and
// fingerprint checks have real filesystem state to evaluate.
type fsTarget struct {
	name      string
	path      string
	workDir   string
	priority  int
	deps      []core.ResolvedDependency
	hashable  []string
	failWith  error
	ran       int
	writeData string
}

func newFSTarget(dir, name string) *fsTarget {
	// filepath.Join would clean away a trailing separator, which is exactly
	// the bit of the path that carries directory-target-ness; build it by
	// hand instead for targets that might be directories.
	path := filepath.Clean(dir) + string(filepath.Separator) + name
	return &fsTarget{
		name:      name,
		path:      path,
		workDir:   filepath.Join(dir, "work", strings.TrimSuffix(name, "/")),
		writeData: "built",
	}
}

func newFSDirTarget(dir, name string) *fsTarget {
	return newFSTarget(dir, name+"/")
}

func (t *fsTarget) Name() string     { return t.name }
func (t *fsTarget) Path() string     { return t.path }
func (t *fsTarget) WorkDir() string  { return t.workDir }
func (t *fsTarget) Priority() int    { return t.priority }
func (t *fsTarget) Location() string { return "//fake:" + t.name }

func (t *fsTarget) Run(ctx context.Context) error {
	t.ran++
	if t.failWith != nil {
		return t.failWith
	}
	if core.IsDirPath(t.path) {
		return os.MkdirAll(strippedTrailingSlash(t.path), 0775)
	}
	if err := core.EnsureDir(t.path); err != nil {
		return err
	}
	return os.WriteFile(t.path, []byte(t.writeData), 0644)
}

func (t *fsTarget) Clean(ctx context.Context) error {
	return os.RemoveAll(strippedTrailingSlash(t.path))
}

func (t *fsTarget) HashableImplicitInputs(ctx context.Context) []string { return t.hashable }

func (t *fsTarget) ResolveUnderlyingDependencies(ctx context.Context) ([]core.ResolvedDependency, error) {
	return t.deps, nil
}

func (t *fsTarget) dependsOn(path string) {
	t.deps = append(t.deps, core.ResolvedDependency{Path: path})
}

func strippedTrailingSlash(p string) string {
	if core.IsDirPath(p) {
		return filepath.Clean(p)
	}
	return p
}

type fakeBuildContext struct {
	context.Context
	valid   map[string]bool
	outDirs []string
	groups  map[string][]string
}

func newFakeBuildContext() *fakeBuildContext {
	return &fakeBuildContext{Context: context.Background(), valid: map[string]bool{}, groups: map[string][]string{}}
}

func (c *fakeBuildContext) IsValidTarget(path string) bool     { return c.valid[path] }
func (c *fakeBuildContext) TopLevelOutputDirs() []string       { return c.outDirs }
func (c *fakeBuildContext) ExpandPropertyValues(s string) string { return s }
func (c *fakeBuildContext) PublishArtifact(name, path string)  {}
func (c *fakeBuildContext) TargetGroup(name string) ([]string, bool) {
	g, ok := c.groups[name]
	return g, ok
}
func (c *fakeBuildContext) ProcessTimeout() time.Duration { return 0 }

// buildGraphFor wires targets into a graph and resolves it, returning a
// name->wrapper lookup.
func buildGraphFor(ctx *fakeBuildContext, targets ...*fsTarget) (*core.BuildGraph, map[string]*core.TargetWrapper, error) {
	graph := core.NewGraph()
	wrappers := map[string]*core.TargetWrapper{}
	for _, t := range targets {
		w := graph.AddTarget(t)
		wrappers[t.name] = w
		ctx.valid[t.path] = true
	}
	r := core.NewResolver(graph, ctx)
	if err := r.ResolveAll(); err != nil {
		return graph, wrappers, err
	}
	return graph, wrappers, nil
}
