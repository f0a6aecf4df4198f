package core

import (
	"context"
	"path/filepath"
	"time"
)

// fakeTarget is a minimal Target implementation used across the core tests.
// Its dependencies are declared directly as a list of paths rather than
// resolved through a PathSet, which is enough to exercise the resolver,
// cycle detection and priority push without needing a real DSL front end.
type fakeTarget struct {
	name     string
	path     string
	workDir  string
	priority int
	deps     []ResolvedDependency
	hashable []string

	runFn   func(ctx context.Context) error
	ran     int
}

func newFakeTarget(name string) *fakeTarget {
	return &fakeTarget{name: name, path: name, workDir: filepath.Join("work", name)}
}

func (t *fakeTarget) Name() string     { return t.name }
func (t *fakeTarget) Path() string     { return t.path }
func (t *fakeTarget) WorkDir() string  { return t.workDir }
func (t *fakeTarget) Priority() int    { return t.priority }
func (t *fakeTarget) Location() string { return "//fake:" + t.name }

func (t *fakeTarget) Run(ctx context.Context) error {
	t.ran++
	if t.runFn != nil {
		return t.runFn(ctx)
	}
	return nil
}

func (t *fakeTarget) Clean(ctx context.Context) error { return nil }

func (t *fakeTarget) HashableImplicitInputs(ctx context.Context) []string { return t.hashable }

func (t *fakeTarget) ResolveUnderlyingDependencies(ctx context.Context) ([]ResolvedDependency, error) {
	return t.deps, nil
}

func (t *fakeTarget) dependsOn(path string) {
	t.deps = append(t.deps, ResolvedDependency{Path: path})
}

// fakePathSet is a trivial literal PathSet.
type fakePathSet struct {
	paths []string
	skip  bool
}

func (p *fakePathSet) Resolve(ctx context.Context) ([]string, error) { return p.paths, nil }
func (p *fakePathSet) ResolveUnderlyingDependencies(ctx context.Context) ([]string, error) {
	return p.paths, nil
}
func (p *fakePathSet) SkipExistenceCheck() bool { return p.skip }

// fakeContext is a minimal Context for tests.
type fakeContext struct {
	context.Context
	valid   map[string]bool
	outDirs []string
	groups  map[string][]string
}

func newFakeContext() *fakeContext {
	return &fakeContext{Context: context.Background(), valid: map[string]bool{}, groups: map[string][]string{}}
}

func (c *fakeContext) IsValidTarget(path string) bool { return c.valid[path] }
func (c *fakeContext) TopLevelOutputDirs() []string    { return c.outDirs }
func (c *fakeContext) ExpandPropertyValues(s string) string { return s }
func (c *fakeContext) PublishArtifact(name, path string)    {}
func (c *fakeContext) TargetGroup(name string) ([]string, bool) {
	g, ok := c.groups[name]
	return g, ok
}
func (c *fakeContext) ProcessTimeout() time.Duration { return 0 }

// buildTestGraph wires a set of fake targets into a graph and resolves them,
// returning the graph and a name->wrapper lookup for convenience.
func buildTestGraph(ctx *fakeContext, targets ...*fakeTarget) (*BuildGraph, map[string]*TargetWrapper, error) {
	graph := NewGraph()
	wrappers := map[string]*TargetWrapper{}
	for _, t := range targets {
		w := graph.AddTarget(t)
		wrappers[t.name] = w
		ctx.valid[t.path] = true
	}
	r := NewResolver(graph, ctx)
	if err := r.ResolveAll(); err != nil {
		return graph, wrappers, err
	}
	return graph, wrappers, nil
}
