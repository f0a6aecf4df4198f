package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTargetAndNonTargetDeps(t *testing.T) {
	ctx := newFakeContext()
	a := newFakeTarget("a")
	b := newFakeTarget("b")
	b.dependsOn("a")
	b.dependsOn("src/b.c")

	_, wrappers, err := buildTestGraph(ctx, a, b)
	require.NoError(t, err)

	wb := wrappers["b"]
	require.Len(t, wb.TargetDeps(), 1)
	assert.Equal(t, "a", wb.TargetDeps()[0].Name)
	require.Len(t, wb.NonTargetDeps(), 1)
	assert.Equal(t, "src/b.c", wb.NonTargetDeps()[0].Path)
	assert.Equal(t, 1, wb.DepCount())
}

func TestNoSelfDeps(t *testing.T) {
	ctx := newFakeContext()
	a := newFakeTarget("a")
	a.dependsOn("a") // declares a dependency on itself

	_, wrappers, err := buildTestGraph(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, wrappers["a"].TargetDeps())
}

func TestReverseEdgeSymmetry(t *testing.T) {
	ctx := newFakeContext()
	a := newFakeTarget("a")
	b := newFakeTarget("b")
	b.dependsOn("a")

	_, wrappers, err := buildTestGraph(ctx, a, b)
	require.NoError(t, err)

	rdeps := wrappers["a"].RDeps()
	require.Len(t, rdeps, 1)
	assert.Equal(t, "b", rdeps[0].Name)
}

func TestTargetGroupExpansion(t *testing.T) {
	ctx := newFakeContext()
	a := newFakeTarget("a")
	b := newFakeTarget("b")
	c := newFakeTarget("c")
	d := newFakeTarget("d")
	d.dependsOn("a")
	ctx.groups["a"] = []string{"a", "b", "c"}
	ctx.groups["b"] = []string{"a", "b", "c"}
	ctx.groups["c"] = []string{"a", "b", "c"}

	_, wrappers, err := buildTestGraph(ctx, a, b, c, d)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, dep := range wrappers["d"].TargetDeps() {
		names[dep.Name] = true
	}
	assert.True(t, names["a"] && names["b"] && names["c"], "expected group closure over a, b, c; got %v", names)
}

func TestResolutionIsDeterministic(t *testing.T) {
	ctx := newFakeContext()
	a := newFakeTarget("a")
	b := newFakeTarget("b")
	c := newFakeTarget("c")
	c.dependsOn("b")
	c.dependsOn("a")
	c.dependsOn("src/z.c")
	c.dependsOn("src/a.c")

	graph, wrappers, err := buildTestGraph(ctx, a, b, c)
	require.NoError(t, err)

	// A second resolve must be a no-op (idempotent) and must not reorder anything.
	r := NewResolver(graph, ctx)
	require.NoError(t, r.Resolve(wrappers["c"]))

	names := []string{wrappers["c"].TargetDeps()[0].Name, wrappers["c"].TargetDeps()[1].Name}
	assert.Equal(t, []string{"a", "b"}, names)

	paths := []string{wrappers["c"].NonTargetDeps()[0].Path, wrappers["c"].NonTargetDeps()[1].Path}
	assert.Equal(t, []string{"src/a.c", "src/z.c"}, paths)
}

func TestNonTargetDepUnderOutputDirIsConfigError(t *testing.T) {
	ctx := newFakeContext()
	ctx.outDirs = []string{"out/"}
	x := newFakeTarget("x")
	x.dependsOn("out/gen/file.txt")

	_, _, err := buildTestGraph(ctx, x)
	require.Error(t, err)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestFindMissingNonTargetDependency(t *testing.T) {
	ctx := newFakeContext()
	x := newFakeTarget("x")
	x.dependsOn("/does/not/exist")
	_, wrappers, err := buildTestGraph(ctx, x)
	require.NoError(t, err)

	missing := FindMissingNonTargetDependency(wrappers["x"])
	assert.Equal(t, "/does/not/exist", missing)
}

func TestFindMissingNonTargetDependencySkipsWhenPromised(t *testing.T) {
	ctx := newFakeContext()
	x := newFakeTarget("x")
	x.deps = append(x.deps, ResolvedDependency{Path: "/does/not/exist", PathSet: &fakePathSet{skip: true}})
	_, wrappers, err := buildTestGraph(ctx, x)
	require.NoError(t, err)

	assert.Equal(t, "", FindMissingNonTargetDependency(wrappers["x"]))
}
