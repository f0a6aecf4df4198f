package build

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anvilbuild/anvil/src/core"
)

func newTestState(graph *core.BuildGraph) *core.BuildState {
	state := core.NewBuildState(graph, core.DefaultConfiguration())
	return state
}

func TestSchedulerBuildsLeafBeforeRoot(t *testing.T) {
	dir := t.TempDir()
	ctx := newFakeBuildContext()
	leaf := newFSTarget(dir, "leaf.txt")
	root := newFSTarget(dir, "root.txt")
	root.dependsOn(leaf.path)

	graph, wrappers, err := buildGraphFor(ctx, leaf, root)
	require.NoError(t, err)

	state := newTestState(graph)
	sched := NewScheduler(graph, ctx, state, 2)
	err = sched.Run(context.Background(), []*core.TargetWrapper{wrappers["root.txt"]})
	require.NoError(t, err)

	assert.Equal(t, 1, leaf.ran)
	assert.Equal(t, 1, root.ran)
	_, _, failed, skipped := state.Counts()
	assert.Equal(t, 0, failed)
	assert.Equal(t, 0, skipped)
}

func TestSchedulerSkipsTransitiveDependantsOnFailure(t *testing.T) {
	dir := t.TempDir()
	ctx := newFakeBuildContext()
	leaf := newFSTarget(dir, "leaf.txt")
	leaf.failWith = errors.New("boom")
	mid := newFSTarget(dir, "mid.txt")
	mid.dependsOn(leaf.path)
	top := newFSTarget(dir, "top.txt")
	top.dependsOn(mid.path)

	graph, wrappers, err := buildGraphFor(ctx, leaf, mid, top)
	require.NoError(t, err)

	state := newTestState(graph)
	sched := NewScheduler(graph, ctx, state, 2)
	err = sched.Run(context.Background(), []*core.TargetWrapper{wrappers["top.txt"]})
	require.Error(t, err)

	assert.Equal(t, 1, leaf.ran)
	assert.Equal(t, 0, mid.ran, "mid must not run once its dependency failed")
	assert.Equal(t, 0, top.ran, "top must not run once a transitive dependency failed")

	_, _, failed, skipped := state.Counts()
	assert.Equal(t, 1, failed)
	assert.Equal(t, 2, skipped)
}

func TestSchedulerSkipsUpToDateTargetsWithoutRebuilding(t *testing.T) {
	dir := t.TempDir()
	ctx := newFakeBuildContext()
	target := newFSTarget(dir, "out.txt")

	graph, wrappers, err := buildGraphFor(ctx, target)
	require.NoError(t, err)
	state := newTestState(graph)
	sched := NewScheduler(graph, ctx, state, 1)
	require.NoError(t, sched.Run(context.Background(), []*core.TargetWrapper{wrappers["out.txt"]}))
	assert.Equal(t, 1, target.ran)

	// Rebuilding the exact same graph (fresh wrappers, as a second real
	// invocation would have) must not re-run the recipe.
	graph2, wrappers2, err := buildGraphFor(ctx, target)
	require.NoError(t, err)
	state2 := newTestState(graph2)
	sched2 := NewScheduler(graph2, ctx, state2, 1)
	require.NoError(t, sched2.Run(context.Background(), []*core.TargetWrapper{wrappers2["out.txt"]}))
	assert.Equal(t, 1, target.ran, "second run must find the target up to date")
}

func TestSchedulerForceRebuildMarksRootDirty(t *testing.T) {
	dir := t.TempDir()
	ctx := newFakeBuildContext()
	target := newFSTarget(dir, "out.txt")

	graph, wrappers, err := buildGraphFor(ctx, target)
	require.NoError(t, err)
	state := newTestState(graph)
	sched := NewScheduler(graph, ctx, state, 1)
	require.NoError(t, sched.Run(context.Background(), []*core.TargetWrapper{wrappers["out.txt"]}))
	assert.Equal(t, 1, target.ran)

	graph2, wrappers2, err := buildGraphFor(ctx, target)
	require.NoError(t, err)
	state2 := newTestState(graph2)
	state2.ForceRebuild = true
	sched2 := NewScheduler(graph2, ctx, state2, 1)
	require.NoError(t, sched2.Run(context.Background(), []*core.TargetWrapper{wrappers2["out.txt"]}))
	assert.Equal(t, 2, target.ran, "force rebuild must re-run even an up-to-date target")
}

func TestSchedulerTerminatesWithMultipleWorkers(t *testing.T) {
	dir := t.TempDir()
	ctx := newFakeBuildContext()
	var roots []*core.TargetWrapper
	var targets []*fsTarget
	graph := core.NewGraph()
	for i := 0; i < 20; i++ {
		tg := newFSTarget(dir, "t"+string(rune('a'+i))+".txt")
		targets = append(targets, tg)
		w := graph.AddTarget(tg)
		ctx.valid[tg.path] = true
		roots = append(roots, w)
	}

	resolver := core.NewResolver(graph, ctx)
	require.NoError(t, resolver.ResolveAll())

	state := newTestState(graph)
	sched := NewScheduler(graph, ctx, state, 4)

	done := make(chan error, 1)
	go func() { done <- sched.Run(context.Background(), roots) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not terminate")
	}

	for _, tg := range targets {
		assert.Equal(t, 1, tg.ran)
	}
}
