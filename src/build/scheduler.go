package build

import (
	"container/heap"
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/anvilbuild/anvil/src/core"
)

// Scheduler drives a resolved graph through the up-to-date and build
// phases: a fixed-size worker pool pops ready wrappers off a priority
// queue, evaluates the oracle, runs the recipe if necessary, and on
// completion enqueues any dependant whose depcount has just reached zero.
type Scheduler struct {
	Graph    *core.BuildGraph
	Ctx      core.Context
	State    *core.BuildState
	Workers  int

	mu       sync.Mutex
	queue    readyQueue
	notEmpty *sync.Cond
	active   int // wrappers dequeued but not yet complete

	errs    *multierror.Error
	errsMu  sync.Mutex
	skipped map[*core.TargetWrapper]bool

	reachable map[*core.TargetWrapper]bool // wrappers reachable from the current Run's roots
}

// NewScheduler creates a scheduler for graph. workers must be at least 1.
func NewScheduler(graph *core.BuildGraph, ctx core.Context, state *core.BuildState, workers int) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	s := &Scheduler{
		Graph:   graph,
		Ctx:     ctx,
		State:   state,
		Workers: workers,
		skipped: map[*core.TargetWrapper]bool{},
	}
	s.notEmpty = sync.NewCond(&s.mu)
	return s
}

// Run executes the full build: resolution, priority push, and the parallel
// up-to-date/build phases, over targets reachable from roots. It blocks
// until every reachable wrapper has completed, failed, or been skipped, or
// the context is cancelled.
func (s *Scheduler) Run(ctx context.Context, roots []*core.TargetWrapper) error {
	resolver := core.NewResolver(s.Graph, s.Ctx)
	if err := resolver.ResolveAll(); err != nil {
		return err
	}
	core.PushPriorities(s.Graph)

	if s.State.ForceRebuild {
		// Remove each root's existing output before the build phase starts,
		// so a forced rebuild of a directory target never leaves stale files
		// from the previous build intermixed with the new output.
		var cleanErrs *multierror.Error
		for _, w := range roots {
			w.MarkDirty()
			if err := InternalClean(w); err != nil {
				cleanErrs = multierror.Append(cleanErrs, err)
			}
		}
		if err := cleanErrs.ErrorOrNil(); err != nil {
			return err
		}
	}

	reachable := transitiveClosure(roots)
	s.mu.Lock()
	s.reachable = make(map[*core.TargetWrapper]bool, len(reachable))
	for _, w := range reachable {
		s.reachable[w] = true
	}
	for _, w := range reachable {
		if w.DepCount() == 0 {
			heap.Push(&s.queue, w)
			s.active++
		}
	}
	s.mu.Unlock()

	var g errgroup.Group
	for i := 0; i < s.Workers; i++ {
		g.Go(func() error {
			s.workerLoop(ctx)
			return nil
		})
	}
	g.Wait() // nolint:errcheck // workers never return an error; failures go through s.errs

	return s.errs.ErrorOrNil()
}

// workerLoop pops ready wrappers until the queue and in-flight count both
// drain to zero, or the build is cancelled. Target failures are recorded on
// the scheduler's own error list rather than returned, so one worker's
// failure never stops the others from draining the rest of the queue.
func (s *Scheduler) workerLoop(ctx context.Context) {
	for {
		w := s.dequeue()
		if w == nil {
			return
		}
		s.process(ctx, w)
	}
}

// dequeue blocks until a wrapper is ready, the build is finished (queue and
// active count both zero), or cancellation is observed.
func (s *Scheduler) dequeue() *core.TargetWrapper {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.State.Cancelled() && s.queue.Len() == 0 {
			return nil
		}
		if s.queue.Len() > 0 {
			return heap.Pop(&s.queue).(*core.TargetWrapper)
		}
		if s.active == 0 {
			return nil
		}
		s.notEmpty.Wait()
	}
}

// process evaluates the oracle for w and, if it's stale, runs its recipe.
// Either way, on completion it decrements every rdep's depcount and
// enqueues any that just reached zero.
func (s *Scheduler) process(ctx context.Context, w *core.TargetWrapper) {
	s.State.AddActive()

	if s.skippedLocked(w) {
		s.finish(w, core.TargetSkipped)
		return
	}

	if ctx.Err() != nil {
		s.State.Cancel()
	}
	if s.State.Cancelled() {
		// The build has been interrupted or has failed fast elsewhere; stop starting new
		// recipes but still flow through finish so dependants aren't left
		// waiting on a depcount that will never reach zero.
		s.State.LogResult(&core.BuildResult{Target: w.Name, Status: core.TargetBuildStopped})
		s.finish(w, core.TargetBuildStopped)
		return
	}

	if UpToDate(w, s.Ctx, s.State.Config, s.State.IgnoreDeps) {
		s.State.LogResult(&core.BuildResult{Target: w.Name, Status: core.TargetUnchanged})
		s.finish(w, core.TargetUnchanged)
		return
	}

	if missing := core.FindMissingNonTargetDependency(w); missing != "" {
		err := &core.MissingInputError{Target: w.Name, Path: missing}
		s.recordError(err)
		s.propagateSkip(w)
		s.State.LogResult(&core.BuildResult{Target: w.Name, Status: core.TargetBuildFailed, Err: err})
		if s.State.FailFast {
			s.State.Cancel()
		}
		s.finish(w, core.TargetBuildFailed)
		return
	}

	s.State.LogResult(&core.BuildResult{Target: w.Name, Status: core.TargetBuilding})
	if err := Run(ctx, w, s.Ctx); err != nil {
		s.recordError(err)
		s.propagateSkip(w)
		s.State.LogResult(&core.BuildResult{Target: w.Name, Status: core.TargetBuildFailed, Err: err})
		if s.State.FailFast {
			s.State.Cancel()
		}
		s.finish(w, core.TargetBuildFailed)
		return
	}

	s.State.LogResult(&core.BuildResult{Target: w.Name, Status: core.TargetBuilt})
	s.finish(w, core.TargetBuilt)
}

// finish records the outcome and unblocks dependants whose depcount reaches
// zero as a result.
func (s *Scheduler) finish(w *core.TargetWrapper, status core.BuildResultStatus) {
	s.State.MarkDone(status)

	s.mu.Lock()
	s.active--
	for _, rdep := range w.RDeps() {
		if rdep.Decrement() == 0 && s.reachable[rdep] {
			heap.Push(&s.queue, rdep)
			s.active++
		}
	}
	s.notEmpty.Broadcast()
	s.mu.Unlock()
}

func (s *Scheduler) skippedLocked(w *core.TargetWrapper) bool {
	s.errsMu.Lock()
	defer s.errsMu.Unlock()
	return s.skipped[w]
}

// propagateSkip marks every transitive rdep of a failed wrapper w as
// skipped, recording one SkippedError per newly-marked wrapper. w itself is
// not marked: it already carries the real failure.
func (s *Scheduler) propagateSkip(w *core.TargetWrapper) {
	for _, rdep := range w.RDeps() {
		s.errsMu.Lock()
		alreadySkipped := s.skipped[rdep]
		if !alreadySkipped {
			s.skipped[rdep] = true
		}
		s.errsMu.Unlock()
		if alreadySkipped {
			continue
		}
		s.errsMu.Lock()
		s.errs = multierror.Append(s.errs, &core.SkippedError{Target: rdep.Name, Because: w.Name})
		s.errsMu.Unlock()
		s.propagateSkip(rdep)
	}
}

func (s *Scheduler) recordError(err error) {
	s.errsMu.Lock()
	s.errs = multierror.Append(s.errs, err)
	s.errsMu.Unlock()
}

// transitiveClosure returns every wrapper reachable from roots via target
// dependency edges, including the roots themselves.
func transitiveClosure(roots []*core.TargetWrapper) []*core.TargetWrapper {
	seen := map[*core.TargetWrapper]bool{}
	var out []*core.TargetWrapper
	var visit func(w *core.TargetWrapper)
	visit = func(w *core.TargetWrapper) {
		if seen[w] {
			return
		}
		seen[w] = true
		out = append(out, w)
		for _, dep := range w.TargetDeps() {
			visit(dep)
		}
	}
	for _, w := range roots {
		visit(w)
	}
	return out
}
