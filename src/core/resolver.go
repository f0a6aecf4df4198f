package core

import (
	"fmt"
	"strings"
)

// Resolver expands each wrapper's declared dependencies into concrete
// target-to-target and target-to-file edges. It owns no state of its own
// beyond the graph and context it's given; all of the interesting state
// lives on the wrappers it mutates.
type Resolver struct {
	Graph *BuildGraph
	Ctx   Context
}

// NewResolver creates a resolver bound to a graph and context.
func NewResolver(graph *BuildGraph, ctx Context) *Resolver {
	return &Resolver{Graph: graph, Ctx: ctx}
}

// Resolve populates w's targetDeps and nontargetDeps. It is idempotent: a
// second call on an already-resolved wrapper is a no-op. It is not
// concurrency-safe; callers must only invoke it during the single-threaded
// resolution phase, before any worker starts.
func (r *Resolver) Resolve(w *TargetWrapper) error {
	if w.IsResolved() {
		return nil
	}

	deps, err := w.Target.ResolveUnderlyingDependencies(r.Ctx)
	if err != nil {
		return &ConfigError{Target: w.Name, Message: fmt.Sprintf("failed to resolve dependencies: %s", err)}
	}

	targetDeps := map[string]*TargetWrapper{} // path -> wrapper, for de-duplication
	var nontargetDeps []NonTargetDep

	for _, dep := range deps {
		if dw, present := r.Graph.Wrapper(dep.Path); present {
			if _, already := targetDeps[dep.Path]; already {
				continue
			}
			targetDeps[dep.Path] = dw
		} else {
			flags := 0
			if IsDirPath(dep.Path) {
				flags |= DepIsDirPath
			}
			if dep.PathSet != nil && dep.PathSet.SkipExistenceCheck() {
				flags |= DepSkipExistenceCheck
			}
			nontargetDeps = append(nontargetDeps, NonTargetDep{
				Path:   ToLongPathSafe(dep.Path),
				Flags:  flags,
				Origin: dep.PathSet,
			})
		}
	}

	// Target-group expansion: any wrapper that shares a group with one of
	// our direct target deps must be depended on too, so the whole group
	// is always built together.
	if len(targetDeps) > 0 {
		for _, dw := range initialValues(targetDeps) {
			group, ok := r.Ctx.TargetGroup(dw.Name)
			if !ok {
				continue
			}
			for _, memberName := range group {
				if memberName == dw.Name {
					continue
				}
				memberWrapper, present := r.Graph.wrapperByName(memberName)
				if !present {
					continue
				}
				if _, already := targetDeps[memberWrapper.Path]; already {
					continue
				}
				targetDeps[memberWrapper.Path] = memberWrapper
			}
		}
	}

	// No self-deps.
	delete(targetDeps, w.Path)

	finalTargetDeps := make([]*TargetWrapper, 0, len(targetDeps))
	for _, dw := range targetDeps {
		finalTargetDeps = append(finalTargetDeps, dw)
		dw.addRDep(w)
	}

	w.setResolved(finalTargetDeps, nontargetDeps)
	return nil
}

// ResolveAll resolves every wrapper in the graph, in the deterministic order
// returned by AllWrappers, then checks the whole graph for cycles and runs
// the output-directory sanity check. It is the single entry point the
// scheduler's resolution phase calls.
func (r *Resolver) ResolveAll() error {
	for _, w := range r.Graph.AllWrappers() {
		if err := r.Resolve(w); err != nil {
			return err
		}
	}
	for _, w := range r.Graph.AllWrappers() {
		if err := r.checkNonTargetDepsUnderOutputDirs(w); err != nil {
			return err
		}
	}
	return DetectCycles(r.Graph)
}

// checkNonTargetDepsUnderOutputDirs raises a ConfigError if any non-target
// dependency of w lies beneath a top-level output directory: that's almost
// always a missing explicit dependency on whatever directory target produced
// it, expressed instead as a raw path into output space.
func (r *Resolver) checkNonTargetDepsUnderOutputDirs(w *TargetWrapper) error {
	outDirs := r.Ctx.TopLevelOutputDirs()
	for _, dep := range w.NonTargetDeps() {
		for _, outDir := range outDirs {
			if strings.HasPrefix(dep.Path, outDir) {
				return &ConfigError{
					Target: w.Name,
					Message: fmt.Sprintf(
						"depends on output %s which is implicitly created by some other directory target; "+
							"use an explicit generated-directory path set", dep.Path),
				}
			}
		}
	}
	return nil
}

// FindMissingNonTargetDependency stats every non-target dependency of w that
// doesn't carry DepSkipExistenceCheck, and returns the path of the first one
// that's missing or the wrong kind (file where a directory was declared, or
// vice versa). Returns "" if every dependency checks out. Called once per
// wrapper immediately before it builds.
func FindMissingNonTargetDependency(w *TargetWrapper) string {
	for _, dep := range w.NonTargetDeps() {
		if dep.skipExistenceCheck() {
			continue
		}
		if dep.isDir() {
			if !IsDirectory(dep.Path) {
				return dep.Path
			}
		} else if !IsRegularFile(dep.Path) {
			return dep.Path
		}
	}
	return ""
}

// initialValues returns the values of a map in no particular guaranteed
// order; used only where the caller doesn't care about order (we're about to
// grow the same map from within the loop, so this snapshot must be taken
// first).
func initialValues(m map[string]*TargetWrapper) []*TargetWrapper {
	out := make([]*TargetWrapper, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

// wrapperByName finds a wrapper by its declared Name rather than its output
// Path. Target groups are defined over names (which is how the DSL front end
// identifies targets before a graph exists), but the graph is keyed by path,
// so this does a linear scan. Graphs are resolved once at the start of a
// build, and group membership is rare, so this is not on any hot path.
func (g *BuildGraph) wrapperByName(name string) (*TargetWrapper, bool) {
	for _, w := range g.wrappers {
		if w.Name == name {
			return w, true
		}
	}
	return nil, false
}
