package core

// PushPriorities lifts every wrapper's EffectivePriority so that, for every
// edge a -> b (b depends on a), EffectivePriority(a) >= EffectivePriority(b).
// This guarantees a long dependency chain whose leaf is high priority gets
// dequeued ahead of unrelated lower-priority work. It is single-threaded and
// must run after resolution and before the build phase.
//
// Every wrapper pushes its own priority down to its direct deps; a dep's
// subtree is only re-walked when that push actually raised its priority, so
// a dep reachable through several chains ends up with the maximum of all of
// them regardless of which chain is walked first.
func PushPriorities(graph *BuildGraph) {
	for _, w := range graph.AllWrappers() {
		pushFrom(w)
	}
}

func pushFrom(w *TargetWrapper) {
	for _, dep := range w.TargetDeps() {
		if dep.EffectivePriority < w.EffectivePriority {
			dep.EffectivePriority = w.EffectivePriority
			pushFrom(dep)
		}
	}
}
