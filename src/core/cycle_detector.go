package core

import "strings"

// DetectCycles runs a Kahn-style topological traversal over the resolved
// graph: repeatedly remove wrappers whose depcount (as resolved, independent
// of anything the scheduler has since decremented) is zero, decrementing
// their dependants' counts, until no more can be removed. Any wrapper left
// unreached is part of a cycle. Must only be called after every wrapper in
// the graph has been resolved.
func DetectCycles(graph *BuildGraph) error {
	wrappers := graph.AllWrappers()
	remaining := make(map[*TargetWrapper]int, len(wrappers))
	for _, w := range wrappers {
		remaining[w] = len(w.TargetDeps())
	}

	queue := make([]*TargetWrapper, 0, len(wrappers))
	for _, w := range wrappers {
		if remaining[w] == 0 {
			queue = append(queue, w)
		}
	}

	reached := 0
	for len(queue) > 0 {
		w := queue[0]
		queue = queue[1:]
		reached++
		for _, rdep := range w.RDeps() {
			remaining[rdep]--
			if remaining[rdep] == 0 {
				queue = append(queue, rdep)
			}
		}
	}

	if reached == len(wrappers) {
		return nil
	}

	var stuck []string
	for w, count := range remaining {
		if count > 0 {
			stuck = append(stuck, w.Name)
		}
	}
	return &ConfigError{
		Target:  "<graph>",
		Message: "dependency cycle detected among: " + strings.Join(stuck, ", "),
	}
}
