package build

import (
	"container/heap"

	"github.com/anvilbuild/anvil/src/core"
)

// readyQueue is a priority queue of ready wrappers, ordered by
// (-effectivePriority, name) so higher-priority work (and, among ties,
// lexicographically earlier names) is dequeued first. Not safe for
// concurrent use on its own; the scheduler guards it with a mutex.
type readyQueue struct {
	items []*core.TargetWrapper
}

func (q *readyQueue) Len() int { return len(q.items) }

func (q *readyQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.EffectivePriority != b.EffectivePriority {
		return a.EffectivePriority > b.EffectivePriority
	}
	return a.Name < b.Name
}

func (q *readyQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *readyQueue) Push(x interface{}) {
	q.items = append(q.items, x.(*core.TargetWrapper))
}

func (q *readyQueue) Pop() interface{} {
	old := q.items
	n := len(old)
	item := old[n-1]
	q.items = old[:n-1]
	return item
}

var _ heap.Interface = (*readyQueue)(nil)
