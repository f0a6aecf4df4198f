package core

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// BuildState carries the mutable, build-wide state for a single invocation
// of the engine: the graph being built, the configuration in effect, where
// progress results are published, and the aggregate counters the CLI's
// summary line reads from. It is created once per build and threaded
// through the scheduler and build orchestrator; unlike the system this was
// modelled on, there is no package-level singleton instance of it.
type BuildState struct {
	Graph *BuildGraph
	Config *Configuration

	// RunID uniquely identifies this build invocation, for log correlation
	// and metrics labelling.
	RunID uuid.UUID

	// ForceRebuild marks every original target dirty before the up-to-date
	// phase runs, forcing a rebuild regardless of what the oracle would
	// otherwise decide.
	ForceRebuild bool
	// IgnoreDeps makes the up-to-date oracle skip dependency mtime checks
	// entirely, for forcing a rebuild of one target without waiting on (or
	// double-checking) the rest of the graph.
	IgnoreDeps bool
	// FailFast causes the first target failure to cancel the rest of the
	// build rather than letting unaffected targets continue.
	FailFast bool

	// Results streams progress events for the CLI (or any other consumer)
	// to render. Buffered generously so the scheduler's workers never
	// block on a slow consumer.
	Results chan *BuildResult

	cancelled int32 // atomic bool

	mu          sync.Mutex
	numActive   int
	numDone     int
	numFailed   int
	numSkipped  int
	startedAt   time.Time
}

// NewBuildState creates a BuildState bound to graph and config, ready for a
// single build invocation.
func NewBuildState(graph *BuildGraph, config *Configuration) *BuildState {
	return &BuildState{
		Graph:     graph,
		Config:    config,
		RunID:     uuid.New(),
		Results:   make(chan *BuildResult, 10000),
		startedAt: time.Now(),
	}
}

// Cancel sets the global cancellation signal. Once set, the scheduler starts
// no new recipes: wrappers it dequeues afterwards are marked stopped, and
// targets already running are allowed to finish.
func (s *BuildState) Cancel() {
	atomic.StoreInt32(&s.cancelled, 1)
}

// Cancelled reports whether Cancel has been called.
func (s *BuildState) Cancelled() bool {
	return atomic.LoadInt32(&s.cancelled) != 0
}

// AddActive records that the scheduler has picked up a target. The count is
// cumulative: MarkDone does not decrease it.
func (s *BuildState) AddActive() {
	s.mu.Lock()
	s.numActive++
	s.mu.Unlock()
}

// MarkDone records that a target finished, successfully or not.
func (s *BuildState) MarkDone(status BuildResultStatus) {
	s.mu.Lock()
	s.numDone++
	if status == TargetBuildFailed {
		s.numFailed++
	} else if status == TargetSkipped {
		s.numSkipped++
	}
	s.mu.Unlock()
}

// Counts returns a snapshot of (active, done, failed, skipped), where active
// is every target picked up so far, including those since done.
func (s *BuildState) Counts() (active, done, failed, skipped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.numActive, s.numDone, s.numFailed, s.numSkipped
}

// Elapsed returns how long this build has been running.
func (s *BuildState) Elapsed() time.Duration {
	return time.Since(s.startedAt)
}

// LogResult publishes a progress event. Never blocks the caller for long:
// the channel is large, and a full channel indicates something is very
// wrong downstream, in which case dropping on the floor beats deadlocking
// the build.
func (s *BuildState) LogResult(r *BuildResult) {
	select {
	case s.Results <- r:
	default:
		log.Warning("dropped build result for %s: results channel is full", r.Target)
	}
}

// A BuildResult is a single progress event: a target changed status.
type BuildResult struct {
	Time        time.Time
	Target      string
	Status      BuildResultStatus
	Err         error
	Description string
}

// BuildResultStatus enumerates the lifecycle states a target passes through
// during a build, for progress reporting.
type BuildResultStatus int

const (
	TargetPending BuildResultStatus = iota
	TargetBuilding
	TargetBuilt
	TargetUnchanged
	TargetBuildFailed
	TargetBuildStopped
	TargetSkipped
)

// String implements fmt.Stringer.
func (s BuildResultStatus) String() string {
	switch s {
	case TargetPending:
		return "Pending"
	case TargetBuilding:
		return "Building"
	case TargetBuilt:
		return "Built"
	case TargetUnchanged:
		return "Unchanged"
	case TargetBuildFailed:
		return "Failed"
	case TargetBuildStopped:
		return "Stopped"
	case TargetSkipped:
		return "Skipped"
	default:
		return "Unknown"
	}
}
