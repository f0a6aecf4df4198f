package core

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("core")

// Flags on a non-target dependency edge.
const (
	// DepIsDirPath marks a non-target dependency as a directory (trailing
	// separator semantics, per IsDirPath).
	DepIsDirPath = 1 << iota
	// DepSkipExistenceCheck marks a non-target dependency whose origin
	// path set has already promised it will exist, so the resolver's
	// pre-build existence check can skip stat-ing it (e.g. a dependency
	// that came from enumerating the filesystem).
	DepSkipExistenceCheck
)

// A NonTargetDep is an edge from a wrapper to a plain filesystem path that
// isn't itself the output of a known target.
type NonTargetDep struct {
	Path    string
	Flags   int
	Origin  PathSet
}

func (d NonTargetDep) isDir() bool              { return d.Flags&DepIsDirPath != 0 }
func (d NonTargetDep) skipExistenceCheck() bool { return d.Flags&DepSkipExistenceCheck != 0 }

// IsDirPath reports whether this non-target dependency is a directory, per
// the flags the resolver set when it built the edge.
func (d NonTargetDep) IsDirPath() bool { return d.isDir() }

// SkipExistenceCheck reports whether this non-target dependency's origin
// path set already promised the path will exist by build time.
func (d NonTargetDep) SkipExistenceCheck() bool { return d.skipExistenceCheck() }

// A TargetWrapper holds all of the per-target scheduling state the build
// engine needs that the Target itself doesn't know about: dependency
// counts, dirty flag, reverse edges, effective priority and the implicit
// input fingerprint. Exactly one wrapper is created per target, during a
// single-threaded init pass; resolution runs once per wrapper and is
// idempotent thereafter.
type TargetWrapper struct {
	Target    Target
	Path      string
	Name      string
	IsDirPath bool

	// StampFile is the file whose mtime represents "this target last
	// completed": the output itself for file targets, the implicit-inputs
	// file for directory targets (so a partially-built directory whose
	// mtime was touched by some unrelated write doesn't look up to date).
	StampFile string

	// EffectivePriority starts as Target.Priority() and is only ever
	// raised, by the single-threaded priority-push pre-pass, to be at
	// least as large as the priority of anything that depends on it.
	EffectivePriority int

	implicitInputsFile string

	mu             sync.Mutex
	depcount       int
	dirty          bool
	targetDeps     []*TargetWrapper // sorted by Name once resolved
	nontargetDeps  []NonTargetDep   // sorted by Path once resolved
	rdeps          []*TargetWrapper
	implicitInputs []string // cached; nil until first computed
	resolved       bool
}

// NewTargetWrapper creates the wrapper for a single target. The
// implicit-inputs file lives in an "implicit-inputs/" directory inside the
// directory containing the target's WorkDir(), next to the work directory
// rather than in it, so the fingerprint never contaminates the recipe's own
// scratch space.
func NewTargetWrapper(target Target) *TargetWrapper {
	name := target.Name()
	w := &TargetWrapper{
		Target:            target,
		Path:              target.Path(),
		Name:              name,
		IsDirPath:         IsDirPath(name),
		EffectivePriority: target.Priority(),
	}
	w.implicitInputsFile = implicitInputsFileFor(target.WorkDir())
	if w.IsDirPath {
		w.StampFile = w.implicitInputsFile
	} else {
		w.StampFile = w.Path
	}
	return w
}

// implicitInputsFileFor returns the path of the implicit-inputs file for a
// target whose work directory is workDir. It sits beside workDir, not inside
// it, under an "implicit-inputs" directory, named after the work directory's
// own basename so that distinct targets never collide.
func implicitInputsFileFor(workDir string) string {
	workDir = filepath.Clean(workDir)
	parent := filepath.Dir(workDir)
	base := filepath.Base(workDir)
	return filepath.Join(parent, "implicit-inputs", base+".txt")
}

// DepCount returns the number of not-yet-completed target dependencies.
func (w *TargetWrapper) DepCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.depcount
}

// Decrement reduces the outstanding target-dependency count by one and
// returns the new value. Called by the scheduler when a dependency of w
// completes.
func (w *TargetWrapper) Decrement() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.depcount--
	return w.depcount
}

// MarkDirty sets the sticky dirty flag, forcing the up-to-date oracle to
// always report "rebuild" for this wrapper from now on. Returns the previous
// value, so callers can tell whether this was a no-op.
func (w *TargetWrapper) MarkDirty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	was := w.dirty
	w.dirty = true
	return was
}

// Dirty reports whether this wrapper's sticky dirty flag is set.
func (w *TargetWrapper) Dirty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dirty
}

// TargetDeps returns this wrapper's resolved target dependencies, sorted by
// name. Resolve must have been called first; it is a programming error to
// call this before resolution (returns nil).
func (w *TargetWrapper) TargetDeps() []*TargetWrapper {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.targetDeps
}

// NonTargetDeps returns this wrapper's resolved non-target dependencies,
// sorted by path.
func (w *TargetWrapper) NonTargetDeps() []NonTargetDep {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nontargetDeps
}

// RDeps returns the wrappers that declared a dependency on this one.
func (w *TargetWrapper) RDeps() []*TargetWrapper {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*TargetWrapper, len(w.rdeps))
	copy(out, w.rdeps)
	return out
}

// addRDep records that dependant depends on w. It takes w's lock itself.
func (w *TargetWrapper) addRDep(dependant *TargetWrapper) {
	w.mu.Lock()
	w.rdeps = append(w.rdeps, dependant)
	w.mu.Unlock()
}

// setResolved installs the resolved dependency lists. Only ever called once,
// from the serial resolution phase.
func (w *TargetWrapper) setResolved(targetDeps []*TargetWrapper, nontargetDeps []NonTargetDep) {
	sort.Slice(targetDeps, func(i, j int) bool { return targetDeps[i].Name < targetDeps[j].Name })
	sort.Slice(nontargetDeps, func(i, j int) bool { return nontargetDeps[i].Path < nontargetDeps[j].Path })
	w.mu.Lock()
	w.targetDeps = targetDeps
	w.nontargetDeps = nontargetDeps
	w.depcount = len(targetDeps)
	w.resolved = true
	w.mu.Unlock()
}

// IsResolved reports whether Resolve has already populated this wrapper's
// dependency lists.
func (w *TargetWrapper) IsResolved() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.resolved
}

// ImplicitInputsFor computes (and memoizes) the ordered sequence of strings
// that make up this wrapper's implicit-input fingerprint: see fingerprint.go.
// Must only be called once dependency resolution has completed, since it
// needs the final target/non-target dependency lists.
func (w *TargetWrapper) ImplicitInputsFor(ctx context.Context) []string {
	w.mu.Lock()
	if w.implicitInputs != nil {
		cached := w.implicitInputs
		w.mu.Unlock()
		return cached
	}
	targetDeps := w.targetDeps
	nontargetDeps := w.nontargetDeps
	w.mu.Unlock()

	lines := computeFingerprint(targetDeps, nontargetDeps, w.Target.HashableImplicitInputs(ctx))

	w.mu.Lock()
	w.implicitInputs = lines
	w.mu.Unlock()
	return lines
}

// ImplicitInputsFile returns the path where this wrapper's fingerprint is
// persisted between builds.
func (w *TargetWrapper) ImplicitInputsFile() string {
	return w.implicitInputsFile
}

// removeImplicitInputsFile deletes the persisted fingerprint, tolerating the
// file already being absent.
func removeImplicitInputsFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
