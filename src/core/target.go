// Package core implements the dependency graph and incremental build engine:
// the target wrapper, dependency resolver, up-to-date oracle's data model and
// the scheduler's supporting state. It never knows how to actually build
// anything; that's the Target's job.
package core

import (
	"context"
	"time"
)

// A Target is the core's view of a single declared build step. Concrete
// implementations (compiling, archiving, copying, writing a file) live
// entirely outside this package; the core only ever calls through this
// interface and never downcasts to a concrete type.
type Target interface {
	// Name is the canonical name of this target, trailing separator iff
	// this is a directory target.
	Name() string
	// Path is the absolute output path this target produces.
	Path() string
	// WorkDir is the absolute, unique-per-target directory the target's
	// recipe is free to use as scratch space. Owned exclusively by the
	// target; the core never writes inside it.
	WorkDir() string
	// Priority is this target's declared scheduling priority; larger
	// values are dequeued earlier, all else equal.
	Priority() int
	// Location describes where this target was declared, for diagnostics.
	Location() string

	// Run executes the target's recipe. Called by the build orchestrator
	// once all target dependencies have completed and the up-to-date
	// oracle has determined a rebuild is required.
	Run(ctx context.Context) error
	// Clean removes this target's output and any target-specific state.
	Clean(ctx context.Context) error

	// HashableImplicitInputs returns an ordered, deterministic sequence of
	// strings describing every non-path input that should force a rebuild
	// if it changes: flags, option values, tool identities. Order matters;
	// callers must not sort it, since equal multisets in different orders
	// are still treated as a change.
	HashableImplicitInputs(ctx context.Context) []string
	// ResolveUnderlyingDependencies returns the absolute paths this target
	// depends on, each tagged with the PathSet that produced it. Some of
	// those paths will themselves be other targets' Path(); the rest are
	// plain filesystem paths.
	ResolveUnderlyingDependencies(ctx context.Context) ([]ResolvedDependency, error)
}

// A ResolvedDependency pairs a concrete absolute path with the PathSet that
// produced it, as returned by Target.ResolveUnderlyingDependencies.
type ResolvedDependency struct {
	Path    string
	PathSet PathSet
}

// A PathSet is a lazy, context-resolved collection of paths. It distinguishes
// between what a target will actually read (Resolve) and what the build must
// wait for / stat before that's possible (ResolveUnderlyingDependencies),
// which matters for globs and generated-directory references where the two
// can differ.
type PathSet interface {
	// Resolve enumerates the concrete absolute paths this set denotes right
	// now. For a glob over an existing tree, this is the expanded file
	// list; for a reference into a not-yet-built directory target, this is
	// the path that will exist once that target has run.
	Resolve(ctx context.Context) ([]string, error)
	// ResolveUnderlyingDependencies enumerates the paths the build must
	// depend on before Resolve can be trusted. For a static literal set or
	// a glob over an existing directory these coincide with Resolve; for a
	// "directory generated by target X" set, this yields X's output path
	// while Resolve yields the concrete file beneath it.
	ResolveUnderlyingDependencies(ctx context.Context) ([]string, error)
	// SkipExistenceCheck returns true if this set promises its paths will
	// be present by build time without the resolver needing to stat them
	// itself (e.g. a set built by walking the filesystem already knows its
	// entries exist).
	SkipExistenceCheck() bool
}

// A Context carries the build-wide, immutable-after-resolution state that
// core entry points need but shouldn't reach for via a global. It replaces
// the ambient "current build file" / "initialisation context" globals of
// the system this engine is modelled on with an explicit value threaded
// through every call.
type Context interface {
	context.Context

	// IsValidTarget returns true if path is the output Path() of some
	// known target.
	IsValidTarget(path string) bool
	// TopLevelOutputDirs returns the absolute paths of every top-level
	// output directory the build writes beneath.
	TopLevelOutputDirs() []string
	// ExpandPropertyValues performs variable substitution on a string,
	// e.g. expanding ${OUTPUT_DIR} style references.
	ExpandPropertyValues(s string) string
	// PublishArtifact surfaces a diagnostic file (recipe stdout/stderr,
	// a crash dump) against a failed target, for later display.
	PublishArtifact(name, path string)
	// TargetGroup returns the set of target names (including the given
	// one) that must all be built whenever any one of them is required,
	// and whether name belongs to any such group at all.
	TargetGroup(name string) ([]string, bool)

	// ProcessTimeout is the default per-recipe process timeout; a zero
	// value means no timeout is enforced. Targets are expected to honour
	// this themselves; the core only exposes the value.
	ProcessTimeout() time.Duration
}
