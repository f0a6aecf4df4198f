package build

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/anvilbuild/anvil/src/core"
)

// cleanRetryDelay is how long Clean waits before retrying a failed
// implicit-inputs file deletion, to ride out a transient anti-virus or
// file-lock race on the platforms where that's a real concern.
const cleanRetryDelay = 50 * time.Millisecond

// Run executes a single wrapper's recipe and, on success, persists its
// implicit-input fingerprint. It does not consult the oracle; callers must
// already have decided the target needs building.
func Run(ctx context.Context, w *core.TargetWrapper, buildCtx core.Context) error {
	fingerprint := w.ImplicitInputsFor(buildCtx)

	if len(fingerprint) > 0 || w.IsDirPath {
		if err := removeImplicitInputsFile(w.ImplicitInputsFile()); err != nil {
			return &core.RecipeError{Target: w.Name, Cause: err}
		}
	}

	if err := w.Target.Run(ctx); err != nil {
		return &core.RecipeError{Target: w.Name, Cause: err}
	}
	if err := checkOutputProduced(w); err != nil {
		return err
	}
	logOutputSize(w)

	if len(fingerprint) > 0 || w.IsDirPath {
		if err := core.EnsureDir(w.ImplicitInputsFile()); err != nil {
			return &core.RecipeError{Target: w.Name, Cause: err}
		}
		if err := writeFingerprint(w.ImplicitInputsFile(), fingerprint); err != nil {
			return &core.RecipeError{Target: w.Name, Cause: err}
		}
	}
	return nil
}

// checkOutputProduced reclassifies a recipe that reported success without
// actually producing its promised output (or produced the wrong kind of
// thing: a file where a directory target was declared, or vice versa) as a
// failure, rather than letting the oracle discover it's missing on the next
// build.
func checkOutputProduced(w *core.TargetWrapper) error {
	ok := core.IsRegularFile(w.Path)
	if w.IsDirPath {
		ok = core.IsDirectory(w.Path)
	}
	if !ok {
		return &core.RecipeError{Target: w.Name, Cause: fmt.Errorf("recipe succeeded but did not produce %s", w.Path)}
	}
	return nil
}

// Clean removes a wrapper's persisted fingerprint and invokes the target's
// own clean recipe.
func Clean(ctx context.Context, w *core.TargetWrapper) error {
	if err := removeImplicitInputsFileRetrying(w.ImplicitInputsFile()); err != nil {
		return err
	}
	return w.Target.Clean(ctx)
}

// InternalClean removes the target's output directly (a file, or a directory
// with everything in it) rather than delegating to the target's own clean recipe. The
// scheduler uses this ahead of a forced rebuild, where we want the output
// gone unconditionally rather than whatever bespoke cleanup the target
// recipe performs.
func InternalClean(w *core.TargetWrapper) error {
	if err := removeImplicitInputsFileRetrying(w.ImplicitInputsFile()); err != nil {
		return err
	}
	if err := os.RemoveAll(w.Path); err != nil && !os.IsNotExist(err) {
		return &core.RecipeError{Target: w.Name, Cause: err}
	}
	return nil
}

// logOutputSize reports how large a just-built output is, for targets whose
// output is a single regular file; directory targets aren't walked just for
// this, since nothing else in the build needs that total.
func logOutputSize(w *core.TargetWrapper) {
	if w.IsDirPath {
		return
	}
	info, err := os.Stat(w.Path)
	if err != nil {
		return
	}
	log.Debug("%s: built, output is %s", w.Name, humanize.Bytes(uint64(info.Size())))
}

func removeImplicitInputsFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func removeImplicitInputsFileRetrying(path string) error {
	err := removeImplicitInputsFile(path)
	if err == nil {
		return nil
	}
	time.Sleep(cleanRetryDelay)
	return removeImplicitInputsFile(path)
}

func writeFingerprint(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, line := range lines {
		if _, err := f.WriteString(line); err != nil {
			return err
		}
		if _, err := f.WriteString("\n"); err != nil {
			return err
		}
	}
	return nil
}
