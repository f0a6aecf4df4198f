// Package build contains the up-to-date oracle and the worker-pool
// scheduler that drives a resolved core.BuildGraph through the up-to-date
// and build phases of a single invocation.
package build

import (
	"bufio"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/op/go-logging.v1"

	"github.com/anvilbuild/anvil/src/core"
)

var log = logging.MustGetLogger("build")

// mtimeSuspicionWindow is how close two mtimes have to be before we warn that
// the comparison might be unreliable (clock skew, coarse filesystem
// timestamp resolution) while still honouring it as a rebuild trigger.
const mtimeSuspicionWindow = time.Second

// UpToDate implements the oracle contract: it returns true only if w does
// not need to be rebuilt. ignoreDeps short-circuits the dependency-mtime and
// fingerprint checks entirely, for forcing a rebuild of one target without
// waiting on (or double-checking) the rest of the graph. The only state it
// changes is the wrapper's sticky dirty flag, which it sets when the output
// is missing; the caller decides what to do with a false result.
func UpToDate(w *core.TargetWrapper, ctx core.Context, config *core.Configuration, ignoreDeps bool) bool {
	if w.Dirty() {
		return false
	}
	if !core.PathExists(w.Path) {
		w.MarkDirty()
		return false
	}
	if ignoreDeps {
		return true
	}
	if !core.IsRegularFile(w.StampFile) {
		return false
	}

	fingerprint := w.ImplicitInputsFor(ctx)
	if len(fingerprint) > 0 || w.IsDirPath {
		if !fingerprintMatches(w, fingerprint, config) {
			return false
		}
	}

	return depMtimesAreOlder(w)
}

// fingerprintMatches reads the persisted implicit-inputs file and compares it
// line-for-line against current, the fingerprint Run would persist if it ran
// now. Any difference reports a bounded, tail-biased diff to the log and
// returns false.
func fingerprintMatches(w *core.TargetWrapper, current []string, config *core.Configuration) bool {
	persisted, err := readLines(w.ImplicitInputsFile())
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("%s: no implicit-inputs file, needs building", w.Name)
		} else {
			log.Warning("%s: failed to read implicit-inputs file: %s", w.Name, err)
		}
		return false
	}

	if linesEqual(persisted, current) {
		return true
	}

	maxDiff := config.Build.ImplicitInputsMaxDiff
	if maxDiff <= 0 {
		maxDiff = 30
	}
	log.Debug("%s: implicit inputs changed:\n%s", w.Name, diffLines(persisted, current, maxDiff))
	return false
}

// depMtimesAreOlder compares the wrapper's stampfile mtime against every
// dependency's relevant mtime. Directory target deps are compared via their
// own stampfile (the implicit-inputs file) rather than walking their
// contents, since a filtered directory's content mtime can be misleading.
func depMtimesAreOlder(w *core.TargetWrapper) bool {
	info, err := os.Stat(w.StampFile)
	if err != nil {
		return false
	}
	t := info.ModTime()

	for _, dep := range w.TargetDeps() {
		depPath := dep.Path
		if dep.IsDirPath {
			depPath = dep.StampFile
		}
		if newerThan(depPath, t, w.Name, dep.Name) {
			return false
		}
	}
	for _, dep := range w.NonTargetDeps() {
		if dep.IsDirPath() {
			continue // directory mtimes are meaningless for non-target deps
		}
		if newerThan(dep.Path, t, w.Name, dep.Path) {
			return false
		}
	}
	return true
}

func newerThan(path string, t time.Time, targetName, depName string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	diff := info.ModTime().Sub(t)
	if diff <= 0 {
		return false
	}
	if diff < mtimeSuspicionWindow {
		log.Warning("%s: dependency %s is only %s newer; rebuilding but this timing is suspiciously close",
			targetName, depName, diff)
	}
	return true
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// diffLines renders a bounded, tail-biased description of how two fingerprints
// differ: the cap is split so half goes to lines only in old (removals) and
// half to lines only in new (additions), rather than truncating from the
// front and potentially hiding every real change.
func diffLines(old, current []string, maxLines int) string {
	oldSet := map[string]bool{}
	for _, l := range old {
		oldSet[l] = true
	}
	newSet := map[string]bool{}
	for _, l := range current {
		newSet[l] = true
	}

	var removed, added []string
	for _, l := range old {
		if !newSet[l] {
			removed = append(removed, l)
		}
	}
	for _, l := range current {
		if !oldSet[l] {
			added = append(added, l)
		}
	}

	half := maxLines / 2
	removedTrunc, removedMore := truncateTail(removed, half)
	addedTrunc, addedMore := truncateTail(added, maxLines-half)

	out := ""
	for _, l := range removedTrunc {
		out += "- " + l + "\n"
	}
	if removedMore > 0 {
		out += "  ... and " + humanize.Comma(int64(removedMore)) + " more removed\n"
	}
	for _, l := range addedTrunc {
		out += "+ " + l + "\n"
	}
	if addedMore > 0 {
		out += "  ... and " + humanize.Comma(int64(addedMore)) + " more added\n"
	}
	return out
}

// truncateTail keeps the last n entries of lines (the "tail-biased" half of
// the bound), reporting how many were dropped from the front.
func truncateTail(lines []string, n int) ([]string, int) {
	if n < 0 {
		n = 0
	}
	if len(lines) <= n {
		return lines, 0
	}
	return lines[len(lines)-n:], len(lines) - n
}

