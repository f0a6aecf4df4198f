// Package fs provides the concrete core.PathSet implementations that target
// recipes use to declare their dependencies: literal path lists, filesystem
// globs, and references into a directory target's eventual contents.
package fs

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/anvilbuild/anvil/src/core"
)

// Literal is a PathSet over a fixed, already-known list of paths. Resolve
// and ResolveUnderlyingDependencies return the same list: there's nothing
// lazy about it.
type Literal struct {
	Paths []string
}

func NewLiteral(paths ...string) *Literal { return &Literal{Paths: paths} }

func (l *Literal) Resolve(ctx context.Context) ([]string, error) { return l.Paths, nil }

func (l *Literal) ResolveUnderlyingDependencies(ctx context.Context) ([]string, error) {
	return l.Paths, nil
}

func (l *Literal) SkipExistenceCheck() bool { return false }

// Glob is a PathSet that expands an Ant-style glob pattern (supporting **)
// against the filesystem at resolution time. Matches are re-evaluated on
// every Resolve call since new files may have appeared since the last
// build; ResolveUnderlyingDependencies returns the same expanded list, since
// there's no narrower "the target that will produce this" to wait on.
type Glob struct {
	Root     string
	Includes []string
	Excludes []string
	// Hidden includes dotfiles and editor temp files in the match set when
	// true. Most recipes want these excluded, hence the default of false.
	Hidden bool
}

func NewGlob(root string, includes ...string) *Glob {
	return &Glob{Root: root, Includes: includes}
}

func (g *Glob) Resolve(ctx context.Context) ([]string, error) {
	var matches []string
	for _, include := range g.Includes {
		found, err := globOne(g.Root, include, g.Hidden)
		if err != nil {
			return nil, fmt.Errorf("glob %s under %s: %w", include, g.Root, err)
		}
		matches = append(matches, found...)
	}
	matches = dedupeAndFilter(matches, g.Excludes)
	sort.Strings(matches)
	return matches, nil
}

func (g *Glob) ResolveUnderlyingDependencies(ctx context.Context) ([]string, error) {
	return g.Resolve(ctx)
}

// SkipExistenceCheck is true: a glob only ever returns paths that already
// exist, so the resolver's pre-build existence stat would be redundant.
func (g *Glob) SkipExistenceCheck() bool { return true }

// GeneratedIn is a PathSet for paths that live inside a directory target's
// eventual output, named before that directory has necessarily been built.
// Resolve returns the concrete paths (for use once the directory exists);
// ResolveUnderlyingDependencies returns the directory target's own path
// instead, so the resolver waits on the whole directory rather than trying
// to stat files that don't exist yet.
type GeneratedIn struct {
	Dir   string // the directory target's declared (trailing-separator) path
	Names []string
}

func NewGeneratedIn(dir string, names ...string) *GeneratedIn {
	return &GeneratedIn{Dir: dir, Names: names}
}

func (g *GeneratedIn) Resolve(ctx context.Context) ([]string, error) {
	out := make([]string, len(g.Names))
	for i, name := range g.Names {
		out[i] = filepath.Join(g.Dir, name)
	}
	return out, nil
}

func (g *GeneratedIn) ResolveUnderlyingDependencies(ctx context.Context) ([]string, error) {
	return []string{g.Dir}, nil
}

// SkipExistenceCheck is true: the resolver waits on the directory target
// itself (via ResolveUnderlyingDependencies), not on these not-yet-existing
// paths, so there's nothing productive to stat ahead of the build.
func (g *GeneratedIn) SkipExistenceCheck() bool { return true }

var _ core.PathSet = (*Literal)(nil)
var _ core.PathSet = (*Glob)(nil)
var _ core.PathSet = (*GeneratedIn)(nil)

// globOne expands a single Ant-style pattern (supporting a "**" path
// segment that matches any number of directories) against root.
func globOne(root, pattern string, includeHidden bool) ([]string, error) {
	if !strings.Contains(pattern, "**") {
		matches, err := filepath.Glob(filepath.Join(root, pattern))
		if err != nil {
			return nil, err
		}
		return filterHidden(matches, includeHidden), nil
	}

	parts := strings.SplitN(pattern, "**", 2)
	prefix := strings.TrimSuffix(parts[0], "/")
	suffix := strings.TrimPrefix(parts[1], "/")
	searchRoot := filepath.Join(root, prefix)

	var out []string
	err := filepath.Walk(searchRoot, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(searchRoot, p)
		if err != nil {
			return nil
		}
		if suffix == "" {
			out = append(out, p)
			return nil
		}
		matched, err := filepath.Match(suffix, filepath.Base(rel))
		if err == nil && matched {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return filterHidden(out, includeHidden), nil
}

func filterHidden(paths []string, includeHidden bool) []string {
	if includeHidden {
		return paths
	}
	var out []string
	for _, p := range paths {
		_, file := path.Split(p)
		if strings.HasPrefix(file, ".") || hiddenOrTemp.MatchString(file) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func dedupeAndFilter(paths, excludes []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range paths {
		if seen[p] || matchesAny(p, excludes) {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func matchesAny(p string, excludes []string) bool {
	for _, excl := range excludes {
		if ok, err := filepath.Match(excl, p); err == nil && ok {
			return true
		}
		if ok, err := filepath.Match(excl, filepath.Base(p)); err == nil && ok {
			return true
		}
	}
	return false
}

// hiddenOrTemp matches the classic editor-swap/temp-file naming convention
// (e.g. "#foo#"), kept here rather than in filterHidden since it's the one
// bit of this pattern list not already covered by a leading-dot check.
var hiddenOrTemp = regexp.MustCompile(`^#.*#$`)
