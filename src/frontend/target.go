// Package frontend is a minimal reference target-definition format: a JSON
// file listing shell-command targets, their dependencies, and their
// hashable options. It exists so the cmd/anvil binary has something
// concrete to drive; a real deployment of the engine would replace this
// with its own DSL front end, which the core deliberately knows nothing
// about.
package frontend

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/anvilbuild/anvil/src/core"
	"github.com/anvilbuild/anvil/src/fs"
)

// Declaration is the on-disk JSON shape of a single target.
type Declaration struct {
	Name         string            `json:"name"`
	Path         string            `json:"path"`
	Deps         []string          `json:"deps"`
	Command      []string          `json:"command"`
	CleanCommand []string          `json:"clean_command"`
	Env          map[string]string `json:"env"`
	Priority     int               `json:"priority"`
}

// File is the on-disk JSON shape of a whole target file: a flat list of
// declarations plus the output directories they're allowed to write under.
type File struct {
	Targets         []Declaration `json:"targets"`
	TopLevelOutputs []string      `json:"output_dirs"`
	ProcessTimeout  time.Duration `json:"process_timeout"`
}

// shellTarget runs an external command as its recipe. It satisfies
// core.Target.
type shellTarget struct {
	decl    Declaration
	workDir string
	deps    []core.ResolvedDependency
}

func (t *shellTarget) Name() string     { return t.decl.Name }
func (t *shellTarget) Path() string     { return t.decl.Path }
func (t *shellTarget) WorkDir() string  { return t.workDir }
func (t *shellTarget) Priority() int    { return t.decl.Priority }
func (t *shellTarget) Location() string { return t.decl.Name }

func (t *shellTarget) Run(ctx context.Context) error {
	if len(t.decl.Command) == 0 {
		return nil
	}
	return t.runCommand(ctx, t.decl.Command)
}

func (t *shellTarget) Clean(ctx context.Context) error {
	if len(t.decl.CleanCommand) == 0 {
		return os.RemoveAll(core.ToLongPathSafe(t.decl.Path))
	}
	return t.runCommand(ctx, t.decl.CleanCommand)
}

func (t *shellTarget) runCommand(ctx context.Context, argv []string) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = t.workDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), sortedEnvPairs(t.decl.Env)...)
	return cmd.Run()
}

// HashableImplicitInputs reports the command line and environment as the
// target's hashable inputs, so changing either forces a rebuild. Env entries
// are sorted by key first: map iteration order is random, and the fingerprint
// must be stable across runs when nothing actually changed.
func (t *shellTarget) HashableImplicitInputs(ctx context.Context) []string {
	inputs := append([]string{}, t.decl.Command...)
	inputs = append(inputs, sortedEnvPairs(t.decl.Env)...)
	return inputs
}

func sortedEnvPairs(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+env[k])
	}
	return pairs
}

func (t *shellTarget) ResolveUnderlyingDependencies(ctx context.Context) ([]core.ResolvedDependency, error) {
	return t.deps, nil
}

// fileContext is the core.Context implementation backing a loaded File: it
// knows nothing but what's declared, and publishes no target groups (the
// reference format has no syntax for them yet).
type fileContext struct {
	context.Context
	valid   map[string]bool
	outDirs []string
	timeout time.Duration
}

func (c *fileContext) IsValidTarget(path string) bool            { return c.valid[path] }
func (c *fileContext) TopLevelOutputDirs() []string               { return c.outDirs }
func (c *fileContext) ExpandPropertyValues(s string) string       { return s }
func (c *fileContext) PublishArtifact(name, path string)          {}
func (c *fileContext) TargetGroup(name string) ([]string, bool)   { return nil, false }
func (c *fileContext) ProcessTimeout() time.Duration              { return c.timeout }

var _ core.Context = (*fileContext)(nil)

// LoadFile reads path as a File and builds a resolved core.BuildGraph and
// core.Context from it. Dependencies are declared as raw paths; anything
// matching another declared target's path becomes a target dependency,
// everything else a plain filesystem path set via fs.Literal.
func LoadFile(path string) (*core.BuildGraph, core.Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	graph := core.NewGraph()
	ctx := &fileContext{
		Context: context.Background(),
		valid:   map[string]bool{},
		outDirs: file.TopLevelOutputs,
		timeout: file.ProcessTimeout,
	}
	baseDir := filepath.Dir(path)

	for _, decl := range file.Targets {
		t := &shellTarget{decl: decl, workDir: filepath.Join(baseDir, "work", decl.Name)}
		for _, dep := range decl.Deps {
			t.deps = append(t.deps, core.ResolvedDependency{Path: dep, PathSet: fs.NewLiteral(dep)})
		}
		graph.AddTarget(t)
		ctx.valid[decl.Path] = true
	}

	resolver := core.NewResolver(graph, ctx)
	if err := resolver.ResolveAll(); err != nil {
		return nil, nil, err
	}
	return graph, ctx, nil
}
