// Command anvil is the CLI front end for the build engine: it parses flags,
// loads configuration, and drives the scheduler over a core.BuildGraph.
//
// The engine itself has no opinion on how targets get declared; this binary
// pairs it with src/frontend, a minimal JSON target format, purely so there's
// something concrete to build. A real deployment would swap that package out
// for its own DSL front end (a BUILD-file parser, analogous to what loads
// targets in the system this engine is modelled on) without touching
// anything under src/core, src/build, or src/cli.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"gopkg.in/op/go-logging.v1"

	"github.com/anvilbuild/anvil/src/build"
	"github.com/anvilbuild/anvil/src/cli"
	"github.com/anvilbuild/anvil/src/core"
	"github.com/anvilbuild/anvil/src/frontend"
	"github.com/anvilbuild/anvil/src/metrics"
	"github.com/anvilbuild/anvil/src/watch"
)

var log = logging.MustGetLogger("main")

func main() {
	opts, err := cli.ParseArgs(os.Args[1:])
	if err != nil {
		os.Exit(1) // go-flags has already printed usage or the parse error
	}
	cli.InitLogging(opts.LogLevel())

	config, err := core.ReadConfigFiles([]string{opts.Config, core.LocalConfigFileName})
	if err != nil {
		log.Fatalf("failed to read config: %s", err)
	}
	if opts.NumThreads > 0 {
		config.Build.NumThreads = opts.NumThreads
	}

	graph, ctx, err := frontend.LoadFile(opts.TargetsFile)
	if err != nil {
		log.Fatalf("failed to load targets from %s: %s", opts.TargetsFile, err)
	}

	os.Exit(run(opts, config, graph, ctx))
}

func run(opts *cli.Opts, config *core.Configuration, graph *core.BuildGraph, ctx core.Context) int {
	switch opts.ActiveCommand {
	case "clean":
		return runClean(graph, opts.Clean.Args.Targets)
	case "list":
		runList(graph, opts.List.Args.Targets)
		return 0
	default:
		return runBuild(opts, config, graph, ctx)
	}
}

func runBuild(opts *cli.Opts, config *core.Configuration, graph *core.BuildGraph, ctx core.Context) int {
	state := core.NewBuildState(graph, config)
	state.ForceRebuild = opts.Build.ForceRebuild
	state.IgnoreDeps = opts.Build.IgnoreDeps
	state.FailFast = opts.Build.FailFast

	reporter := metrics.NewReporter(config, state.RunID.String())
	defer reporter.Close()
	go consumeResults(state, reporter)

	roots, err := resolveRoots(graph, opts.Build.Args.Targets)
	if err != nil {
		log.Error("%s", err)
		return 1
	}

	workers := config.Build.NumThreads
	if workers <= 0 {
		workers = 1
	}
	sched := build.NewScheduler(graph, ctx, state, workers)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if opts.Build.Watch {
		return runWatch(sigCtx, sched, roots, state, config, reporter)
	}

	start := time.Now()
	buildErr := sched.Run(sigCtx, roots)
	reporter.ObserveBuildDuration(time.Since(start))
	if buildErr != nil {
		log.Error("build failed: %s", buildErr)
	}
	return cli.ExitCode(buildErr)
}

func runWatch(ctx context.Context, sched *build.Scheduler, roots []*core.TargetWrapper, state *core.BuildState, config *core.Configuration, reporter *metrics.Reporter) int {
	rebuild := func(ctx context.Context) error {
		start := time.Now()
		err := sched.Run(ctx, roots)
		reporter.ObserveBuildDuration(time.Since(start))
		return err
	}
	if err := rebuild(ctx); err != nil {
		log.Error("initial build failed: %s", err)
	}

	debounce := time.Duration(config.Watch.DebounceMillis) * time.Millisecond
	if err := watch.Watch(ctx, roots, debounce, rebuild); err != nil && err != context.Canceled {
		log.Error("watch exited: %s", err)
		return 1
	}
	return 0
}

func runClean(graph *core.BuildGraph, targetNames []string) int {
	status := 0
	for _, name := range targetNames {
		w, ok := graph.WrapperByName(name)
		if !ok {
			log.Error("unknown target %s", name)
			status = 1
			continue
		}
		if err := build.Clean(context.Background(), w); err != nil {
			log.Error("failed to clean %s: %s", name, err)
			status = 1
		}
	}
	return status
}

func runList(graph *core.BuildGraph, names []string) {
	wrappers := graph.AllWrappers()
	want := map[string]bool{}
	for _, n := range names {
		want[n] = true
	}
	for _, w := range wrappers {
		if len(want) > 0 && !want[w.Name] {
			continue
		}
		deps := make([]string, 0, len(w.TargetDeps()))
		for _, dep := range w.TargetDeps() {
			deps = append(deps, dep.Name)
		}
		fmt.Printf("%s: %v\n", w.Name, deps)
	}
}

func resolveRoots(graph *core.BuildGraph, names []string) ([]*core.TargetWrapper, error) {
	if len(names) == 0 {
		return graph.AllWrappers(), nil
	}
	var roots []*core.TargetWrapper
	for _, name := range names {
		w, ok := graph.WrapperByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown target %s", name)
		}
		roots = append(roots, w)
	}
	return roots, nil
}

func consumeResults(state *core.BuildState, reporter *metrics.Reporter) {
	for result := range state.Results {
		reporter.Record(result.Status)
		started, done, failed, skipped := state.Counts()
		fmt.Fprintln(os.Stderr, cli.StatusLine(started-done, done, failed, skipped, started)+" "+result.Target+" "+result.Status.String())
	}
}
