// Package watch rebuilds a set of targets automatically whenever one of
// their dependency files changes on disk.
package watch

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/op/go-logging.v1"

	"github.com/anvilbuild/anvil/src/core"
)

var log = logging.MustGetLogger("watch")

// Rebuilder is implemented by whatever can trigger one build-and-report
// cycle; the scheduler's Run method satisfies this after a thin adapter.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
}

// Watch watches every non-target dependency path under wrappers for
// changes and calls rebuild whenever one fires, debouncing bursts of events
// (a single `go build` can touch dozens of files) into one rebuild. It
// blocks until ctx is cancelled.
func Watch(ctx context.Context, wrappers []*core.TargetWrapper, debounce time.Duration, rebuild func(context.Context) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watched := map[string]bool{}
	for _, w := range wrappers {
		for _, dep := range w.NonTargetDeps() {
			dir := parentDir(dep.Path)
			if watched[dir] {
				continue
			}
			if err := watcher.Add(dir); err != nil {
				log.Warning("failed to watch %s: %s", dir, err)
				continue
			}
			watched[dir] = true
		}
	}

	if debounce <= 0 {
		debounce = 50 * time.Millisecond
	}

	log.Notice("Watching %d directories for changes", len(watched))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			log.Info("event: %s", event)
			drainUntilQuiet(watcher.Events, debounce)
			if err := rebuild(ctx); err != nil {
				log.Error("rebuild failed: %s", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warning("watcher error: %s", err)
		}
	}
}

// drainUntilQuiet discards further events until none arrive for the
// debounce window, so a burst of writes triggers exactly one rebuild.
func drainUntilQuiet(events chan fsnotify.Event, debounce time.Duration) {
	for {
		select {
		case <-events:
		case <-time.After(debounce):
			return
		}
	}
}

func parentDir(path string) string {
	if core.IsDirPath(path) {
		return path
	}
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
