// Package metrics reports build statistics to an external Prometheus
// pushgateway. The engine runs as a short-lived process, so there's nothing
// for Prometheus to scrape: metrics are pushed instead, periodically and
// once more at the end of the build.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"gopkg.in/op/go-logging.v1"

	"github.com/anvilbuild/anvil/src/core"
)

var log = logging.MustGetLogger("metrics")

// maxErrors is how many consecutive push failures we tolerate before giving
// up on metrics for the rest of this build; a flaky pushgateway shouldn't
// slow builds down indefinitely.
const maxErrors = 3

var buildDurationBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500}

// Reporter pushes build counters and histograms to a pushgateway on a
// ticker, and once more on Close.
type Reporter struct {
	url      string
	pusher   *push.Pusher
	registry *prometheus.Registry
	ticker   *time.Ticker
	done     chan struct{}
	errors   int

	targetsBuilt    prometheus.Counter
	targetsUnchanged prometheus.Counter
	targetsFailed   prometheus.Counter
	targetsSkipped  prometheus.Counter
	buildDuration   prometheus.Histogram
}

// NewReporter creates a Reporter wired to config's pushgateway settings. If
// config.Metrics.PushGatewayURL is empty, NewReporter returns nil: metrics
// are entirely optional and the caller should treat a nil *Reporter as a
// no-op (Record, ObserveBuildDuration and Close are safe to call on it).
func NewReporter(config *core.Configuration, runID string) *Reporter {
	if config.Metrics.PushGatewayURL == "" {
		return nil
	}

	registry := prometheus.NewRegistry()
	r := &Reporter{
		url:      config.Metrics.PushGatewayURL,
		registry: registry,
		done:     make(chan struct{}),
		targetsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "anvil_targets_built_total", Help: "Targets whose recipe ran and succeeded.",
		}),
		targetsUnchanged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "anvil_targets_unchanged_total", Help: "Targets the oracle found already up to date.",
		}),
		targetsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "anvil_targets_failed_total", Help: "Targets whose recipe failed.",
		}),
		targetsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "anvil_targets_skipped_total", Help: "Targets skipped because a dependency failed.",
		}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "anvil_build_duration_seconds", Help: "Wall-clock duration of the whole build.", Buckets: buildDurationBuckets,
		}),
	}
	registry.MustRegister(r.targetsBuilt, r.targetsUnchanged, r.targetsFailed, r.targetsSkipped, r.buildDuration)
	r.pusher = push.New(r.url, "anvil").Grouping("run_id", runID).Gatherer(registry)

	frequency := time.Duration(config.Metrics.PushFrequency) * time.Second
	if frequency <= 0 {
		frequency = 30 * time.Second
	}
	r.ticker = time.NewTicker(frequency)
	go r.loop()
	return r
}

func (r *Reporter) loop() {
	if r == nil {
		return
	}
	for {
		select {
		case <-r.ticker.C:
			r.push()
		case <-r.done:
			return
		}
	}
}

func (r *Reporter) push() {
	if r == nil {
		return
	}
	if err := r.pusher.Push(); err != nil {
		r.errors++
		log.Warning("failed to push metrics: %s", err)
		if r.errors >= maxErrors {
			log.Warning("too many metrics push failures, giving up for the rest of this build")
			r.ticker.Stop()
		}
	} else {
		r.errors = 0
	}
}

// Record updates the appropriate counter for a single target's terminal
// status. Safe to call on a nil Reporter.
func (r *Reporter) Record(status core.BuildResultStatus) {
	if r == nil {
		return
	}
	switch status {
	case core.TargetBuilt:
		r.targetsBuilt.Inc()
	case core.TargetUnchanged:
		r.targetsUnchanged.Inc()
	case core.TargetBuildFailed:
		r.targetsFailed.Inc()
	case core.TargetSkipped:
		r.targetsSkipped.Inc()
	}
}

// ObserveBuildDuration records the wall-clock time of a completed build.
// Safe to call on a nil Reporter.
func (r *Reporter) ObserveBuildDuration(d time.Duration) {
	if r == nil {
		return
	}
	r.buildDuration.Observe(d.Seconds())
}

// Close stops the periodic ticker and pushes one final time. Safe to call
// on a nil Reporter.
func (r *Reporter) Close() {
	if r == nil {
		return
	}
	close(r.done)
	r.ticker.Stop()
	r.push()
}
