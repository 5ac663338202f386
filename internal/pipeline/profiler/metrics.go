package profiler

import (
	"sync"

	"go.opentelemetry.io/otel/metric"

	"github.com/wagid-sheikh/simplify-downloader/internal/observability"
)

var (
	metricsOnce  sync.Once
	runsTotal    metric.Int64Counter
	windowsTotal metric.Int64Counter
	jobsSkipped  metric.Int64Counter
)

// instruments lazily builds this package's counters against the
// process-wide Meter the first time a run needs them, rather than at
// package init, so tests that never call Run incur no otel setup cost.
func instruments() {
	metricsOnce.Do(func() {
		meter := observability.Meter()
		runsTotal, _ = meter.Int64Counter("profiler_runs_total",
			metric.WithDescription("profiler invocations, labeled by rolled-up status"))
		windowsTotal, _ = meter.Int64Counter("profiler_windows_total",
			metric.WithDescription("sync windows attempted, labeled by pipeline and terminal status"))
		jobsSkipped, _ = meter.Int64Counter("profiler_jobs_skipped_total",
			metric.WithDescription("(store, pipeline) jobs skipped without attempting any window"))
	})
}
