// Command syncrunner is the single process entrypoint for one profiler
// invocation (spec §6): it wires C1-C12 from RuntimeConfig, runs the
// requested sync group to completion, dispatches notifications, and
// exits with a status code reflecting the run's outcome.
//
// CLI flag parsing is an explicit non-goal: invocation parameters
// (sync_group, window_days, overlap_days, max_workers, force,
// store_code) are read from the environment via internal/config, not
// from flags, so this file has no external-collaborator surface to
// own beyond an optional config file path.
//
// Grounded on the teacher's cmd/alex/main.go signal-handling shape
// (signal.Notify on SIGINT/SIGTERM driving a cooperative shutdown
// rather than an abrupt os.Exit) and its cmd/auth-user-seed/main.go
// config-file wiring style.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wagid-sheikh/simplify-downloader/internal/clock"
	"github.com/wagid-sheikh/simplify-downloader/internal/config"
	pipelineerrors "github.com/wagid-sheikh/simplify-downloader/internal/errors"
	"github.com/wagid-sheikh/simplify-downloader/internal/logging"
	"github.com/wagid-sheikh/simplify-downloader/internal/observability"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/domain"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/notify"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/production"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/profiler"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/runsummary"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/sessioncache"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/staging"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/storeregistry"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/syncengine"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/synclog"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/webautomation"
)

// gracefulShutdownGrace is how long in-flight work is given to wind down
// after a shutdown signal has cancelled the parent context, before the
// process exits outright.
const gracefulShutdownGrace = 30 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	logger := logging.New()

	opts := []config.Option{config.WithEnvLookup(os.LookupEnv)}
	if configFile := os.Getenv("CONFIG_FILE"); configFile != "" {
		opts = append(opts, config.WithFile(configFile))
	}

	rc, meta, err := config.Load(opts...)
	if err != nil {
		logger.Error("config: %v", err)
		return 1
	}
	for _, field := range []string{"SyncGroup", "WindowDays", "MaxWorkers"} {
		logger.Debug("config %s resolved from %s", field, meta.SourceOf(field))
	}

	obs, err := observability.Setup(":9090", logger.With("observability"))
	if err != nil {
		logger.Error("observability: %v", err)
		return 1
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		obs.Shutdown(shutdownCtx)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	installSignalHandler(ctx, cancel, logger)

	exitCode, err := execute(ctx, rc, logger)
	if err != nil {
		logger.Error("syncrunner: %v", err)
	}
	return exitCode
}

// installSignalHandler cancels ctx on SIGINT/SIGTERM, giving in-flight
// work gracefulShutdownGrace to reach a checkpoint before a second
// signal or the grace deadline forces an abrupt exit.
func installSignalHandler(ctx context.Context, cancel context.CancelFunc, logger logging.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Warn("shutdown signal received, cancelling in-flight work with a %s grace period", gracefulShutdownGrace)
		cancel()

		select {
		case <-sigCh:
			logger.Error("second shutdown signal received, exiting")
		case <-time.After(gracefulShutdownGrace):
			logger.Error("shutdown grace period of %s expired, exiting", gracefulShutdownGrace)
		}
		os.Exit(1)
	}()
}

func execute(ctx context.Context, rc config.RuntimeConfig, logger logging.Logger) (int, error) {
	pool, err := pgxpool.New(ctx, rc.DatabaseURL)
	if err != nil {
		return 1, fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return 1, fmt.Errorf("ping postgres: %w", err)
	}

	clk, err := clock.New(rc.PipelineTimezone)
	if err != nil {
		return 1, fmt.Errorf("clock: %w", err)
	}

	cache, err := sessioncache.New(rc.SessionStateDir, logger.With("sessioncache"))
	if err != nil {
		return 1, fmt.Errorf("sessioncache: %w", err)
	}

	adapterFactory := webautomation.NewChromedpAdapter(true, rc.DownloadDir, logger.With("webautomation"))
	prober := webautomation.NewAdapterProber(adapterFactory, logger.With("sessioncache-prober"))

	registry := storeregistry.New(pool, logger.With("storeregistry"))
	synclogStore := synclog.New(pool, clk, logger.With("synclog"))
	runsummaryStore := runsummary.New(pool, logger.With("runsummary"))
	stagingStore := staging.New(pool, rc.IngestBatchSize, logger.With("staging"))
	productionStore := production.New(pool, logger.With("production"))
	breakers := pipelineerrors.NewCircuitBreakerManager(pipelineerrors.DefaultCircuitBreakerConfig())

	engine := syncengine.New(synclogStore, stagingStore, productionStore, cache, adapterFactory, prober,
		clk, breakers, logger.With("syncengine"))

	prof := profiler.New(registry, synclogStore, runsummaryStore, engine, pool, clk, logger.With("profiler"))

	cfg := profiler.Config{
		Env:             rc.Env,
		WindowDays:      rc.WindowDays,
		OverlapDays:     rc.OverlapDays,
		MaxWorkers:      rc.MaxWorkers,
		Force:           rc.Force,
		StoreCodeFilter: rc.StoreCode,
		OrphanWatchdog:  time.Hour,
	}

	group := domain.PipelineID(rc.SyncGroup)
	summary, outcomes, err := prof.Run(ctx, group, cfg)
	if err != nil {
		return 1, fmt.Errorf("profiler run: %w", err)
	}
	logSkipped(outcomes, logger)

	notifyStore := notify.New(pool, logger.With("notify"))
	transport := notify.NewSMTPTransport(notify.SMTPConfig{
		Host:     rc.SMTPHost,
		Port:     rc.SMTPPort,
		Username: rc.SMTPUser,
		Password: rc.SMTPPass,
	}, logger.With("notify-smtp"))
	dispatcher := notify.NewDispatcher(notifyStore, transport, runsummaryStore, logger.With("notify-dispatcher"))

	dispatchCtx, dispatchCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer dispatchCancel()
	if err := dispatcher.Dispatch(dispatchCtx, notify.RunContext{
		RunID:        summary.RunID,
		PipelineName: summary.PipelineName,
		Env:          rc.Env,
		From:         rc.SMTPFrom,
		RunVars: map[string]string{
			"run_id":  summary.RunID,
			"summary": summary.SummaryText,
		},
	}); err != nil {
		logger.Warn("notification dispatch: %v", err)
	}

	return exitCodeFor(summary.OverallStatus, outcomes), nil
}

func logSkipped(outcomes []profiler.JobOutcome, logger logging.Logger) {
	for _, o := range outcomes {
		if o.Skipped {
			logger.Warn("skipped %s/%s: %s", o.Pipeline, o.StoreCode, o.SkipReason)
		}
	}
}

// exitCodeFor maps a run's overall status to a process exit code per
// spec §6: ok always exits 0; error always exits non-zero; partial and
// warning exit non-zero only when every attempted window actually
// failed (i.e. nothing at all succeeded), since a run with at least
// one success is not a process failure even if it is incomplete.
func exitCodeFor(status domain.RunStatus, outcomes []profiler.JobOutcome) int {
	switch status {
	case domain.RunOK:
		return 0
	case domain.RunError:
		return 1
	case domain.RunPartial, domain.RunWarning:
		if anyWindowSucceeded(outcomes) {
			return 0
		}
		return 1
	default:
		return 1
	}
}

func anyWindowSucceeded(outcomes []profiler.JobOutcome) bool {
	for _, o := range outcomes {
		for _, w := range o.Windows {
			if w.Status == domain.StatusSuccess {
				return true
			}
		}
	}
	return false
}
