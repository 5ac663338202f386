// Package profiler implements the Profiler / Orchestrator (C11): plan
// construction per (store, pipeline), a bounded worker pool that
// executes each plan's windows in order, and the halting/cancellation
// rules that keep one store's failure from stalling the rest of the
// run.
//
// Grounded on the teacher's advisory-lock component
// (internal/delivery/server/bootstrap/scheduler_leader_lock.go,
// generalized in advisory_lock.go from a single named lock to one keyed
// per (store, pipeline)), its mutex-guarded in-flight bookkeeping
// (internal/app/scheduler/scheduler.go), and its errgroup.SetLimit
// bounded-fan-out idiom (internal/agent/app/subagent.go).
package profiler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/wagid-sheikh/simplify-downloader/internal/clock"
	"github.com/wagid-sheikh/simplify-downloader/internal/logging"
	"github.com/wagid-sheikh/simplify-downloader/internal/observability"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/domain"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/runsummary"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/storeregistry"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/syncengine"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/synclog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config parameterizes one profiler invocation (spec §6's CLI surface).
type Config struct {
	Env             string
	WindowDays      int
	OverlapDays     int
	MaxWorkers      int
	Force           bool
	StoreCodeFilter string
	OrphanWatchdog  time.Duration // 0 disables the reap pass
}

// JobOutcome is the per-(store,pipeline) result of one invocation: every
// window attempted, in order, plus whether the job was skipped outright
// (invalid config, or another host holding the advisory lock).
type JobOutcome struct {
	StoreCode  string
	Pipeline   domain.PipelineID
	Windows    []syncengine.Outcome
	Skipped    bool
	SkipReason string
}

// Engine is the subset of syncengine.Engine the profiler drives; kept
// narrow so tests can substitute a stub.
type Engine interface {
	RunTDWindow(ctx context.Context, store storeregistry.Store, runID, env string, window clock.Window) syncengine.Outcome
	RunUCWindow(ctx context.Context, store storeregistry.Store, runID, env string, window clock.Window) syncengine.Outcome
}

// Profiler is the Profiler/Orchestrator component.
type Profiler struct {
	registry   *storeregistry.Registry
	synclog    *synclog.Store
	runsummary *runsummary.Store
	engine     Engine
	pool       *pgxpool.Pool
	clk        *clock.Clock
	logger     logging.Logger

	storeLocksMu sync.Mutex
	storeLocks   map[string]*sync.Mutex
}

// New constructs a Profiler.
func New(registry *storeregistry.Registry, synclogStore *synclog.Store, runsummaryStore *runsummary.Store,
	engine Engine, pool *pgxpool.Pool, clk *clock.Clock, logger logging.Logger) *Profiler {
	return &Profiler{
		registry:   registry,
		synclog:    synclogStore,
		runsummary: runsummaryStore,
		engine:     engine,
		pool:       pool,
		clk:        clk,
		logger:     logging.OrNop(logger),
		storeLocks: make(map[string]*sync.Mutex),
	}
}

// Run executes one profiler invocation for group ("TD", "UC", or "ALL"):
// opens a run summary, plans and executes every eligible store's
// windows under a bounded worker pool, and closes the run summary with
// the rolled-up status.
func (p *Profiler) Run(ctx context.Context, group domain.PipelineID, cfg Config) (runsummary.Summary, []JobOutcome, error) {
	instruments()

	ctx, span := observability.Tracer().Start(ctx, "profiler.run",
		attribute.String("pipeline.group", string(group)), attribute.String("env", cfg.Env))
	defer span.End()

	runID, err := p.runsummary.OpenRun(ctx, string(group), cfg.Env)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return runsummary.Summary{}, nil, err
	}
	span.SetAttributes(attribute.String("run_id", runID))

	if cfg.OrphanWatchdog > 0 {
		if _, reapErr := p.synclog.ReapOrphans(ctx, cfg.OrphanWatchdog); reapErr != nil {
			p.logger.Warn("reap_orphans failed: %v", reapErr)
		}
	}

	stores, err := p.registry.EligibleStores(ctx, group, cfg.StoreCodeFilter)
	if err != nil {
		_ = p.runsummary.CloseRun(context.Background(), runID, domain.RunError, err.Error())
		return runsummary.Summary{}, nil, err
	}

	today := p.clk.Today()
	outcomes := make([]JobOutcome, len(stores))

	g, gctx := errgroup.WithContext(ctx)
	if cfg.MaxWorkers > 0 {
		g.SetLimit(cfg.MaxWorkers)
	}

	for i, store := range stores {
		i, store := i, store
		g.Go(func() error {
			outcomes[i] = p.runJob(gctx, store, runID, cfg, today)
			return nil
		})
	}
	_ = g.Wait() // job funcs never return a non-nil error; status lives in outcomes

	var statuses []domain.SyncLogStatus
	for _, o := range outcomes {
		for _, w := range o.Windows {
			statuses = append(statuses, w.Status)
		}
	}

	rollup := domain.RollupStatus(statuses)
	if ctx.Err() != nil {
		// External cancellation: downgrade per spec §5 rather than
		// trusting whatever partial statuses windows managed to record.
		if hasSuccess(statuses) {
			rollup = domain.RunPartial
		} else {
			rollup = domain.RunError
		}
	}

	summaryText := runsummary.SummaryText(string(group), statuses)
	if closeErr := p.runsummary.CloseRun(context.Background(), runID, rollup, summaryText); closeErr != nil {
		span.RecordError(closeErr)
		span.SetStatus(codes.Error, closeErr.Error())
		return runsummary.Summary{}, outcomes, closeErr
	}

	runsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pipeline.group", string(group)), attribute.String("status", string(rollup))))
	span.SetAttributes(attribute.String("status", string(rollup)))
	span.SetStatus(codes.Ok, "")

	summary, err := p.runsummary.Get(context.Background(), runID)
	return summary, outcomes, err
}

func hasSuccess(statuses []domain.SyncLogStatus) bool {
	for _, s := range statuses {
		if s == domain.StatusSuccess {
			return true
		}
	}
	return false
}

// runJob plans and executes the windows for one store under its
// store-level mutex and the cross-process advisory lock, halting on the
// first failed or partial window.
func (p *Profiler) runJob(ctx context.Context, store storeregistry.Store, runID string, cfg Config, today clock.Date) JobOutcome {
	outcome := JobOutcome{StoreCode: store.StoreCode, Pipeline: store.SyncGroup}

	mu := p.storeMutex(store.StoreCode)
	mu.Lock()
	defer mu.Unlock()

	lock := newJobLock(p.pool, store.StoreCode, store.SyncGroup, p.logger)
	acquired, err := lock.tryAcquire(ctx)
	if err != nil {
		outcome.Skipped = true
		outcome.SkipReason = fmt.Sprintf("advisory lock: %v", err)
		jobsSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "lock_error")))
		return outcome
	}
	if !acquired {
		outcome.Skipped = true
		outcome.SkipReason = "another host is running this store's pipeline"
		p.logger.Info("skipping %s/%s: advisory lock held elsewhere", store.SyncGroup, store.StoreCode)
		jobsSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "lock_held")))
		return outcome
	}
	defer lock.release(context.Background())

	startDate, err := clock.ParseDate(store.StartDate)
	if err != nil {
		outcome.Skipped = true
		outcome.SkipReason = fmt.Sprintf("invalid start_date %q: %v", store.StartDate, err)
		return outcome
	}

	successes, err := p.synclog.SuccessesFor(ctx, store.SyncGroup, store.StoreCode)
	if err != nil {
		outcome.Skipped = true
		outcome.SkipReason = fmt.Sprintf("could not load prior successes: %v", err)
		return outcome
	}

	windows := Plan(successes, startDate, today, cfg.WindowDays, cfg.OverlapDays, cfg.Force)

	for _, w := range windows {
		if ctx.Err() != nil {
			outcome.Windows = append(outcome.Windows, syncengine.Outcome{Status: domain.StatusFailed, Err: ctx.Err()})
			break
		}

		windowCtx, windowSpan := observability.Tracer().Start(ctx, "profiler.window",
			attribute.String("run_id", runID),
			attribute.String("store_code", store.StoreCode),
			attribute.String("pipeline.group", string(store.SyncGroup)),
			attribute.String("window.from", w.From.String()),
			attribute.String("window.to", w.To.String()))

		var result syncengine.Outcome
		switch store.SyncGroup {
		case domain.PipelineTD:
			result = p.engine.RunTDWindow(windowCtx, store, runID, cfg.Env, w)
		case domain.PipelineUC:
			result = p.engine.RunUCWindow(windowCtx, store, runID, cfg.Env, w)
		default:
			result = syncengine.Outcome{Status: domain.StatusFailed, Err: fmt.Errorf("unknown sync_group %q", store.SyncGroup)}
		}
		outcome.Windows = append(outcome.Windows, result)

		windowsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("pipeline.group", string(store.SyncGroup)), attribute.String("status", string(result.Status))))
		if result.Err != nil {
			windowSpan.RecordError(result.Err)
			windowSpan.SetStatus(codes.Error, result.Err.Error())
		} else {
			windowSpan.SetStatus(codes.Ok, "")
		}
		windowSpan.SetAttributes(attribute.String("status", string(result.Status)))
		windowSpan.End()

		if result.Status == domain.StatusFailed || result.Status == domain.StatusPartial {
			p.logger.Warn("halting remaining windows for %s/%s after %s window %s..%s",
				store.SyncGroup, store.StoreCode, result.Status, w.From, w.To)
			break
		}
	}

	return outcome
}

func (p *Profiler) storeMutex(storeCode string) *sync.Mutex {
	p.storeLocksMu.Lock()
	defer p.storeLocksMu.Unlock()

	mu, ok := p.storeLocks[storeCode]
	if !ok {
		mu = &sync.Mutex{}
		p.storeLocks[storeCode] = mu
	}
	return mu
}
