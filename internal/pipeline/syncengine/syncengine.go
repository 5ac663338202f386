// Package syncengine implements the Sync Engine (C10): the per-(store,
// window) procedure that opens a sync-log row, drives the web
// automation flow, parses and ingests every resulting artifact, and
// finalizes the row with a status derived from which artifacts
// succeeded.
//
// Grounded on the teacher's worker-function style (a single exported
// entrypoint per unit of work, composing narrower collaborators
// constructed once at startup) and its retry/circuit-breaker usage
// pattern in internal/errors, now generalized onto window execution.
package syncengine

import (
	"context"
	"fmt"
	"time"

	"github.com/wagid-sheikh/simplify-downloader/internal/clock"
	pipelineerrors "github.com/wagid-sheikh/simplify-downloader/internal/errors"
	"github.com/wagid-sheikh/simplify-downloader/internal/logging"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/domain"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/production"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/sessioncache"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/staging"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/storeregistry"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/synclog"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/webautomation"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/workbook"
)

// Outcome is the structured result the engine hands back to the
// profiler for one window attempt.
type Outcome struct {
	WindowID int64
	Status   domain.SyncLogStatus
	Err      error
}

// Engine composes the Sync Log Store, Session Cache, Web Automation
// Adapter, Workbook Parser, Staging Upsert, and Production Merge into
// the two concrete flows (TD, UC).
type Engine struct {
	synclog    *synclog.Store
	staging    *staging.Store
	production *production.Store
	cache      *sessioncache.Cache
	adapters   webautomation.Factory
	prober     sessioncache.Prober
	clk        *clock.Clock
	breakers   *pipelineerrors.CircuitBreakerManager
	logger     logging.Logger
}

// New constructs an Engine.
func New(synclogStore *synclog.Store, stagingStore *staging.Store, productionStore *production.Store,
	cache *sessioncache.Cache, adapters webautomation.Factory, prober sessioncache.Prober,
	clk *clock.Clock, breakers *pipelineerrors.CircuitBreakerManager, logger logging.Logger) *Engine {
	return &Engine{
		synclog:    synclogStore,
		staging:    stagingStore,
		production: productionStore,
		cache:      cache,
		adapters:   adapters,
		prober:     prober,
		clk:        clk,
		breakers:   breakers,
		logger:     logging.OrNop(logger),
	}
}

// RunTDWindow executes the TD procedure for one (store, window): open
// the sync-log row, run the orders and sales report flows, ingest each
// artifact (its staging rows commit per chunk and its production merge
// commits separately, so one artifact's ingest is not a single atomic
// transaction), and finalize per the TD status rule
// (both succeeded ⇒ success; orders only ⇒ partial; orders failed ⇒
// failed).
func (e *Engine) RunTDWindow(ctx context.Context, store storeregistry.Store, runID, env string, window clock.Window) Outcome {
	id, err := e.synclog.OpenWindow(ctx, domain.PipelineTD, store.StoreCode, runID, env, store.CostCenter, window)
	if err != nil {
		return Outcome{Status: domain.StatusFailed, Err: err}
	}

	breaker := e.breakers.Get(store.StoreCode)
	if err := breaker.Allow(); err != nil {
		_ = e.synclog.Finalize(ctx, id, domain.StatusFailed, err.Error())
		return Outcome{WindowID: id, Status: domain.StatusFailed, Err: err}
	}

	state, _, err := e.cache.LoadState(store.StoreCode)
	if err != nil {
		e.logger.Warn("could not load session state for %s, logging in fresh: %v", store.StoreCode, err)
		state = nil
	}

	downloads, newState, err := e.runTDFlowWithRetry(ctx, store, state, window)
	breaker.Mark(err)
	if newState != nil {
		if saveErr := e.cache.SaveState(store.StoreCode, newState); saveErr != nil {
			e.logger.Warn("could not persist session state for %s: %v", store.StoreCode, saveErr)
		}
	}

	flowErr := err
	if flowErr != nil && len(downloads) == 0 {
		_ = e.synclog.Finalize(ctx, id, domain.StatusFailed, flowErr.Error())
		return Outcome{WindowID: id, Status: domain.StatusFailed, Err: flowErr}
	}

	injected := workbook.Injected{
		CostCenter: store.CostCenter, StoreCode: store.StoreCode, RunID: runID,
		RunDate: e.clk.Today(), SourceSystem: "TumbleDry",
	}

	if ordersErr := e.ingestArtifact(ctx, downloads[0].Bytes, workbook.TDOrdersSpec, injected, true); ordersErr != nil {
		_ = e.synclog.Finalize(ctx, id, domain.StatusFailed, ordersErr.Error())
		return Outcome{WindowID: id, Status: domain.StatusFailed, Err: ordersErr}
	}
	if markErr := e.synclog.MarkOrdersPulled(ctx, id); markErr != nil {
		e.logger.Warn("mark_orders_pulled(%d) failed: %v", id, markErr)
	}

	if flowErr != nil {
		// Orders downloaded and ingested; the flow itself failed before
		// (or while) fetching sales.
		_ = e.synclog.Finalize(ctx, id, domain.StatusPartial, flowErr.Error())
		return Outcome{WindowID: id, Status: domain.StatusPartial, Err: flowErr}
	}

	var salesErr error
	if len(downloads) >= 2 {
		salesErr = e.ingestArtifact(ctx, downloads[1].Bytes, workbook.TDSalesSpec, injected, false)
		if salesErr == nil {
			if markErr := e.synclog.MarkSalesPulled(ctx, id); markErr != nil {
				e.logger.Warn("mark_sales_pulled(%d) failed: %v", id, markErr)
			}
		}
	} else {
		salesErr = fmt.Errorf("sales artifact missing")
	}

	if salesErr != nil {
		_ = e.synclog.Finalize(ctx, id, domain.StatusPartial, salesErr.Error())
		return Outcome{WindowID: id, Status: domain.StatusPartial, Err: salesErr}
	}

	if err := e.synclog.Finalize(ctx, id, domain.StatusSuccess, ""); err != nil {
		return Outcome{WindowID: id, Status: domain.StatusSuccess, Err: err}
	}
	return Outcome{WindowID: id, Status: domain.StatusSuccess}
}

// runTDFlowWithRetry runs RunTDFlow, retrying only failures that
// pipelineerrors.IsTransient accepts (KindTransport, KindConflict, and
// untagged network errors) with a freshly-created adapter per spec's "never reused
// across window retries after a failure" rule. Unlike the generic retry
// helpers, a non-transient failure's partial downloads (e.g. orders
// succeeded, sales failed) are preserved rather than discarded, since
// the caller needs them to tell partial from total failure.
func (e *Engine) runTDFlowWithRetry(ctx context.Context, store storeregistry.Store, state sessioncache.State,
	window clock.Window) ([]webautomation.Download, sessioncache.State, error) {

	specs := []webautomation.TDReportSpec{webautomation.TDOrdersSpec, webautomation.TDSalesSpec}
	config := pipelineerrors.DefaultRetryConfig()

	var downloads []webautomation.Download
	var newState sessioncache.State
	var lastErr error

	for attempt := 0; attempt <= config.MaxAttempts; attempt++ {
		adapter := e.adapters()
		downloads, newState, lastErr = webautomation.RunTDFlow(ctx, adapter, store.StoreCode, store.Config, state, window, specs, e.logger)
		adapter.Close(ctx)

		if lastErr == nil || !pipelineerrors.IsTransient(lastErr) || attempt == config.MaxAttempts {
			return downloads, newState, lastErr
		}

		select {
		case <-time.After(pipelineerrors.CalculateBackoff(attempt, config)):
		case <-ctx.Done():
			return downloads, newState, pipelineerrors.New(pipelineerrors.KindCancelled, "syncengine.runTDFlowWithRetry", "", ctx.Err())
		}
	}

	return downloads, newState, lastErr
}

// RunUCWindow executes the UC procedure for one (store, window): open
// the sync-log row, run the GST export flow (a no-data banner is a
// success with zero rows), ingest the artifact if present, and
// finalize per the UC status rule (success including no-data; else
// failed).
func (e *Engine) RunUCWindow(ctx context.Context, store storeregistry.Store, runID, env string, window clock.Window) Outcome {
	id, err := e.synclog.OpenWindow(ctx, domain.PipelineUC, store.StoreCode, runID, env, store.CostCenter, window)
	if err != nil {
		return Outcome{Status: domain.StatusFailed, Err: err}
	}

	breaker := e.breakers.Get(store.StoreCode)
	if err := breaker.Allow(); err != nil {
		_ = e.synclog.Finalize(ctx, id, domain.StatusFailed, err.Error())
		return Outcome{WindowID: id, Status: domain.StatusFailed, Err: err}
	}

	state, _, err := e.cache.LoadState(store.StoreCode)
	if err != nil {
		e.logger.Warn("could not load session state for %s, logging in fresh: %v", store.StoreCode, err)
		state = nil
	}

	outcome, newState, err := e.runUCFlowWithRetry(ctx, store, state, window)
	breaker.Mark(err)
	if newState != nil {
		if saveErr := e.cache.SaveState(store.StoreCode, newState); saveErr != nil {
			e.logger.Warn("could not persist session state for %s: %v", store.StoreCode, saveErr)
		}
	}

	if err != nil {
		_ = e.synclog.Finalize(ctx, id, domain.StatusFailed, err.Error())
		return Outcome{WindowID: id, Status: domain.StatusFailed, Err: err}
	}

	if !outcome.NoData {
		injected := workbook.Injected{
			CostCenter: store.CostCenter, StoreCode: store.StoreCode, RunID: runID,
			RunDate: e.clk.Today(), SourceSystem: "UClean",
		}
		if ingestErr := e.ingestArtifact(ctx, outcome.Download.Bytes, workbook.UCOrdersSpec, injected, true); ingestErr != nil {
			_ = e.synclog.Finalize(ctx, id, domain.StatusFailed, ingestErr.Error())
			return Outcome{WindowID: id, Status: domain.StatusFailed, Err: ingestErr}
		}
	}

	if markErr := e.synclog.MarkOrdersPulled(ctx, id); markErr != nil {
		e.logger.Warn("mark_orders_pulled(%d) failed: %v", id, markErr)
	}
	if err := e.synclog.Finalize(ctx, id, domain.StatusSuccess, ""); err != nil {
		return Outcome{WindowID: id, Status: domain.StatusSuccess, Err: err}
	}
	return Outcome{WindowID: id, Status: domain.StatusSuccess}
}

// runUCFlowWithRetry runs RunUCFlow, retrying only failures that
// pipelineerrors.IsTransient accepts with a freshly-created adapter each
// attempt, mirroring
// runTDFlowWithRetry's manual loop so session state captured on a
// failed attempt is never silently dropped.
func (e *Engine) runUCFlowWithRetry(ctx context.Context, store storeregistry.Store, state sessioncache.State,
	window clock.Window) (webautomation.UCOutcome, sessioncache.State, error) {

	config := pipelineerrors.DefaultRetryConfig()

	var outcome webautomation.UCOutcome
	var newState sessioncache.State
	var lastErr error

	for attempt := 0; attempt <= config.MaxAttempts; attempt++ {
		adapter := e.adapters()
		outcome, newState, lastErr = webautomation.RunUCFlow(ctx, adapter, store.StoreCode, store.Config, state,
			window, e.prober, e.cache, e.logger)
		adapter.Close(ctx)

		if lastErr == nil || !pipelineerrors.IsTransient(lastErr) || attempt == config.MaxAttempts {
			return outcome, newState, lastErr
		}

		select {
		case <-time.After(pipelineerrors.CalculateBackoff(attempt, config)):
		case <-ctx.Done():
			return outcome, newState, pipelineerrors.New(pipelineerrors.KindCancelled, "syncengine.runUCFlowWithRetry", "", ctx.Err())
		}
	}

	return outcome, newState, lastErr
}

// ingestArtifact runs C7→C8→C9 for one downloaded report: parse, stage,
// merge, each DB write in its own transaction. spec.Name selects whether
// derived fields, duplicate/edited flags and the orders merge apply (TD
// and UC orders) or the sales merge applies (TD sales); isOrdersLike is
// not read.
func (e *Engine) ingestArtifact(ctx context.Context, data []byte, spec workbook.ReportSpec, injected workbook.Injected, isOrdersLike bool) error {
	result, err := workbook.Parse(data, spec, e.clk, injected)
	if err != nil {
		return err
	}
	for _, w := range result.Warnings {
		e.logger.Warn("%s: %s", spec.Name, w)
	}

	switch spec.Name {
	case workbook.TDOrdersSpec.Name:
		for _, row := range result.Rows {
			workbook.DeriveTDOrderFields(row)
		}
		production.FlagDuplicates(result.Rows)
		if _, err := e.staging.UpsertTDOrders(ctx, result.Rows); err != nil {
			return err
		}
		_, err = e.production.MergeOrders(ctx, result.Rows)
		return err

	case workbook.TDSalesSpec.Name:
		if _, err := e.staging.UpsertTDSales(ctx, result.Rows); err != nil {
			return err
		}
		_, err = e.production.MergeTDSales(ctx, result.Rows)
		return err

	case workbook.UCOrdersSpec.Name:
		for _, row := range result.Rows {
			workbook.DeriveUCFields(row)
		}
		production.FlagDuplicates(result.Rows)
		if _, err := e.staging.UpsertUCOrders(ctx, result.Rows); err != nil {
			return err
		}
		for _, row := range result.Rows {
			row["order_date"] = row["invoice_date"]
		}
		_, err = e.production.MergeOrders(ctx, result.Rows)
		return err

	default:
		return fmt.Errorf("ingestArtifact: unknown report spec %q", spec.Name)
	}
}
