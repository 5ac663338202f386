// Package runsummary implements the Run Summary Store: one row per
// profiler invocation in pipeline_run_summaries, rolled up from the
// terminal status of every window the run attempted.
//
// Grounded on the same pgx repository idiom as internal/pipeline/synclog
// (itself grounded on the teacher's
// internal/infra/auth/adapters/postgres_store.go).
package runsummary

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wagid-sheikh/simplify-downloader/internal/logging"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/domain"
)

// Summary mirrors one row of pipeline_run_summaries.
type Summary struct {
	RunID         string
	PipelineName  string
	RunEnv        string
	ReportDate    time.Time
	StartedAt     time.Time
	FinishedAt    *time.Time
	OverallStatus domain.RunStatus
	SummaryText   string
}

// Store is the Run Summary Store, backed by a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// New constructs a Store.
func New(pool *pgxpool.Pool, logger logging.Logger) *Store {
	return &Store{pool: pool, logger: logging.OrNop(logger)}
}

// OpenRun creates a new run summary row in the running state and returns
// its generated run_id.
func (s *Store) OpenRun(ctx context.Context, pipelineName, runEnv string) (string, error) {
	runID := uuid.NewString()

	const query = `
INSERT INTO pipeline_run_summaries
	(run_id, pipeline_name, run_env, report_date, started_at, overall_status)
VALUES ($1, $2, $3, CURRENT_DATE, now(), 'running')
`
	if _, err := s.pool.Exec(ctx, query, runID, pipelineName, runEnv); err != nil {
		return "", fmt.Errorf("open_run(%s): %w", pipelineName, err)
	}

	s.logger.Info("opened run %s for pipeline %s (env=%s)", runID, pipelineName, runEnv)
	return runID, nil
}

// CloseRun finalizes a run summary with its rolled-up status and a
// human-readable recap.
func (s *Store) CloseRun(ctx context.Context, runID string, overallStatus domain.RunStatus, summaryText string) error {
	const query = `
UPDATE pipeline_run_summaries
SET overall_status = $2, summary_text = $3, finished_at = now()
WHERE run_id = $1
`
	if _, err := s.pool.Exec(ctx, query, runID, overallStatus, summaryText); err != nil {
		return fmt.Errorf("close_run(%s): %w", runID, err)
	}

	s.logger.Info("closed run %s as %s", runID, overallStatus)
	return nil
}

// DowngradeStatus relaxes overall_status from from to to, only if the
// row is still at from; used by the notification dispatcher to turn a
// closed ok run into warning after a per-plan send failure (spec
// §4.12), without clobbering a status set by some other finalizer in
// the meantime.
func (s *Store) DowngradeStatus(ctx context.Context, runID string, from, to domain.RunStatus) error {
	const query = `UPDATE pipeline_run_summaries SET overall_status = $3 WHERE run_id = $1 AND overall_status = $2`
	if _, err := s.pool.Exec(ctx, query, runID, from, to); err != nil {
		return fmt.Errorf("downgrade_status(%s): %w", runID, err)
	}
	return nil
}

// Get fetches a run summary by id.
func (s *Store) Get(ctx context.Context, runID string) (Summary, error) {
	const query = `
SELECT run_id, pipeline_name, run_env, report_date, started_at, finished_at, overall_status, COALESCE(summary_text, '')
FROM pipeline_run_summaries WHERE run_id = $1
`
	var sum Summary
	err := s.pool.QueryRow(ctx, query, runID).Scan(
		&sum.RunID, &sum.PipelineName, &sum.RunEnv, &sum.ReportDate,
		&sum.StartedAt, &sum.FinishedAt, &sum.OverallStatus, &sum.SummaryText,
	)
	if err != nil {
		return Summary{}, fmt.Errorf("get(%s): %w", runID, err)
	}
	return sum, nil
}

// SummaryText renders the run's per-pipeline success/partial/failed
// counts into the human-readable text stored alongside overall_status
// and reused verbatim in the dispatcher's email body (spec §7: "the run
// summary's summary_text enumerates per-pipeline success/partial/failed
// counts").
func SummaryText(pipelineName string, outcomes []domain.SyncLogStatus) string {
	var success, partial, failed int
	for _, o := range outcomes {
		switch o {
		case domain.StatusSuccess:
			success++
		case domain.StatusPartial:
			partial++
		case domain.StatusFailed:
			failed++
		}
	}
	return fmt.Sprintf("%s: %d succeeded, %d partial, %d failed (of %d windows)",
		pipelineName, success, partial, failed, len(outcomes))
}
